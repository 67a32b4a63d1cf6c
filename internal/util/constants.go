package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 题目附件上传相关常量
const (
	MimeImage = "image/"
	MimeAudio = "audio/"
	MimePDF   = "application/pdf"
)
