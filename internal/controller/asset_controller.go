package controller

import (
	"io"
	"school_quiz_backend/internal/service"
	"school_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// AssetController 题干附件上传（题图、听力音频、PDF 材料）
type AssetController struct {
	Storage service.StorageProvider
}

func NewAssetController(storage service.StorageProvider) *AssetController {
	return &AssetController{Storage: storage}
}

// @Summary 上传题目附件
// @Tags 测验管理
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param file formData file true "附件文件"
// @Success 201 {object} util.Response
// @Router /api/teacher/quizzes/{quizId}/assets [post]
func (c *AssetController) UploadAsset(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	mimeType, err := util.ValidateMimeType(file, []string{util.MimeImage, util.MimeAudio, util.MimePDF})
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	objectName := service.AssetObjectName(ctx.Param("quizId"), header.Filename)
	url, err := c.Storage.Upload(ctx.Request.Context(), objectName, file, header.Size, mimeType)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Created(ctx, gin.H{
		"url":         url,
		"contentType": mimeType,
		"size":        header.Size,
	})
}
