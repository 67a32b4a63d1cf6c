package model

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

func (r UserRole) String() string { return string(r) }

// Privileged 判断角色是否可以查看标准答案
func (r UserRole) Privileged() bool {
	return r == Teacher || r == Admin
}
