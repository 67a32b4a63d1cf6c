package util

import (
	"context"
	"errors"
	"fmt"
	"net"
)

/* =========================================================
   错误分类：Validation / NotFound / Conflict / Expired / StoreTimeout
   controller 层通过 errors.As 映射到对应的 HTTP 状态码。
========================================================= */

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func NewConflictError(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

type ExpiredError struct {
	Message string
}

func (e *ExpiredError) Error() string { return e.Message }

func NewExpiredError(format string, args ...any) error {
	return &ExpiredError{Message: fmt.Sprintf(format, args...)}
}

type StoreTimeoutError struct {
	Op  string
	Err error
}

func (e *StoreTimeoutError) Error() string {
	return "store operation timed out: " + e.Op
}

func (e *StoreTimeoutError) Unwrap() error { return e.Err }

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsTimeout 判断底层存储错误是否为超时（调用方可透明重试一次）
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

var (
	ErrQuizNotPublished    = NewValidationError("quiz not published or not accessible")
	ErrQuizNotYetOpen      = NewValidationError("quiz not yet open")
	ErrQuizClosed          = NewValidationError("quiz past due date")
	ErrQuizCompleted       = NewConflictError("quiz already completed")
	ErrAlreadySubmitted    = NewConflictError("quiz already submitted")
	ErrMaxAttemptsExceeded = NewConflictError("max attempts exceeded")
	ErrAttemptExpired      = NewExpiredError("attempt has expired")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrUnauthorized        = errors.New("unauthorized")
)
