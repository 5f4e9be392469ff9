package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 稳定的机器可读错误码
type ErrorCode string

const (
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeInvalidState    ErrorCode = "INVALID_STATE"
	CodeForbidden       ErrorCode = "FORBIDDEN"
	CodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	CodeValidation      ErrorCode = "VALIDATION_ERROR"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
)

var codeStatus = map[ErrorCode]int{
	CodeNotFound:        http.StatusNotFound,
	CodeInvalidState:    http.StatusBadRequest,
	CodeForbidden:       http.StatusForbidden,
	CodeUnauthenticated: http.StatusUnauthorized,
	CodeValidation:      http.StatusBadRequest,
	CodeRateLimited:     http.StatusTooManyRequests,
	CodeInternal:        http.StatusInternalServerError,
}

// AppError 业务错误
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// HTTPStatus 错误码对应的HTTP状态
func (e *AppError) HTTPStatus() int {
	if status, ok := codeStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func newAppError(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound 资源不存在
func NotFound(format string, args ...interface{}) *AppError {
	return newAppError(CodeNotFound, format, args...)
}

// InvalidState 当前状态不允许该操作
func InvalidState(format string, args ...interface{}) *AppError {
	return newAppError(CodeInvalidState, format, args...)
}

// Forbidden 已认证但无权限
func Forbidden(format string, args ...interface{}) *AppError {
	return newAppError(CodeForbidden, format, args...)
}

// Unauthenticated 缺少或无效的凭证
func Unauthenticated(format string, args ...interface{}) *AppError {
	return newAppError(CodeUnauthenticated, format, args...)
}

// Validation 参数校验失败
func Validation(format string, args ...interface{}) *AppError {
	return newAppError(CodeValidation, format, args...)
}

// RateLimited 请求过于频繁
func RateLimited(format string, args ...interface{}) *AppError {
	return newAppError(CodeRateLimited, format, args...)
}

// Internal 内部错误，cause 只用于日志，不返回给客户端
func Internal(cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: "internal server error", Cause: cause}
}

// AsAppError 将任意错误转换为 AppError，未知错误视为内部错误
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return &AppError{Code: CodeValidation, Message: ve.Error(), Cause: err}
	}
	return Internal(err)
}

// IsCode 判断错误是否为指定错误码
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
