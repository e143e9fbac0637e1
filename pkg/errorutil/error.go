package errorutil

import (
	"errors"
	"fmt"
)

// 错误码沿用 HTTP 语义
const (
	CodeBadRequest = 400
	CodeInternal   = 500
)

// Error 错误结构（包含可重试标记）
// Retryable=true 的任务会被 Release，等待队列重新投递
type Error struct {
	Code       int    `json:"code"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	DevDetails string `json:"dev_details,omitempty"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return e.Message
}

// Reasoner 携带分类原因的错误（如 city-not-found / invalid）
type Reasoner interface {
	error
	ErrorReason() string
}

func newError(code int, message, details string, retryable bool) *Error {
	return &Error{Code: code, Message: message, Retryable: retryable, DevDetails: details}
}

// Retriable 可重试错误：存储不可用、队列投递失败等
func Retriable(message string) *Error {
	return newError(CodeInternal, message, "", true)
}

// RetriableWithDetails 可重试错误，附带底层错误信息
func RetriableWithDetails(message string, details string) *Error {
	return newError(CodeInternal, message, details, true)
}

// NonRetriable 不可重试错误：任务数据非法
func NonRetriable(message string) *Error {
	return newError(CodeBadRequest, message, "", false)
}

// NonRetriableWithDetails 不可重试错误，附带底层错误信息
func NonRetriableWithDetails(message string, details string) *Error {
	return newError(CodeBadRequest, message, details, false)
}

// Wrap 统一转换为 *Error
// 已经是 *Error 直接返回；实现 Reasoner 的业务错误保留 reason，按不可重试处理
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var r Reasoner
	if errors.As(err, &r) {
		return &Error{
			Code:      CodeBadRequest,
			Reason:    r.ErrorReason(),
			Message:   err.Error(),
			Retryable: false,
		}
	}

	return newError(CodeInternal, err.Error(), fmt.Sprintf("%+v", err), false)
}

// IsRetryable 错误链中是否带可重试标记
func IsRetryable(err error) bool {
	e := Wrap(err)
	return e != nil && e.Retryable
}
