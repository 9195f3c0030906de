// Package errors 定义排班服务对外暴露的错误码
//
// 存储、名册与请求校验的失败统一包装为 AppError，HTTP 层按错误码
// 决定状态码，命令行按错误码决定输出。
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code 错误码
type Code string

const (
	CodeUnknown      Code = "UNKNOWN"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeTimeout      Code = "TIMEOUT"
	CodeRateLimited  Code = "RATE_LIMITED"

	// 排班
	CodeScheduleConflict    Code = "SCHEDULE_CONFLICT"
	CodeMissingReference    Code = "MISSING_REFERENCE"
	CodeNoAvailableEmployee Code = "NO_AVAILABLE_EMPLOYEE"

	// 数据
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeValidationFail   Code = "VALIDATION_FAILED"
	CodeImportFailed     Code = "IMPORT_FAILED"
)

var httpStatus = map[Code]int{
	CodeInvalidInput:        http.StatusBadRequest,
	CodeValidationFail:      http.StatusBadRequest,
	CodeUnauthorized:        http.StatusUnauthorized,
	CodeForbidden:           http.StatusForbidden,
	CodeNotFound:            http.StatusNotFound,
	CodeScheduleConflict:    http.StatusConflict,
	CodeRateLimited:         http.StatusTooManyRequests,
	CodeTimeout:             http.StatusGatewayTimeout,
	CodeMissingReference:    http.StatusUnprocessableEntity,
	CodeNoAvailableEmployee: http.StatusUnprocessableEntity,
	CodeImportFailed:        http.StatusUnprocessableEntity,
	CodeStoreUnavailable:    http.StatusServiceUnavailable,
}

// AppError 带错误码的应用错误
type AppError struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithDetails 附加说明
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithField 附加结构化字段，随响应体返回
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New 按错误码创建错误，未登记的错误码对应 500
func New(code Code, message string) *AppError {
	status, ok := httpStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap 在 New 的基础上保留底层错误
func Wrap(err error, code Code, message string) *AppError {
	e := New(code, message)
	e.Cause = err
	return e
}

// From 把任意错误转换为 AppError，上下文超时与取消映射为 CodeTimeout
func From(err error) *AppError {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, CodeTimeout, "排班超时")
	case errors.Is(err, context.Canceled):
		return Wrap(err, CodeTimeout, "请求已取消")
	default:
		return Wrap(err, CodeInternal, "内部错误").WithDetails(err.Error())
	}
}

// Is 判断错误链中是否有指定错误码的 AppError
func Is(err error, code Code) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, fmt.Sprintf("字段 '%s' 无效: %s", field, reason))
}

func NotFound(resource, id string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s '%s' 不存在", resource, id))
}

// StoreUnavailable 包装分配存储的失败，op 为失败的存储操作名
func StoreUnavailable(op string, err error) *AppError {
	return Wrap(err, CodeStoreUnavailable, fmt.Sprintf("存储操作 '%s' 失败", op))
}

// MissingReference 分配引用了名册中不存在的员工或服务对象
func MissingReference(kind, id string) *AppError {
	return New(CodeMissingReference, fmt.Sprintf("%s '%s' 不在名册中", kind, id))
}

// ScheduleConflict 已存储的排班中存在 count 个错误级冲突
func ScheduleConflict(count int) *AppError {
	return New(CodeScheduleConflict, fmt.Sprintf("排班存在 %d 个错误级冲突", count)).
		WithField("conflicts", count)
}

// NoAvailableEmployee 没有员工能接替该分配
func NoAvailableEmployee(assignmentID, reason string) *AppError {
	return New(CodeNoAvailableEmployee, fmt.Sprintf("分配 %s 无可接替员工: %s", assignmentID, reason))
}

// ValidationError 单个字段的校验失败
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors 收集一条记录的全部字段错误
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "验证失败"
	}
	first := ve.Errors[0]
	return fmt.Sprintf("验证失败: %s - %s", first.Field, first.Message)
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool { return len(ve.Errors) > 0 }

// ToAppError 转为 CodeValidationFail，字段错误放入 Fields
func (ve *ValidationErrors) ToAppError() *AppError {
	e := New(CodeValidationFail, "验证失败")
	for _, v := range ve.Errors {
		e.WithField(v.Field, v.Message)
	}
	return e
}
