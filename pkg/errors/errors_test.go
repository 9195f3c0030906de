package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	cause := errors.New("connection refused")
	err := StoreUnavailable("create_assignment", cause)

	assert.Equal(t, CodeStoreUnavailable, err.Code)
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")

	wrapped := fmt.Errorf("排班失败: %w", err)
	assert.True(t, Is(wrapped, CodeStoreUnavailable))
	assert.False(t, Is(wrapped, CodeNotFound))
	assert.False(t, Is(cause, CodeStoreUnavailable))
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := map[Code]int{
		CodeInvalidInput:        http.StatusBadRequest,
		CodeValidationFail:      http.StatusBadRequest,
		CodeUnauthorized:        http.StatusUnauthorized,
		CodeForbidden:           http.StatusForbidden,
		CodeNotFound:            http.StatusNotFound,
		CodeScheduleConflict:    http.StatusConflict,
		CodeRateLimited:         http.StatusTooManyRequests,
		CodeTimeout:             http.StatusGatewayTimeout,
		CodeNoAvailableEmployee: http.StatusUnprocessableEntity,
		CodeMissingReference:    http.StatusUnprocessableEntity,
		CodeInternal:            http.StatusInternalServerError,
		CodeUnknown:             http.StatusInternalServerError,
	}
	for code, status := range tests {
		assert.Equal(t, status, New(code, "x").HTTPStatus, code)
	}
}

func TestFrom(t *testing.T) {
	nf := NotFound("分配", "7")
	assert.Same(t, nf, From(fmt.Errorf("查询: %w", nf)))

	deadline := From(fmt.Errorf("路由: %w", context.DeadlineExceeded))
	assert.Equal(t, CodeTimeout, deadline.Code)
	assert.ErrorIs(t, deadline, context.DeadlineExceeded)

	assert.Equal(t, CodeTimeout, From(context.Canceled).Code)

	other := From(errors.New("boom"))
	assert.Equal(t, CodeInternal, other.Code)
	assert.Equal(t, "boom", other.Details)
}

func TestScheduleConflict(t *testing.T) {
	err := ScheduleConflict(3)
	assert.Equal(t, http.StatusConflict, err.HTTPStatus)
	assert.Equal(t, 3, err.Fields["conflicts"])
	assert.Contains(t, err.Message, "3")
}

func TestNoAvailableEmployee(t *testing.T) {
	err := NoAvailableEmployee("12", "全部员工当日已满")
	assert.Equal(t, CodeNoAvailableEmployee, err.Code)
	assert.Contains(t, err.Error(), "分配 12")
}

func TestWithField(t *testing.T) {
	err := NotFound("分配", "42").WithField("id", 42).WithDetails("已删除")
	assert.Equal(t, 42, err.Fields["id"])
	assert.Equal(t, "已删除", err.Details)
	assert.Contains(t, err.Error(), "'42'")
}

func TestValidationErrors(t *testing.T) {
	ve := &ValidationErrors{}
	assert.False(t, ve.HasErrors())
	assert.Equal(t, "验证失败", ve.Error())

	ve.Add("employee_id", "不能为空")
	ve.Add("end_time", "结束时间必须晚于开始时间")
	require.True(t, ve.HasErrors())
	assert.Contains(t, ve.Error(), "employee_id")

	appErr := ve.ToAppError()
	assert.Equal(t, CodeValidationFail, appErr.Code)
	assert.Len(t, appErr.Fields, 2)
	assert.Equal(t, "不能为空", appErr.Fields["employee_id"])
}
