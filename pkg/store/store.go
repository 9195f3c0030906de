// Package store 定义分配记录存储接口，并提供内存实现
package store

import (
	"context"
	"time"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// Store 分配记录存储
//
// 存储是冲突检查的唯一依据：重叠与同日重复上门均以已持久化的记录为准。
// 返回 error 表示存储不可用，调用方应视为致命错误。
type Store interface {
	// CreateAssignment 写入记录并返回存储分配的 ID
	CreateAssignment(ctx context.Context, a *model.Assignment) (int64, error)
	// GetAssignment 按 ID 读取，不存在时 found=false
	GetAssignment(ctx context.Context, id int64) (a *model.Assignment, found bool, err error)
	// UpdateAssignment 部分更新，不存在时 found=false
	UpdateAssignment(ctx context.Context, id int64, upd model.AssignmentUpdate) (found bool, err error)
	// DeleteAssignment 删除单条记录
	DeleteAssignment(ctx context.Context, id int64) (found bool, err error)
	// DeleteAssignments 批量删除，返回实际删除数量
	DeleteAssignments(ctx context.Context, ids []int64) (int, error)
	// ClearAssignments 清空全部记录
	ClearAssignments(ctx context.Context) error

	// HasOverlap 员工是否已有与 [start, end) 重叠的记录
	HasOverlap(ctx context.Context, employeeID string, start, end time.Time) (bool, error)
	// HasServedToday 员工当天是否已为该服务对象上门（按开始时间所在日期）
	HasServedToday(ctx context.Context, employeeID, patientID string, day time.Time) (bool, error)

	// ListAssignments 按开始时间排序返回全部记录
	ListAssignments(ctx context.Context) ([]*model.Assignment, error)
	// ListEmployeeAssignments 返回员工在 [from, to) 内开始的记录，按开始时间排序
	ListEmployeeAssignments(ctx context.Context, employeeID string, from, to time.Time) ([]*model.Assignment, error)
}

// OperationLog 操作日志
type OperationLog interface {
	LogOperation(ctx context.Context, op *Operation) error
	ListOperations(ctx context.Context, limit int) ([]*Operation, error)
}

// 操作类型
const (
	OperationDailySchedule  = "daily_schedule"
	OperationWeeklySchedule = "weekly_schedule"
	OperationReanalysis     = "reanalysis"
	OperationClear          = "clear"
)

// Operation 操作日志条目
type Operation struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
