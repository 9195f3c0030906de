// Package validator 提供排班冲突检查与排班表校验
package validator

import (
	"context"
	"time"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
)

// Guard 冲突守卫，所有判断以存储中的记录为准
type Guard struct {
	store store.Store
}

// NewGuard 创建冲突守卫
func NewGuard(s store.Store) *Guard {
	return &Guard{store: s}
}

// Overlaps 员工在 [start, end) 是否已有安排
func (g *Guard) Overlaps(ctx context.Context, employeeID string, start, end time.Time) (bool, error) {
	return g.store.HasOverlap(ctx, employeeID, start, end)
}

// AlreadyServedToday 员工当天是否已为该服务对象上门
func (g *Guard) AlreadyServedToday(ctx context.Context, employeeID, patientID string, day time.Time) (bool, error) {
	return g.store.HasServedToday(ctx, employeeID, patientID, day)
}

// BlockedUntil 返回与 [start, end) 重叠的已有安排中最晚的结束时间
// 没有重叠时 blocked=false
func (g *Guard) BlockedUntil(ctx context.Context, employeeID string, start, end time.Time) (until time.Time, blocked bool, err error) {
	// 可能重叠的记录开始于 end 之前，且至少从前一天开始查起以覆盖跨日记录
	from := model.DayStart(start).AddDate(0, 0, -1)
	list, err := g.store.ListEmployeeAssignments(ctx, employeeID, from, end)
	if err != nil {
		return time.Time{}, false, err
	}

	probe := model.TimeRange{Start: start, End: end}
	for _, a := range list {
		if !probe.Overlaps(a.Interval()) {
			continue
		}
		if !blocked || a.EndTime.After(until) {
			until = a.EndTime
		}
		blocked = true
	}
	return until, blocked, nil
}

// HasAssignmentOnDate 员工当天是否已有任意安排
func (g *Guard) HasAssignmentOnDate(ctx context.Context, employeeID string, day time.Time) (bool, error) {
	r := model.DayRange(day)
	list, err := g.store.ListEmployeeAssignments(ctx, employeeID, r.Start, r.End)
	if err != nil {
		return false, err
	}
	return len(list) > 0, nil
}
