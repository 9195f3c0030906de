// Package swap 提供已有上门分配的重新分配
package swap

import (
	"context"
	"fmt"

	"github.com/0pancd04/rota-ai-desertation/pkg/dispatcher/constraint"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
	"github.com/0pancd04/rota-ai-desertation/pkg/travel"
	"github.com/0pancd04/rota-ai-desertation/pkg/validator"
)

// 评估问题类型
const (
	IssueSameEmployee = "same_employee"
	IssueEligibility  = "eligibility"
	IssueOverlap      = "overlap"
	IssueRepeatVisit  = "repeat_visit"
	IssueOutsideShift = "outside_shift"
	IssueTravelLookup = "travel_lookup"
)

// TakeOverEvaluator 接替评估器：判断某员工能否接替一条上门分配
type TakeOverEvaluator struct {
	guard  *validator.Guard
	filter *constraint.Filter
	travel travel.Provider
}

// NewTakeOverEvaluator 创建接替评估器
func NewTakeOverEvaluator(s store.Store, tp travel.Provider, filter *constraint.Filter) *TakeOverEvaluator {
	if filter == nil {
		filter = constraint.NewFilter()
	}
	return &TakeOverEvaluator{
		guard:  validator.NewGuard(s),
		filter: filter,
		travel: tp,
	}
}

// TakeOverRequest 接替请求
type TakeOverRequest struct {
	Assignment *model.Assignment `json:"assignment"`
	Patient    *model.Patient    `json:"patient"`
	Target     *model.Employee   `json:"target"`
}

// Evaluation 接替评估结果
type Evaluation struct {
	Feasible      bool    `json:"feasible"`       // 可作为兜底候选（不考虑班次）
	WithinShift   bool    `json:"within_shift"`   // 班次完整覆盖该上门
	BusyThatDay   bool    `json:"busy_that_day"`  // 当天已有其他安排
	TravelMinutes int     `json:"travel_minutes"` // 从员工住址到服务对象的出行时间
	Issues        []Issue `json:"issues"`
}

// Issue 评估问题
type Issue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // error/warning
	Message  string `json:"message"`
}

// Evaluate 评估员工接替该上门的可行性
//
// 返回 error 仅表示存储不可用或 ctx 取消；出行时间查询失败时该员工不可行。
func (e *TakeOverEvaluator) Evaluate(ctx context.Context, req *TakeOverRequest) (*Evaluation, error) {
	a, target := req.Assignment, req.Target
	result := &Evaluation{Feasible: true}

	if target.ID == a.EmployeeID {
		result.addIssue(IssueSameEmployee, "error", "已是当前员工")
		return result, nil
	}

	if violations := e.filter.Explain(target, req.Patient); len(violations) > 0 {
		for _, v := range violations {
			result.addIssue(IssueEligibility, "error", fmt.Sprintf("%s: %s", v.Constraint, v.Reason))
		}
		return result, nil
	}

	overlaps, err := e.guard.Overlaps(ctx, target.ID, a.StartTime, a.EndTime)
	if err != nil {
		return nil, err
	}
	if overlaps {
		result.addIssue(IssueOverlap, "error", "该时段已有其他安排")
		return result, nil
	}

	served, err := e.guard.AlreadyServedToday(ctx, target.ID, a.PatientID, a.StartTime)
	if err != nil {
		return nil, err
	}
	if served {
		result.addIssue(IssueRepeatVisit, "error", "当天已为该服务对象上门")
		return result, nil
	}

	minutes, err := e.travel.TravelTime(ctx, target.Address, req.Patient.Address, target.Transport)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.addIssue(IssueTravelLookup, "error", "出行时间查询失败")
		return result, nil
	}
	result.TravelMinutes = min(max(minutes, 0), model.MaxTravelMinutes)

	result.WithinShift = target.Shift().On(a.StartTime).Covers(a.Interval())
	if !result.WithinShift {
		result.Issues = append(result.Issues, Issue{
			Type:     IssueOutsideShift,
			Severity: "warning",
			Message:  fmt.Sprintf("超出班次 %s", target.Shift()),
		})
	}

	busy, err := e.guard.HasAssignmentOnDate(ctx, target.ID, a.StartTime)
	if err != nil {
		return nil, err
	}
	result.BusyThatDay = busy

	return result, nil
}

func (r *Evaluation) addIssue(issueType, severity, message string) {
	r.Issues = append(r.Issues, Issue{Type: issueType, Severity: severity, Message: message})
	if severity == "error" {
		r.Feasible = false
	}
}
