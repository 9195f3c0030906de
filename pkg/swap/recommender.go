package swap

import (
	"context"
	"fmt"
	"sort"

	"github.com/0pancd04/rota-ai-desertation/pkg/dispatcher/constraint"
	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
	"github.com/0pancd04/rota-ai-desertation/pkg/travel"
)

// 推荐类型
const (
	KindPreferred = "preferred" // 班次覆盖该上门
	KindFallback  = "fallback"  // 忽略班次的最近员工
)

// Recommendation 接替推荐
type Recommendation struct {
	Employee      *model.Employee `json:"employee"`
	TravelMinutes int             `json:"travel_minutes"`
	BusyThatDay   bool            `json:"busy_that_day"`
	Kind          string          `json:"kind"`
	Rank          int             `json:"rank"`
}

// Reanalyzer 将已有上门重新分配给更合适的员工
type Reanalyzer struct {
	store     store.Store
	oplog     store.OperationLog
	evaluator *TakeOverEvaluator
	roster    *model.Roster
	log       *logger.RotaLogger
}

// ReanalyzerOption 选项
type ReanalyzerOption func(*Reanalyzer)

// WithOperationLog 设置操作日志
func WithOperationLog(oplog store.OperationLog) ReanalyzerOption {
	return func(r *Reanalyzer) {
		r.oplog = oplog
	}
}

// WithFilter 设置资格过滤器
func WithFilter(f *constraint.Filter) ReanalyzerOption {
	return func(r *Reanalyzer) {
		r.evaluator.filter = f
	}
}

// NewReanalyzer 创建重新分配器
func NewReanalyzer(s store.Store, tp travel.Provider, roster *model.Roster, opts ...ReanalyzerOption) *Reanalyzer {
	r := &Reanalyzer{
		store:     s,
		evaluator: NewTakeOverEvaluator(s, tp, nil),
		roster:    roster,
		log:       logger.NewRotaLogger("reanalyzer"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recommend 为一条上门返回接替推荐
//
// 优先返回班次覆盖该上门的员工，按当天是否已有安排、出行时间排序；
// 没有时返回忽略班次的最近员工（仅一名）。
func (r *Reanalyzer) Recommend(ctx context.Context, a *model.Assignment, patient *model.Patient) ([]Recommendation, error) {
	var preferred, fallback []Recommendation

	for _, emp := range r.roster.Employees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		eval, err := r.evaluator.Evaluate(ctx, &TakeOverRequest{Assignment: a, Patient: patient, Target: emp})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, apperrors.StoreUnavailable("evaluate_take_over", err)
		}
		if !eval.Feasible {
			continue
		}

		rec := Recommendation{
			Employee:      emp,
			TravelMinutes: eval.TravelMinutes,
			BusyThatDay:   eval.BusyThatDay,
		}
		if eval.WithinShift {
			rec.Kind = KindPreferred
			preferred = append(preferred, rec)
		}
		rec.Kind = KindFallback
		fallback = append(fallback, rec)
	}

	if len(preferred) > 0 {
		sort.SliceStable(preferred, func(i, j int) bool {
			if preferred[i].BusyThatDay != preferred[j].BusyThatDay {
				return preferred[i].BusyThatDay
			}
			return preferred[i].TravelMinutes < preferred[j].TravelMinutes
		})
		for i := range preferred {
			preferred[i].Rank = i + 1
		}
		return preferred, nil
	}

	if len(fallback) == 0 {
		return nil, nil
	}
	sort.SliceStable(fallback, func(i, j int) bool {
		return fallback[i].TravelMinutes < fallback[j].TravelMinutes
	})
	best := fallback[0]
	best.Rank = 1
	return []Recommendation{best}, nil
}

// Reanalyze 逐条重新分配，返回更新后的记录
//
// 不存在的 ID、名册中找不到员工或服务对象、没有可接替员工的记录均跳过。
// allowTimeChange 目前不改变行为：上门时间始终保持不变。
func (r *Reanalyzer) Reanalyze(ctx context.Context, ids []int64, allowTimeChange bool) ([]*model.Assignment, error) {
	if allowTimeChange {
		r.log.Base().Debug().Msg("allow_time_change 已忽略，上门时间保持不变")
	}

	updated := make([]*model.Assignment, 0, len(ids))
	var skipped int

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		rec, err := r.reassign(ctx, id)
		if err != nil {
			return updated, err
		}
		if rec == nil {
			skipped++
			continue
		}
		updated = append(updated, rec)
	}

	r.log.Base().Info().
		Int("requested", len(ids)).
		Int("updated", len(updated)).
		Int("skipped", skipped).
		Msg("重新分配完成")

	if r.oplog != nil {
		updatedIDs := make([]int64, 0, len(updated))
		for _, a := range updated {
			updatedIDs = append(updatedIDs, a.ID)
		}
		op := &store.Operation{
			Type:        store.OperationReanalysis,
			Description: fmt.Sprintf("重新分配 %d/%d 条上门", len(updated), len(ids)),
			Details: map[string]any{
				"requested":         ids,
				"updated":           updatedIDs,
				"skipped":           skipped,
				"allow_time_change": allowTimeChange,
			},
		}
		if err := r.oplog.LogOperation(ctx, op); err != nil {
			r.log.Base().Warn().Err(err).Msg("写入操作日志失败")
		}
	}

	return updated, nil
}

// reassign 重新分配单条记录，跳过时返回 nil
func (r *Reanalyzer) reassign(ctx context.Context, id int64) (*model.Assignment, error) {
	a, found, err := r.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, apperrors.StoreUnavailable("get_assignment", err)
	}
	if !found {
		r.log.Base().Debug().Int64("assignment_id", id).Msg("分配不存在，跳过")
		return nil, nil
	}

	patient := r.roster.Patient(a.PatientID)
	if patient == nil || r.roster.Employee(a.EmployeeID) == nil {
		r.log.Base().Warn().
			Int64("assignment_id", id).
			Str("employee_id", a.EmployeeID).
			Str("patient_id", a.PatientID).
			Msg("名册中缺少员工或服务对象，跳过")
		return nil, nil
	}

	recs, err := r.Recommend(ctx, a, patient)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		r.log.VisitSkipped(a.EmployeeID, a.PatientID, "没有可接替的员工")
		return nil, nil
	}

	best := recs[0]
	reason := model.ReasonReassigned
	priority := model.DefaultPriorityScore
	upd := model.AssignmentUpdate{
		EmployeeID:    &best.Employee.ID,
		EmployeeName:  &best.Employee.Name,
		TravelMinutes: &best.TravelMinutes,
		PriorityScore: &priority,
		Reason:        &reason,
	}

	found, err = r.store.UpdateAssignment(ctx, id, upd)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeValidationFail) {
			return nil, err
		}
		return nil, apperrors.StoreUnavailable("update_assignment", err)
	}
	if !found {
		return nil, nil
	}

	r.log.Base().Info().
		Int64("assignment_id", id).
		Str("from", a.EmployeeID).
		Str("to", best.Employee.ID).
		Str("kind", best.Kind).
		Int("travel_minutes", best.TravelMinutes).
		Msg("上门已重新分配")

	if latest, ok, err := r.store.GetAssignment(ctx, id); err == nil && ok {
		return latest, nil
	}
	upd.ApplyTo(a)
	return a, nil
}
