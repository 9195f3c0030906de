// Package dispatcher 提供单员工单日的贪心上门路线规划
package dispatcher

import (
	"context"
	"sort"
	"time"

	"github.com/0pancd04/rota-ai-desertation/pkg/careplan"
	"github.com/0pancd04/rota-ai-desertation/pkg/dispatcher/constraint"
	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
	"github.com/0pancd04/rota-ai-desertation/pkg/travel"
	"github.com/0pancd04/rota-ai-desertation/pkg/validator"
)

// 默认参数
const (
	DefaultMaxIterations = 1000
	DefaultRetryStep     = 5 * time.Minute
)

// StopReason 当日规划结束原因
type StopReason string

const (
	StopShiftEnd       StopReason = "shift_end"       // 到达班次结束
	StopVisitCap       StopReason = "visit_cap"       // 达到每日上门上限
	StopNoCandidates   StopReason = "no_candidates"   // 没有可上门的服务对象
	StopTooShort       StopReason = "too_short"       // 截断后不足最短时长
	StopIterationLimit StopReason = "iteration_limit" // 达到迭代上限
	StopCancelled      StopReason = "cancelled"       // 上下文取消
	StopStoreError     StopReason = "store_error"     // 存储失败
)

// RouteEngine 贪心路线规划引擎
type RouteEngine struct {
	store         store.Store
	guard         *validator.Guard
	filter        *constraint.Filter
	travel        travel.Provider
	estimator     *careplan.Estimator
	maxIterations int
	retryStep     time.Duration
	log           *logger.RotaLogger
}

// Option 引擎选项
type Option func(*RouteEngine)

// WithMaxIterations 设置每名员工每日的迭代上限
func WithMaxIterations(n int) Option {
	return func(e *RouteEngine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithFilter 设置资格过滤器
func WithFilter(f *constraint.Filter) Option {
	return func(e *RouteEngine) {
		if f != nil {
			e.filter = f
		}
	}
}

// WithEstimator 设置需求估算器
func WithEstimator(est *careplan.Estimator) Option {
	return func(e *RouteEngine) {
		if est != nil {
			e.estimator = est
		}
	}
}

// NewRouteEngine 创建路线规划引擎
func NewRouteEngine(s store.Store, tp travel.Provider, opts ...Option) *RouteEngine {
	e := &RouteEngine{
		store:         s,
		guard:         validator.NewGuard(s),
		filter:        constraint.NewFilter(),
		travel:        tp,
		estimator:     careplan.NewEstimator(),
		maxIterations: DefaultMaxIterations,
		retryStep:     DefaultRetryStep,
		log:           logger.NewRotaLogger("router"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimator 返回需求估算器
func (e *RouteEngine) Estimator() *careplan.Estimator {
	return e.estimator
}

// DayPlan 单日规划结果
type DayPlan struct {
	EmployeeID string              `json:"employee_id"`
	Date       string              `json:"date"`
	Visits     []*model.Assignment `json:"visits"`
	StopReason StopReason          `json:"stop_reason"`
	Iterations int                 `json:"iterations"`
}

// candidate 候选服务对象
type candidate struct {
	patient *model.Patient
	travel  int
}

// stepOutcome 单步结果
type stepOutcome int

const (
	outcomePlaced stepOutcome = iota
	outcomeBlocked
	outcomeTooShort
	outcomeExhausted
)

// step 单步规划结果
type step struct {
	outcome   stepOutcome
	visit     *model.Assignment
	patient   *model.Patient
	nextClock time.Time
}

// RouteDay 为一名员工规划一天的上门路线，并将每次上门写入存储
//
// 从班次开始、员工住址出发，每次选择出行时间最短的可服务对象（同等时取输入顺序靠前者），
// 需求在 pool 中扣减。存储失败或 ctx 取消时返回已写入的部分结果与错误。
func (e *RouteEngine) RouteDay(ctx context.Context, emp *model.Employee, day time.Time, pool *careplan.DemandPool, patients []*model.Patient) (*DayPlan, error) {
	window := emp.Shift()
	shift := window.On(day)
	plan := &DayPlan{
		EmployeeID: emp.ID,
		Date:       shift.Start.Format(model.DateLayout),
	}

	if window.IsEmpty() {
		plan.StopReason = StopShiftEnd
		return plan, nil
	}

	clock := shift.Start
	location := emp.Address

	for {
		if err := ctx.Err(); err != nil {
			plan.StopReason = StopCancelled
			return plan, err
		}
		if !clock.Before(shift.End) {
			plan.StopReason = StopShiftEnd
			break
		}
		if len(plan.Visits) >= emp.VisitCap() {
			plan.StopReason = StopVisitCap
			break
		}
		if plan.Iterations >= e.maxIterations {
			e.log.IterationLimit(emp.ID, day, e.maxIterations)
			plan.StopReason = StopIterationLimit
			break
		}
		plan.Iterations++

		cands, err := e.candidates(ctx, emp, location, pool, patients)
		if err != nil {
			plan.StopReason = StopCancelled
			return plan, err
		}
		if len(cands) == 0 {
			plan.StopReason = StopNoCandidates
			break
		}

		st, err := e.next(ctx, emp, day, clock, shift, cands, pool)
		if err != nil {
			plan.StopReason = StopStoreError
			if ctx.Err() != nil {
				plan.StopReason = StopCancelled
			}
			return plan, err
		}

		switch st.outcome {
		case outcomePlaced:
			plan.Visits = append(plan.Visits, st.visit)
			location = st.patient.Address
			clock = st.visit.EndTime
		case outcomeBlocked:
			clock = st.nextClock
		case outcomeTooShort:
			plan.StopReason = StopTooShort
			return plan, nil
		case outcomeExhausted:
			plan.StopReason = StopNoCandidates
			return plan, nil
		}
	}

	return plan, nil
}

// candidates 返回当前位置下的候选服务对象，按出行时间升序（稳定排序保持输入顺序）
func (e *RouteEngine) candidates(ctx context.Context, emp *model.Employee, location string, pool *careplan.DemandPool, patients []*model.Patient) ([]candidate, error) {
	var cands []candidate
	for _, p := range patients {
		if pool.Remaining(p.ID) <= 0 {
			continue
		}
		if !e.filter.CanServe(emp, p) {
			continue
		}
		minutes, err := e.travel.TravelTime(ctx, location, p.Address, emp.Transport)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.log.VisitSkipped(emp.ID, p.ID, "出行时间查询失败")
			continue
		}
		cands = append(cands, candidate{patient: p, travel: min(max(minutes, 0), model.MaxTravelMinutes)})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].travel < cands[j].travel
	})
	return cands, nil
}

// next 尝试安排下一次上门
func (e *RouteEngine) next(ctx context.Context, emp *model.Employee, day, clock time.Time, shift model.TimeRange, cands []candidate, pool *careplan.DemandPool) (*step, error) {
	nearest := cands[0]
	iv, ok := e.fit(nearest, clock, shift, pool)
	if !ok {
		return &step{outcome: outcomeTooShort}, nil
	}

	overlaps, err := e.guard.Overlaps(ctx, emp.ID, iv.Start, iv.End)
	if err != nil {
		return nil, apperrors.StoreUnavailable("has_overlap", err)
	}
	if overlaps {
		return e.blocked(ctx, emp, clock, nearest, iv)
	}

	served, err := e.guard.AlreadyServedToday(ctx, emp.ID, nearest.patient.ID, day)
	if err != nil {
		return nil, apperrors.StoreUnavailable("has_served_today", err)
	}
	if !served {
		return e.place(ctx, emp, nearest, iv, pool)
	}

	// 最近的服务对象今天已上门，改选下一个尚未上门的候选
	for _, alt := range cands[1:] {
		served, err := e.guard.AlreadyServedToday(ctx, emp.ID, alt.patient.ID, day)
		if err != nil {
			return nil, apperrors.StoreUnavailable("has_served_today", err)
		}
		if served {
			continue
		}

		altIv, ok := e.fit(alt, clock, shift, pool)
		if !ok {
			return &step{outcome: outcomeTooShort}, nil
		}
		overlaps, err := e.guard.Overlaps(ctx, emp.ID, altIv.Start, altIv.End)
		if err != nil {
			return nil, apperrors.StoreUnavailable("has_overlap", err)
		}
		if overlaps {
			return e.blocked(ctx, emp, clock, alt, altIv)
		}
		return e.place(ctx, emp, alt, altIv, pool)
	}

	// 所有候选今天都已上门，推迟时钟无法改变结果
	return &step{outcome: outcomeExhausted}, nil
}

// fit 计算上门时间段，超出班次时截断；截断后不足最短时长返回 false
func (e *RouteEngine) fit(c candidate, clock time.Time, shift model.TimeRange, pool *careplan.DemandPool) (model.TimeRange, bool) {
	duration := e.estimator.VisitMinutes(c.patient, pool.Remaining(c.patient.ID))
	start := clock.Add(time.Duration(c.travel) * time.Minute)
	end := start.Add(time.Duration(duration) * time.Minute)

	if end.After(shift.End) {
		fitMinutes := int(shift.End.Sub(start) / time.Minute)
		if fitMinutes < model.MinVisitMinutes {
			return model.TimeRange{}, false
		}
		end = start.Add(time.Duration(fitMinutes) * time.Minute)
	}
	return model.TimeRange{Start: start, End: end}, true
}

// blocked 计算下一次尝试的时钟：按固定步长推进，直到上门开始不早于阻塞记录结束
func (e *RouteEngine) blocked(ctx context.Context, emp *model.Employee, clock time.Time, c candidate, iv model.TimeRange) (*step, error) {
	next := clock.Add(e.retryStep)

	until, isBlocked, err := e.guard.BlockedUntil(ctx, emp.ID, iv.Start, iv.End)
	if err != nil {
		return nil, apperrors.StoreUnavailable("blocked_until", err)
	}
	if isBlocked {
		need := until.Sub(clock.Add(time.Duration(c.travel) * time.Minute))
		if need > 0 {
			steps := (need + e.retryStep - 1) / e.retryStep
			next = clock.Add(steps * e.retryStep)
		}
	}

	return &step{outcome: outcomeBlocked, nextClock: next}, nil
}

// place 写入上门记录并扣减需求
func (e *RouteEngine) place(ctx context.Context, emp *model.Employee, c candidate, iv model.TimeRange, pool *careplan.DemandPool) (*step, error) {
	a := &model.Assignment{
		EmployeeID:      emp.ID,
		EmployeeName:    emp.Name,
		PatientID:       c.patient.ID,
		PatientName:     c.patient.Name,
		ServiceType:     c.patient.PrimaryService(),
		StartTime:       iv.Start,
		EndTime:         iv.End,
		DurationMinutes: iv.Minutes(),
		TravelMinutes:   c.travel,
		PriorityScore:   model.DefaultPriorityScore,
		Reason:          model.ReasonScheduled,
	}

	if _, err := e.store.CreateAssignment(ctx, a); err != nil {
		if apperrors.Is(err, apperrors.CodeValidationFail) {
			return nil, err
		}
		return nil, apperrors.StoreUnavailable("create_assignment", err)
	}
	pool.Consume(c.patient.ID, a.DurationMinutes)

	return &step{outcome: outcomePlaced, visit: a, patient: c.patient}, nil
}
