// Package solver 提供周排班求解器
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/0pancd04/rota-ai-desertation/pkg/dispatcher"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/progress"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
)

// DaysPerWeek 一次排班覆盖的天数
const DaysPerWeek = 7

// Solver 求解器接口
type Solver interface {
	// Generate 生成一周排班
	Generate(ctx context.Context, req *GenerateRequest) (*Result, error)

	// Name 返回求解器名称
	Name() string
}

// GenerateRequest 周排班请求
type GenerateRequest struct {
	RunID     string            `json:"run_id,omitempty"`
	StartDate time.Time         `json:"start_date,omitempty"` // 零值表示下一个周一
	Employees []*model.Employee `json:"employees"`
	Patients  []*model.Patient  `json:"patients"`
	Reporter  progress.Reporter `json:"-"`
}

// DaySummary 单日结果
type DaySummary struct {
	Date         string `json:"date"`
	Created      int    `json:"created"`
	UnmetMinutes int    `json:"unmet_minutes"` // 当日结束时仍未满足的需求
}

// Statistics 排班统计
type Statistics struct {
	TotalVisitMinutes  int `json:"total_visit_minutes"`
	TotalTravelMinutes int `json:"total_travel_minutes"`
	Iterations         int `json:"iterations"`
	IterationLimitHits int `json:"iteration_limit_hits"`
	UnmetMinutes       int `json:"unmet_minutes"`
}

// Result 求解结果
type Result struct {
	RunID       string              `json:"run_id"`
	StartDate   string              `json:"start_date"`
	Created     int                 `json:"created"`
	Days        []DaySummary        `json:"days"`
	Assignments []*model.Assignment `json:"assignments"`
	Statistics  *Statistics         `json:"statistics"`
	Duration    time.Duration       `json:"duration"`
	Success     bool                `json:"success"`
	Message     string              `json:"message,omitempty"`
}

// WeeklySolver 按天、按员工顺序调用路线规划的周排班求解器
type WeeklySolver struct {
	router *dispatcher.RouteEngine
	oplog  store.OperationLog
	logger *logger.RotaLogger
	now    func() time.Time
}

// SolverOption 求解器选项
type SolverOption func(*WeeklySolver)

// WithClock 设置当前时间来源（用于计算下一个周一）
func WithClock(now func() time.Time) SolverOption {
	return func(s *WeeklySolver) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOperationLog 设置操作日志
func WithOperationLog(oplog store.OperationLog) SolverOption {
	return func(s *WeeklySolver) {
		s.oplog = oplog
	}
}

// NewWeeklySolver 创建周排班求解器
func NewWeeklySolver(router *dispatcher.RouteEngine, opts ...SolverOption) *WeeklySolver {
	s := &WeeklySolver{
		router: router,
		logger: logger.NewRotaLogger("solver"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name 返回求解器名称
func (s *WeeklySolver) Name() string {
	return "WeeklyGreedySolver"
}

// NextMonday 返回不早于 t 的第一个周一零点（t 为周一时返回当天）
func NextMonday(t time.Time) time.Time {
	day := model.DayStart(t)
	offset := (8 - int(day.Weekday())) % 7
	return day.AddDate(0, 0, offset)
}

// Generate 生成一周排班
//
// 每天重新计算需求，员工按输入顺序依次规划路线，每次上门立即写入存储。
// 存储失败或 ctx 取消时返回已完成的部分结果与错误。
func (s *WeeklySolver) Generate(ctx context.Context, req *GenerateRequest) (*Result, error) {
	startTime := time.Now()

	roster := &model.Roster{Employees: req.Employees, Patients: req.Patients}
	if err := roster.Validate(); err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	startDate := model.DayStart(req.StartDate)
	if req.StartDate.IsZero() {
		startDate = NextMonday(s.now())
	}
	reporter := progress.OrDiscard(req.Reporter)

	result := &Result{
		RunID:       runID,
		StartDate:   startDate.Format(model.DateLayout),
		Days:        make([]DaySummary, 0, DaysPerWeek),
		Assignments: make([]*model.Assignment, 0),
		Statistics:  &Statistics{},
	}

	s.logger.StartRun(runID, startDate, len(req.Employees), len(req.Patients))
	reporter.Report(progress.Event{
		TaskID:    runID,
		Step:      "开始生成周排班",
		TotalDays: DaysPerWeek,
		Time:      s.now(),
	})

	for d := 0; d < DaysPerWeek; d++ {
		day := startDate.AddDate(0, 0, d)
		summary, err := s.generateDay(ctx, runID, day, req, result)
		if summary != nil {
			result.Days = append(result.Days, *summary)
		}
		if err != nil {
			return s.finish(ctx, result, startTime, err)
		}

		reporter.Report(progress.Event{
			TaskID:    runID,
			Percent:   (d + 1) * 100 / DaysPerWeek,
			Step:      summary.Date,
			Day:       d + 1,
			TotalDays: DaysPerWeek,
			Created:   result.Created,
			Time:      s.now(),
		})
	}

	return s.finish(ctx, result, startTime, nil)
}

// generateDay 规划一天，所有员工共享当天的需求池
func (s *WeeklySolver) generateDay(ctx context.Context, runID string, day time.Time, req *GenerateRequest, result *Result) (*DaySummary, error) {
	summary := &DaySummary{Date: day.Format(model.DateLayout)}
	pool := s.router.Estimator().NewDayPool(req.Patients)

	for _, emp := range req.Employees {
		if err := ctx.Err(); err != nil {
			summary.UnmetMinutes = pool.Total()
			return summary, err
		}

		plan, err := s.router.RouteDay(ctx, emp, day, pool, req.Patients)
		if plan != nil {
			summary.Created += len(plan.Visits)
			result.Created += len(plan.Visits)
			result.Assignments = append(result.Assignments, plan.Visits...)
			result.Statistics.Iterations += plan.Iterations
			if plan.StopReason == dispatcher.StopIterationLimit {
				result.Statistics.IterationLimitHits++
			}
			for _, v := range plan.Visits {
				result.Statistics.TotalVisitMinutes += v.DurationMinutes
				result.Statistics.TotalTravelMinutes += v.TravelMinutes
			}
		}
		if err != nil {
			summary.UnmetMinutes = pool.Total()
			return summary, err
		}
	}

	summary.UnmetMinutes = pool.Total()
	result.Statistics.UnmetMinutes += summary.UnmetMinutes
	s.logger.DayComplete(runID, day, summary.Created)
	s.logOperation(ctx, store.OperationDailySchedule, fmt.Sprintf("生成 %s 排班", summary.Date), map[string]any{
		"run_id":        runID,
		"date":          summary.Date,
		"created":       summary.Created,
		"unmet_minutes": summary.UnmetMinutes,
	})
	return summary, nil
}

// finish 收尾：记录周操作日志与运行日志
func (s *WeeklySolver) finish(ctx context.Context, result *Result, startTime time.Time, err error) (*Result, error) {
	result.Duration = time.Since(startTime)
	result.Success = err == nil

	if err != nil {
		result.Message = fmt.Sprintf("排班中断，已创建 %d 条分配", result.Created)
	} else {
		result.Message = fmt.Sprintf("已创建 %d 条分配", result.Created)
		s.logOperation(ctx, store.OperationWeeklySchedule, fmt.Sprintf("生成 %s 起的周排班", result.StartDate), map[string]any{
			"run_id":     result.RunID,
			"start_date": result.StartDate,
			"created":    result.Created,
		})
	}

	s.logger.RunComplete(result.RunID, result.Duration, result.Created, err)
	return result, err
}

func (s *WeeklySolver) logOperation(ctx context.Context, opType, description string, details map[string]any) {
	if s.oplog == nil {
		return
	}
	op := &store.Operation{Type: opType, Description: description, Details: details}
	if err := s.oplog.LogOperation(ctx, op); err != nil {
		s.logger.Base().Warn().Err(err).Str("type", opType).Msg("写入操作日志失败")
	}
}
