package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/0pancd04/rota-ai-desertation/internal/metrics"
	"github.com/0pancd04/rota-ai-desertation/pkg/dispatcher"
	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/progress"
	"github.com/0pancd04/rota-ai-desertation/pkg/report"
	"github.com/0pancd04/rota-ai-desertation/pkg/scheduler/solver"
	"github.com/0pancd04/rota-ai-desertation/pkg/stats"
	"github.com/0pancd04/rota-ai-desertation/pkg/swap"
	"github.com/0pancd04/rota-ai-desertation/pkg/validator"
)

// GenerateRequest 周排班生成请求
type GenerateRequest struct {
	StartDate string            `json:"start_date,omitempty"` // YYYY-MM-DD，默认下一个周一
	Employees []*model.Employee `json:"employees,omitempty"`  // 为空时使用已加载的名册
	Patients  []*model.Patient  `json:"patients,omitempty"`
	// 生成前清空已有分配
	ClearExisting bool `json:"clear_existing,omitempty"`
}

// GenerateResponse 周排班生成响应
type GenerateResponse struct {
	*solver.Result
	Summary *stats.Summary `json:"summary,omitempty"`
}

// AsyncResponse 异步任务响应
type AsyncResponse struct {
	TaskID    string          `json:"task_id"`
	Status    progress.Status `json:"status"`
	StatusURL string          `json:"status_url"`
}

// ReanalyzeRequest 重新分配请求
type ReanalyzeRequest struct {
	AssignmentIDs   []int64 `json:"assignment_ids"`
	AllowTimeChange bool    `json:"allow_time_change,omitempty"`
}

// ReanalyzeResponse 重新分配响应
type ReanalyzeResponse struct {
	Requested int                 `json:"requested"`
	Updated   int                 `json:"updated"`
	Records   []*model.Assignment `json:"records"`
}

// ValidateResponse 排班校验响应
type ValidateResponse struct {
	Valid       bool                 `json:"valid"`
	Assignments int                  `json:"assignments"`
	Conflicts   []validator.Conflict `json:"conflicts"`
}

// Generate 生成周排班，?async=true 时后台执行并返回任务ID
func (h *RotaHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	genReq, roster, err := h.buildGenerateRequest(&req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		task := h.tracker.Create(progress.TaskWeeklyRota, fmt.Sprintf("生成周排班 (%d 名员工, %d 名服务对象)", len(roster.Employees), len(roster.Patients)))
		genReq.RunID = task.ID
		genReq.Reporter = h.tracker.Reporter(task.ID)

		go h.runAsync(task.ID, genReq, roster, req.ClearExisting)

		respondJSON(w, http.StatusAccepted, AsyncResponse{
			TaskID:    task.ID,
			Status:    task.Status,
			StatusURL: "/api/v1/tasks/" + task.ID,
		})
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	resp, err := h.generate(ctx, genReq, roster, req.ClearExisting)
	if err != nil {
		appErr := apperrors.From(err)
		if resp != nil {
			appErr = appErr.WithField("created", resp.Created)
		}
		respondError(w, r, appErr)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *RotaHandler) buildGenerateRequest(req *GenerateRequest) (*solver.GenerateRequest, *model.Roster, error) {
	roster := h.Roster()
	if len(req.Employees) > 0 || len(req.Patients) > 0 {
		roster = &model.Roster{Employees: req.Employees, Patients: req.Patients}
		if err := roster.Validate(); err != nil {
			return nil, nil, err
		}
	}
	if len(roster.Employees) == 0 {
		return nil, nil, apperrors.InvalidInput("employees", "名册中没有员工，请先上传名册")
	}

	startDate, err := h.parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, nil, err
	}

	return &solver.GenerateRequest{
		StartDate: startDate,
		Employees: roster.Employees,
		Patients:  roster.Patients,
	}, roster, nil
}

func (h *RotaHandler) runAsync(taskID string, req *solver.GenerateRequest, roster *model.Roster, clearFirst bool) {
	metrics.TaskStarted()
	defer metrics.TaskFinished()

	h.tracker.Start(taskID)
	ctx, cancel := h.withTimeout(h.baseCtx)
	defer cancel()

	resp, err := h.generate(ctx, req, roster, clearFirst)
	if err != nil {
		var partial any
		if resp != nil {
			partial = resp
		}
		h.tracker.Fail(taskID, err, partial)
		return
	}
	h.tracker.Complete(taskID, resp)
}

// generate 执行排班并计算统计，失败时返回部分结果
// 同一时刻只有一次运行写入存储，后到的请求等待前一次完成
func (h *RotaHandler) generate(ctx context.Context, req *solver.GenerateRequest, roster *model.Roster, clearFirst bool) (*GenerateResponse, error) {
	h.runMu.Lock()
	defer h.runMu.Unlock()

	if clearFirst {
		if err := h.clear(ctx); err != nil {
			return nil, err
		}
	}

	router := dispatcher.NewRouteEngine(h.store, h.travel,
		dispatcher.WithMaxIterations(h.maxIterations),
		dispatcher.WithFilter(h.filter),
		dispatcher.WithEstimator(h.estimator),
	)
	loc := h.location
	opts := []solver.SolverOption{
		solver.WithClock(func() time.Time { return time.Now().In(loc) }),
	}
	if h.oplog != nil {
		opts = append(opts, solver.WithOperationLog(h.oplog))
	}

	started := time.Now()
	result, err := solver.NewWeeklySolver(router, opts...).Generate(ctx, req)
	created := 0
	if result != nil {
		created = result.Created
	}
	metrics.RecordRotaGeneration(err == nil, time.Since(started), created)

	if result == nil {
		return nil, err
	}

	resp := &GenerateResponse{Result: result}
	if err == nil {
		summary := stats.NewCalculator(h.estimator).Compute(result.Assignments, roster, stats.Filter{})
		metrics.SetRotaQuality(summary.Fairness.VisitMinutesGini, summary.DemandSatisfaction)
		resp.Summary = summary
	}
	return resp, err
}

func (h *RotaHandler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

// GetTask 查询异步任务
func (h *RotaHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, ok := h.tracker.Get(id)
	if !ok {
		respondError(w, r, apperrors.NotFound("任务", id))
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// ListTasks 列出全部任务
func (h *RotaHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": h.tracker.List(),
	})
}

// Reanalyze 重新分配指定的上门
func (h *RotaHandler) Reanalyze(w http.ResponseWriter, r *http.Request) {
	var req ReanalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if len(req.AssignmentIDs) == 0 {
		respondError(w, r, apperrors.InvalidInput("assignment_ids", "不能为空"))
		return
	}

	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	h.runMu.Lock()
	updated, err := h.reanalyzer().Reanalyze(ctx, req.AssignmentIDs, req.AllowTimeChange)
	h.runMu.Unlock()
	metrics.RecordReassignment(len(req.AssignmentIDs), len(updated))
	if err != nil {
		respondError(w, r, err)
		return
	}

	logger.WithContext(r.Context()).Info().
		Int("requested", len(req.AssignmentIDs)).
		Int("updated", len(updated)).
		Msg("重新分配请求完成")

	respondJSON(w, http.StatusOK, ReanalyzeResponse{
		Requested: len(req.AssignmentIDs),
		Updated:   len(updated),
		Records:   updated,
	})
}

// Recommend 返回某条上门的接替候选
func (h *RotaHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	a, found, err := h.store.GetAssignment(r.Context(), id)
	if err != nil {
		respondError(w, r, apperrors.StoreUnavailable("get_assignment", err))
		return
	}
	if !found {
		respondError(w, r, apperrors.NotFound("分配", r.PathValue("id")))
		return
	}

	patient := h.Roster().Patient(a.PatientID)
	if patient == nil {
		respondError(w, r, apperrors.MissingReference("服务对象", a.PatientID))
		return
	}

	recs, err := h.reanalyzer().Recommend(r.Context(), a, patient)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if len(recs) == 0 {
		respondError(w, r, apperrors.NoAvailableEmployee(r.PathValue("id"), "没有可接替的员工"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"assignment":      a,
		"recommendations": recs,
	})
}

func (h *RotaHandler) reanalyzer() *swap.Reanalyzer {
	opts := []swap.ReanalyzerOption{swap.WithFilter(h.filter)}
	if h.oplog != nil {
		opts = append(opts, swap.WithOperationLog(h.oplog))
	}
	return swap.NewReanalyzer(h.store, h.travel, h.Roster(), opts...)
}

// Validate 检测当前排班中的冲突
func (h *RotaHandler) Validate(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.store.ListAssignments(r.Context())
	if err != nil {
		respondError(w, r, apperrors.StoreUnavailable("list_assignments", err))
		return
	}

	conflicts := validator.NewConflictDetector(nil, h.filter).DetectAll(assignments, h.Roster())
	if conflicts == nil {
		conflicts = []validator.Conflict{}
	}
	respondJSON(w, http.StatusOK, ValidateResponse{
		Valid:       !validator.HasErrors(conflicts),
		Assignments: len(assignments),
		Conflicts:   conflicts,
	})
}

// Export 导出排班 Excel
func (h *RotaHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	assignments, err := h.store.ListAssignments(r.Context())
	if err != nil {
		respondError(w, r, apperrors.StoreUnavailable("list_assignments", err))
		return
	}

	summary := stats.NewCalculator(h.estimator).Compute(assignments, h.Roster(), filter)
	data, err := report.ExportRota(filter.Apply(assignments), summary)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="rota-%s.xlsx"`, time.Now().In(h.location).Format("20060102")))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
