// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/0pancd04/rota-ai-desertation/internal/config"
	"github.com/0pancd04/rota-ai-desertation/pkg/careplan"
	"github.com/0pancd04/rota-ai-desertation/pkg/dispatcher/constraint"
	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/progress"
	"github.com/0pancd04/rota-ai-desertation/pkg/stats"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
	"github.com/0pancd04/rota-ai-desertation/pkg/travel"
)

// Deps 处理器依赖
type Deps struct {
	Store     store.Store
	OpLog     store.OperationLog // 可为空
	Travel    travel.Provider
	Tracker   *progress.Tracker
	Roster    *model.Roster // 启动时加载的名册，可为空
	Scheduler config.SchedulerConfig
}

// RotaHandler 排班API处理器
type RotaHandler struct {
	store     store.Store
	oplog     store.OperationLog
	travel    travel.Provider
	tracker   *progress.Tracker
	filter    *constraint.Filter
	estimator *careplan.Estimator

	timeout       time.Duration
	maxIterations int
	location      *time.Location

	mu     sync.RWMutex
	roster *model.Roster

	// 写分配的运行互斥执行，重叠与同日检查到写入之间不允许穿插
	runMu sync.Mutex

	// 异步任务使用的根上下文，服务关闭时取消
	baseCtx context.Context
}

// NewRotaHandler 创建排班处理器
func NewRotaHandler(deps Deps) *RotaHandler {
	loc, err := deps.Scheduler.Location()
	if err != nil {
		loc = time.UTC
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = progress.NewTracker()
	}
	tp := deps.Travel
	if tp == nil {
		tp = travel.NewHeuristicProvider()
	}
	roster := deps.Roster
	if roster == nil {
		roster = &model.Roster{}
	}

	return &RotaHandler{
		store:         deps.Store,
		oplog:         deps.OpLog,
		travel:        tp,
		tracker:       tracker,
		filter:        constraint.NewFilter(),
		estimator:     careplan.NewEstimator(),
		timeout:       deps.Scheduler.DefaultTimeout,
		maxIterations: deps.Scheduler.MaxIterations,
		location:      loc,
		roster:        roster,
		baseCtx:       context.Background(),
	}
}

// WithBaseContext 设置异步任务的根上下文
func (h *RotaHandler) WithBaseContext(ctx context.Context) *RotaHandler {
	h.baseCtx = ctx
	return h
}

// Register 注册路由
func (h *RotaHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/rota/generate", h.Generate)
	mux.HandleFunc("POST /api/v1/rota/reanalyze", h.Reanalyze)
	mux.HandleFunc("GET /api/v1/rota/recommend/{id}", h.Recommend)
	mux.HandleFunc("GET /api/v1/rota/validate", h.Validate)
	mux.HandleFunc("GET /api/v1/rota/export", h.Export)

	mux.HandleFunc("GET /api/v1/tasks", h.ListTasks)
	mux.HandleFunc("GET /api/v1/tasks/{id}", h.GetTask)

	mux.HandleFunc("GET /api/v1/assignments", h.ListAssignments)
	mux.HandleFunc("DELETE /api/v1/assignments", h.ClearAssignments)
	mux.HandleFunc("GET /api/v1/assignments/{id}", h.GetAssignment)
	mux.HandleFunc("PUT /api/v1/assignments/{id}", h.UpdateAssignment)
	mux.HandleFunc("DELETE /api/v1/assignments/{id}", h.DeleteAssignment)

	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/operations", h.ListOperations)

	mux.HandleFunc("GET /api/v1/roster", h.GetRoster)
	mux.HandleFunc("POST /api/v1/roster", h.UploadRoster)
}

// Roster 返回当前名册
func (h *RotaHandler) Roster() *model.Roster {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.roster
}

// SetRoster 替换当前名册
func (h *RotaHandler) SetRoster(r *model.Roster) {
	h.mu.Lock()
	h.roster = r
	h.mu.Unlock()
}

// CleanupTasks 清理过期任务
func (h *RotaHandler) CleanupTasks(maxAge time.Duration) int {
	return h.tracker.Cleanup(maxAge)
}

// parseDate 解析 YYYY-MM-DD，空字符串返回零值
func (h *RotaHandler) parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(model.DateLayout, value, h.location)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput(field, "日期格式应为 YYYY-MM-DD")
	}
	return t, nil
}

// parseFilter 从查询参数解析统计范围 ?from=&to=&weekday=monday,tuesday
func (h *RotaHandler) parseFilter(r *http.Request) (stats.Filter, error) {
	q := r.URL.Query()
	var f stats.Filter
	var err error
	if f.From, err = h.parseDate("from", q.Get("from")); err != nil {
		return f, err
	}
	if f.To, err = h.parseDate("to", q.Get("to")); err != nil {
		return f, err
	}
	if raw := q.Get("weekday"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			wd, ok := stats.ParseWeekday(name)
			if !ok {
				return f, apperrors.InvalidInput("weekday", "未知的星期: "+name)
			}
			f.Weekdays = append(f.Weekdays, wd)
		}
	}
	return f, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.InvalidInput("id", "必须为正整数")
	}
	return id, nil
}

// decodeJSON 解析请求体，空请求体视为零值
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Wrap(err, apperrors.CodeInvalidInput, "解析请求失败")
	}
	return nil
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.From(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("请求处理失败")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
		"fields":  appErr.Fields,
	})
}
