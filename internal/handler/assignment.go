package handler

import (
	"context"
	"net/http"
	"strconv"

	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
)

// ListAssignments 列出分配，支持 ?employee_id=&from=&to=&weekday=
func (h *RotaHandler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var assignments []*model.Assignment
	if empID := r.URL.Query().Get("employee_id"); empID != "" && !filter.From.IsZero() && !filter.To.IsZero() {
		assignments, err = h.store.ListEmployeeAssignments(r.Context(), empID, filter.From, filter.To.AddDate(0, 0, 1))
	} else {
		assignments, err = h.store.ListAssignments(r.Context())
		if empID != "" {
			assignments = byEmployee(assignments, empID)
		}
	}
	if err != nil {
		respondError(w, r, apperrors.StoreUnavailable("list_assignments", err))
		return
	}

	assignments = filter.Apply(assignments)
	if assignments == nil {
		assignments = []*model.Assignment{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":       len(assignments),
		"assignments": assignments,
	})
}

func byEmployee(assignments []*model.Assignment, empID string) []*model.Assignment {
	out := make([]*model.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if a.EmployeeID == empID {
			out = append(out, a)
		}
	}
	return out
}

// ClearAssignments 清空全部分配
func (h *RotaHandler) ClearAssignments(w http.ResponseWriter, r *http.Request) {
	h.runMu.Lock()
	err := h.clear(r.Context())
	h.runMu.Unlock()
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RotaHandler) clear(ctx context.Context) error {
	if err := h.store.ClearAssignments(ctx); err != nil {
		return apperrors.StoreUnavailable("clear_assignments", err)
	}
	logger.WithContext(ctx).Info().Msg("已清空全部分配")
	if h.oplog != nil {
		op := &store.Operation{Type: store.OperationClear, Description: "清空全部分配"}
		if err := h.oplog.LogOperation(ctx, op); err != nil {
			logger.WithContext(ctx).Warn().Err(err).Msg("写入操作日志失败")
		}
	}
	return nil
}

// GetAssignment 读取单条分配
func (h *RotaHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
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
		respondError(w, r, apperrors.NotFound("分配", strconv.FormatInt(id, 10)))
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// UpdateAssignment 部分更新分配
func (h *RotaHandler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var upd model.AssignmentUpdate
	if err := decodeJSON(r, &upd); err != nil {
		respondError(w, r, err)
		return
	}
	if upd.IsEmpty() {
		respondError(w, r, apperrors.InvalidInput("body", "没有需要更新的字段"))
		return
	}
	if upd.EmployeeID != nil && upd.EmployeeName == nil {
		if emp := h.Roster().Employee(*upd.EmployeeID); emp != nil {
			upd.EmployeeName = &emp.Name
		}
	}

	h.runMu.Lock()
	found, err := h.store.UpdateAssignment(r.Context(), id, upd)
	h.runMu.Unlock()
	if err != nil {
		if apperrors.Is(err, apperrors.CodeValidationFail) {
			respondError(w, r, err)
			return
		}
		respondError(w, r, apperrors.StoreUnavailable("update_assignment", err))
		return
	}
	if !found {
		respondError(w, r, apperrors.NotFound("分配", strconv.FormatInt(id, 10)))
		return
	}

	a, _, err := h.store.GetAssignment(r.Context(), id)
	if err != nil {
		respondError(w, r, apperrors.StoreUnavailable("get_assignment", err))
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// DeleteAssignment 删除单条分配
func (h *RotaHandler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	found, err := h.store.DeleteAssignment(r.Context(), id)
	if err != nil {
		respondError(w, r, apperrors.StoreUnavailable("delete_assignment", err))
		return
	}
	if !found {
		respondError(w, r, apperrors.NotFound("分配", strconv.FormatInt(id, 10)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
