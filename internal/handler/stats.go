package handler

import (
	"net/http"
	"strconv"

	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/stats"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
)

const defaultOperationLimit = 50

// Stats 排班统计，支持 ?from=&to=&weekday=
func (h *RotaHandler) Stats(w http.ResponseWriter, r *http.Request) {
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
	respondJSON(w, http.StatusOK, summary)
}

// ListOperations 最近的操作日志，?limit= 默认 50
func (h *RotaHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	if h.oplog == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"operations": []*store.Operation{}})
		return
	}

	limit := defaultOperationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, r, apperrors.InvalidInput("limit", "必须为非负整数"))
			return
		}
		limit = n
	}

	ops, err := h.oplog.ListOperations(r.Context(), limit)
	if err != nil {
		respondError(w, r, apperrors.StoreUnavailable("list_operations", err))
		return
	}
	if ops == nil {
		ops = []*store.Operation{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"operations": ops})
}
