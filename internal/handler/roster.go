package handler

import (
	"mime"
	"net/http"
	"strings"

	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/roster"
)

// maxUploadBytes 名册上传大小上限
const maxUploadBytes = 10 << 20

// RosterResponse 名册上传响应
type RosterResponse struct {
	Employees int                 `json:"employees"`
	Patients  int                 `json:"patients"`
	Skipped   []roster.SkippedRow `json:"skipped,omitempty"`
}

// GetRoster 返回当前名册
func (h *RotaHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Roster())
}

// UploadRoster 上传名册
// multipart/form-data 的 file 字段为 Excel 工作簿，application/json 为 JSON 名册
func (h *RotaHandler) UploadRoster(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		loaded *model.Roster
		resp   RosterResponse
	)

	switch {
	case mediaType == "multipart/form-data":
		file, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, r, apperrors.InvalidInput("file", "缺少上传文件"))
			return
		}
		defer file.Close()

		rst, rep, err := roster.ImportExcel(file)
		if err != nil {
			respondError(w, r, err)
			return
		}
		loaded = rst
		resp.Skipped = rep.Skipped

	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		rst, err := roster.ImportJSON(r.Body)
		if err != nil {
			respondError(w, r, err)
			return
		}
		loaded = rst

	default:
		respondError(w, r, apperrors.InvalidInput("Content-Type", "仅支持 multipart/form-data 或 application/json"))
		return
	}

	h.SetRoster(loaded)
	resp.Employees = len(loaded.Employees)
	resp.Patients = len(loaded.Patients)

	logger.WithContext(r.Context()).Info().
		Int("employees", resp.Employees).
		Int("patients", resp.Patients).
		Int("skipped", len(resp.Skipped)).
		Msg("名册已更新")

	respondJSON(w, http.StatusOK, resp)
}
