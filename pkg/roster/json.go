package roster

import (
	"encoding/json"
	"io"

	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// ImportJSON 读取 JSON 名册 {"employees": [...], "patients": [...]}
// 缺省字段补全为默认值，名册 ID 必须非空且唯一
func ImportJSON(r io.Reader) (*model.Roster, error) {
	var roster model.Roster
	if err := json.NewDecoder(r).Decode(&roster); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeImportFailed, "无法解析 JSON 名册")
	}
	Normalize(&roster)
	if err := roster.Validate(); err != nil {
		return nil, err
	}
	return &roster, nil
}

// Normalize 补全名册的默认值
func Normalize(r *model.Roster) {
	for _, e := range r.Employees {
		if e == nil {
			continue
		}
		e.ShiftStart = NormalizeClock(e.ShiftStart, model.DefaultShiftStart)
		e.ShiftEnd = NormalizeClock(e.ShiftEnd, model.DefaultShiftEnd)
		if e.Qualification == "" {
			e.Qualification = model.QualificationCareWorker
		}
		if e.Transport == "" {
			e.Transport = model.TransportCar
		}
	}
	for _, p := range r.Patients {
		if p == nil {
			continue
		}
		if p.PreferredLanguage == "" {
			p.PreferredLanguage = "English"
		}
	}
}
