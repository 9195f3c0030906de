package model

import (
	"strings"
)

// DefaultMaxVisitsPerDay 每名员工每日最多上门次数
const DefaultMaxVisitsPerDay = 8

// Qualification 员工资质等级
type Qualification string

const (
	QualificationCareWorker       Qualification = "care_worker"        // 普通护工
	QualificationSeniorCareWorker Qualification = "senior_care_worker" // 高级护工
	QualificationNurse            Qualification = "nurse"              // 护士（临床资质）
)

// ParseQualification 从自由文本推断资质等级
func ParseQualification(text string) Qualification {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "nurse"), strings.Contains(t, "clinical"):
		return QualificationNurse
	case strings.Contains(t, "senior"):
		return QualificationSeniorCareWorker
	default:
		return QualificationCareWorker
	}
}

// IsClinical 是否具备临床资质
func (q Qualification) IsClinical() bool {
	return q == QualificationNurse
}

// TransportMode 出行方式
type TransportMode string

const (
	TransportCar           TransportMode = "car"
	TransportPublicTransit TransportMode = "public_transit"
	TransportBicycle       TransportMode = "bicycle"
	TransportWalking       TransportMode = "walking"
)

// ParseTransportMode 解析出行方式，无法识别时默认为自驾
func ParseTransportMode(text string) TransportMode {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "transit"), strings.Contains(t, "bus"), strings.Contains(t, "train"), strings.Contains(t, "public"):
		return TransportPublicTransit
	case strings.Contains(t, "bicycl"), strings.Contains(t, "bike"), strings.Contains(t, "cycl"):
		return TransportBicycle
	case strings.Contains(t, "walk"), strings.Contains(t, "foot"):
		return TransportWalking
	default:
		return TransportCar
	}
}

// Employee 护理员工
type Employee struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Address         string        `json:"address"`
	Qualification   Qualification `json:"qualification"`
	Languages       []string      `json:"languages,omitempty"`
	Transport       TransportMode `json:"transport"`
	ShiftStart      string        `json:"shift_start"` // HH:MM
	ShiftEnd        string        `json:"shift_end"`   // HH:MM
	MaxVisitsPerDay int           `json:"max_visits_per_day,omitempty"`
}

// IsClinical 是否具备临床资质
func (e *Employee) IsClinical() bool {
	return e.Qualification.IsClinical()
}

// Shift 返回员工班次窗口
func (e *Employee) Shift() ShiftWindow {
	w, _ := ParseShiftWindow(e.ShiftStart, e.ShiftEnd)
	return w
}

// VisitCap 返回每日上门上限
func (e *Employee) VisitCap() int {
	if e.MaxVisitsPerDay > 0 {
		return e.MaxVisitsPerDay
	}
	return DefaultMaxVisitsPerDay
}

// LanguageList 返回小写并以逗号连接的语言列表
func (e *Employee) LanguageList() string {
	langs := make([]string, 0, len(e.Languages))
	for _, l := range e.Languages {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, strings.ToLower(l))
		}
	}
	return strings.Join(langs, ", ")
}

// SpeaksLanguage 检查员工语言列表中是否包含该语言（大小写不敏感的子串匹配）
func (e *Employee) SpeaksLanguage(lang string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return true
	}
	return strings.Contains(e.LanguageList(), lang)
}

// SplitLanguages 按逗号拆分语言字符串
func SplitLanguages(text string) []string {
	var langs []string
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			langs = append(langs, part)
		}
	}
	return langs
}
