package model

import (
	"strings"
)

// ServiceType 护理服务类别
type ServiceType string

const (
	ServiceMedicine      ServiceType = "medicine"      // 用药
	ServicePersonalCare  ServiceType = "personal_care" // 个人护理
	ServiceExercise      ServiceType = "exercise"      // 康复锻炼
	ServiceCompanionship ServiceType = "companionship" // 陪伴
)

// AllServiceTypes 全部服务类别
var AllServiceTypes = []ServiceType{
	ServiceMedicine,
	ServicePersonalCare,
	ServiceExercise,
	ServiceCompanionship,
}

// servicePriority 推断主服务时的优先顺序
var servicePriority = []ServiceType{
	ServiceMedicine,
	ServiceExercise,
	ServiceCompanionship,
	ServicePersonalCare,
}

// IsValid 是否为已知服务类别
func (s ServiceType) IsValid() bool {
	for _, t := range AllServiceTypes {
		if s == t {
			return true
		}
	}
	return false
}

// ParseServices 从自由文本推断服务类别（子串匹配，去重）
func ParseServices(text string) []ServiceType {
	t := strings.ToLower(text)
	var services []ServiceType
	if strings.Contains(t, "medic") {
		services = append(services, ServiceMedicine)
	}
	if strings.Contains(t, "personal") || strings.Contains(t, "care") {
		services = append(services, ServicePersonalCare)
	}
	if strings.Contains(t, "exercise") || strings.Contains(t, "mobility") {
		services = append(services, ServiceExercise)
	}
	if strings.Contains(t, "compan") {
		services = append(services, ServiceCompanionship)
	}
	return services
}

// Patient 服务对象
type Patient struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Address           string        `json:"address"`
	RequiredSupport   []ServiceType `json:"required_support,omitempty"`
	WeeklyHours       int           `json:"weekly_hours,omitempty"` // 0 表示未提供
	PreferredLanguage string        `json:"preferred_language,omitempty"`
}

// Needs 是否需要某项服务
func (p *Patient) Needs(service ServiceType) bool {
	for _, s := range p.RequiredSupport {
		if s == service {
			return true
		}
	}
	return false
}

// Services 返回去重后的服务类别（保持原有顺序）
func (p *Patient) Services() []ServiceType {
	seen := make(map[ServiceType]bool, len(p.RequiredSupport))
	out := make([]ServiceType, 0, len(p.RequiredSupport))
	for _, s := range p.RequiredSupport {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// PrimaryService 返回上门时执行的主服务
// 优先级：用药 > 锻炼 > 陪伴 > 个人护理，未列出时为个人护理
func (p *Patient) PrimaryService() ServiceType {
	for _, s := range servicePriority {
		if p.Needs(s) {
			return s
		}
	}
	return ServicePersonalCare
}

// NeedsInterpreter 偏好语言是否为非英语
func (p *Patient) NeedsInterpreter() bool {
	lang := strings.ToLower(strings.TrimSpace(p.PreferredLanguage))
	return lang != "" && lang != "english"
}
