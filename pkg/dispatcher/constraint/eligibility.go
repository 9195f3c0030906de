// Package constraint 提供员工与服务对象的匹配约束
package constraint

import (
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// EligibilityConstraint 上门资格约束接口
type EligibilityConstraint interface {
	Name() string
	Evaluate(employee *model.Employee, patient *model.Patient) (bool, string)
}

// BaseEligibilityConstraint 基础资格约束
type BaseEligibilityConstraint struct {
	name string
}

func (b *BaseEligibilityConstraint) Name() string { return b.name }

// =========================================
// 1. QualificationConstraint 临床资质
// =========================================

// QualificationConstraint 需要用药服务的对象只能由具备临床资质的员工上门
type QualificationConstraint struct {
	BaseEligibilityConstraint
}

func NewQualificationConstraint() *QualificationConstraint {
	return &QualificationConstraint{
		BaseEligibilityConstraint: BaseEligibilityConstraint{name: "Qualification"},
	}
}

func (c *QualificationConstraint) Evaluate(employee *model.Employee, patient *model.Patient) (bool, string) {
	if patient.Needs(model.ServiceMedicine) && !employee.IsClinical() {
		return false, "用药服务需要临床资质"
	}
	return true, ""
}

// =========================================
// 2. LanguageConstraint 语言要求
// =========================================

// LanguageConstraint 服务对象偏好非英语时，员工必须会该语言
type LanguageConstraint struct {
	BaseEligibilityConstraint
}

func NewLanguageConstraint() *LanguageConstraint {
	return &LanguageConstraint{
		BaseEligibilityConstraint: BaseEligibilityConstraint{name: "Language"},
	}
}

func (c *LanguageConstraint) Evaluate(employee *model.Employee, patient *model.Patient) (bool, string) {
	if !patient.NeedsInterpreter() {
		return true, ""
	}
	if !employee.SpeaksLanguage(patient.PreferredLanguage) {
		return false, "员工不会服务对象偏好的语言: " + patient.PreferredLanguage
	}
	return true, ""
}

// DefaultEligibilityConstraints 返回默认约束集
func DefaultEligibilityConstraints() []EligibilityConstraint {
	return []EligibilityConstraint{
		NewQualificationConstraint(),
		NewLanguageConstraint(),
	}
}

// Filter 资格过滤器
type Filter struct {
	constraints []EligibilityConstraint
}

// NewFilter 创建过滤器，未传入约束时使用默认约束集
func NewFilter(constraints ...EligibilityConstraint) *Filter {
	if len(constraints) == 0 {
		constraints = DefaultEligibilityConstraints()
	}
	return &Filter{constraints: constraints}
}

// CanServe 员工是否可以为服务对象上门
func (f *Filter) CanServe(employee *model.Employee, patient *model.Patient) bool {
	for _, c := range f.constraints {
		if ok, _ := c.Evaluate(employee, patient); !ok {
			return false
		}
	}
	return true
}

// Violation 约束违反
type Violation struct {
	Constraint string `json:"constraint"`
	Reason     string `json:"reason"`
}

// Explain 返回所有未通过的约束及原因
func (f *Filter) Explain(employee *model.Employee, patient *model.Patient) []Violation {
	var violations []Violation
	for _, c := range f.constraints {
		if ok, reason := c.Evaluate(employee, patient); !ok {
			violations = append(violations, Violation{Constraint: c.Name(), Reason: reason})
		}
	}
	return violations
}

// EligibleEmployees 返回可为服务对象上门的员工（保持输入顺序）
func (f *Filter) EligibleEmployees(employees []*model.Employee, patient *model.Patient) []*model.Employee {
	var out []*model.Employee
	for _, e := range employees {
		if f.CanServe(e, patient) {
			out = append(out, e)
		}
	}
	return out
}
