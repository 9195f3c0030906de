package constraint

import (
	"testing"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

func TestQualificationConstraint_Evaluate(t *testing.T) {
	c := NewQualificationConstraint()
	medicine := &model.Patient{ID: "P1", RequiredSupport: []model.ServiceType{model.ServiceMedicine}}
	companionship := &model.Patient{ID: "P2", RequiredSupport: []model.ServiceType{model.ServiceCompanionship}}

	tests := []struct {
		name     string
		employee *model.Employee
		patient  *model.Patient
		expected bool
	}{
		{
			name:     "护士可以用药",
			employee: &model.Employee{ID: "E1", Qualification: model.QualificationNurse},
			patient:  medicine,
			expected: true,
		},
		{
			name:     "高级护工不能用药",
			employee: &model.Employee{ID: "E2", Qualification: model.QualificationSeniorCareWorker},
			patient:  medicine,
			expected: false,
		},
		{
			name:     "普通护工可以陪伴",
			employee: &model.Employee{ID: "E3", Qualification: model.QualificationCareWorker},
			patient:  companionship,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, _ := c.Evaluate(tt.employee, tt.patient)
			if passed != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, passed)
			}
		})
	}
}

func TestLanguageConstraint_Evaluate(t *testing.T) {
	c := NewLanguageConstraint()
	employee := &model.Employee{ID: "E1", Languages: []string{"English", "Polish"}}

	tests := []struct {
		name     string
		lang     string
		expected bool
	}{
		{name: "未指定语言", lang: "", expected: true},
		{name: "英语", lang: "English", expected: true},
		{name: "英语大小写", lang: "ENGLISH", expected: true},
		{name: "会波兰语", lang: "polish", expected: true},
		{name: "不会乌尔都语", lang: "Urdu", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patient := &model.Patient{ID: "P1", PreferredLanguage: tt.lang}
			passed, _ := c.Evaluate(employee, patient)
			if passed != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, passed)
			}
		})
	}
}

func TestFilter_CanServe(t *testing.T) {
	f := NewFilter()

	nurse := &model.Employee{ID: "E1", Qualification: model.QualificationNurse, Languages: []string{"English"}}
	carer := &model.Employee{ID: "E2", Qualification: model.QualificationCareWorker, Languages: []string{"English", "Urdu"}}
	patient := &model.Patient{
		ID:                "P1",
		RequiredSupport:   []model.ServiceType{model.ServiceMedicine},
		PreferredLanguage: "Urdu",
	}

	if f.CanServe(nurse, patient) {
		t.Error("护士不会乌尔都语，不应通过")
	}
	if f.CanServe(carer, patient) {
		t.Error("护工没有临床资质，不应通过")
	}

	violations := f.Explain(carer, patient)
	if len(violations) != 1 || violations[0].Constraint != "Qualification" {
		t.Errorf("Explain() = %v", violations)
	}

	bilingualNurse := &model.Employee{ID: "E3", Qualification: model.QualificationNurse, Languages: []string{"English", "Urdu"}}
	eligible := f.EligibleEmployees([]*model.Employee{nurse, carer, bilingualNurse}, patient)
	if len(eligible) != 1 || eligible[0].ID != "E3" {
		t.Errorf("EligibleEmployees() 应只返回 E3, got %d", len(eligible))
	}
}
