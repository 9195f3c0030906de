package careplan

import (
	"testing"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

func TestEstimator_DailyMinutes(t *testing.T) {
	est := NewEstimator()

	tests := []struct {
		name     string
		patient  *model.Patient
		expected int
	}{
		{
			name:     "按周时长折算",
			patient:  &model.Patient{ID: "P1", WeeklyHours: 7},
			expected: 60,
		},
		{
			name:     "周时长折算整除",
			patient:  &model.Patient{ID: "P1", WeeklyHours: 10},
			expected: 85,
		},
		{
			name:     "周时长折算下限15分钟",
			patient:  &model.Patient{ID: "P1", WeeklyHours: 1},
			expected: 15,
		},
		{
			name: "用药加个人护理",
			patient: &model.Patient{ID: "P1", RequiredSupport: []model.ServiceType{
				model.ServiceMedicine, model.ServicePersonalCare,
			}},
			expected: 75,
		},
		{
			name:     "单项目不足60分钟",
			patient:  &model.Patient{ID: "P1", RequiredSupport: []model.ServiceType{model.ServiceExercise}},
			expected: 60,
		},
		{
			name:     "未列出项目",
			patient:  &model.Patient{ID: "P1"},
			expected: 60,
		},
		{
			name: "重复项目只计一次",
			patient: &model.Patient{ID: "P1", RequiredSupport: []model.ServiceType{
				model.ServiceCompanionship, model.ServiceCompanionship, model.ServiceExercise,
			}},
			expected: 90,
		},
		{
			name: "周时长优先于项目",
			patient: &model.Patient{ID: "P1", WeeklyHours: 14, RequiredSupport: []model.ServiceType{
				model.ServiceCompanionship,
			}},
			expected: 120,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := est.DailyMinutes(tt.patient); got != tt.expected {
				t.Errorf("DailyMinutes() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestEstimator_VisitMinutes(t *testing.T) {
	est := NewEstimator()
	p := &model.Patient{ID: "P1", RequiredSupport: []model.ServiceType{model.ServicePersonalCare, model.ServiceMedicine}}

	// 主服务为用药（30分钟）
	if got := est.VisitMinutes(p, 75); got != 30 {
		t.Errorf("VisitMinutes() = %d, expected 30", got)
	}
	if got := est.VisitMinutes(p, 10); got != 10 {
		t.Errorf("剩余需求不足时应取剩余值, got %d", got)
	}
}

func TestEstimator_WithDuration(t *testing.T) {
	est := NewEstimator().WithDuration(model.ServiceMedicine, 20)
	if got := est.DefaultDuration(model.ServiceMedicine); got != 20 {
		t.Errorf("DefaultDuration() = %d, expected 20", got)
	}
	// 非正值忽略
	est.WithDuration(model.ServiceMedicine, 0)
	if got := est.DefaultDuration(model.ServiceMedicine); got != 20 {
		t.Errorf("DefaultDuration() = %d, expected 20", got)
	}
}

func TestDemandPool_Consume(t *testing.T) {
	est := NewEstimator()
	patients := []*model.Patient{
		{ID: "P1", WeeklyHours: 7},
		{ID: "P2"},
	}
	pool := est.NewDayPool(patients)

	if got := pool.Remaining("P1"); got != 60 {
		t.Fatalf("Remaining(P1) = %d, expected 60", got)
	}
	if got := pool.Consume("P1", 45); got != 15 {
		t.Errorf("Consume() = %d, expected 15", got)
	}
	if got := pool.Consume("P1", 45); got != 0 {
		t.Errorf("剩余需求不应小于0, got %d", got)
	}
	if got := pool.Total(); got != 60 {
		t.Errorf("Total() = %d, expected 60", got)
	}

	unmet := pool.Unmet()
	if len(unmet) != 1 || unmet["P2"] != 60 {
		t.Errorf("Unmet() = %v", unmet)
	}

	// 每日重置
	fresh := est.NewDayPool(patients)
	if got := fresh.Remaining("P1"); got != 60 {
		t.Errorf("新的一天应重置需求, got %d", got)
	}
}
