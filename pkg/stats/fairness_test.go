package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFairnessAnalyzer_Analyze(t *testing.T) {
	metrics := NewFairnessAnalyzer().Analyze(testAssignments(), testRoster().Employees)

	require.Len(t, metrics.Workloads, 3)

	e1 := metrics.Workloads[0]
	assert.Equal(t, "E1", e1.EmployeeID)
	assert.Equal(t, 2, e1.Visits)
	assert.Equal(t, 90, e1.VisitMinutes)
	assert.Equal(t, 15, e1.TravelMinutes)
	assert.Equal(t, 1.5, e1.Hours)
	assert.Equal(t, 1, e1.DaysWorked)
	assert.Equal(t, 18.75, e1.Utilization)

	e2 := metrics.Workloads[1]
	assert.Equal(t, "E2", e2.EmployeeID)
	assert.Equal(t, 2, e2.DaysWorked)
	assert.Equal(t, 9.38, e2.Utilization)

	// 没有安排的员工也统计在内
	e3 := metrics.Workloads[2]
	assert.Equal(t, "E3", e3.EmployeeID)
	assert.Zero(t, e3.Visits)
	assert.Zero(t, e3.Utilization)

	assert.Equal(t, 90, metrics.MaxVisitMinutes)
	assert.Equal(t, 0, metrics.MinVisitMinutes)
	assert.InDelta(t, 60.0, metrics.AvgVisitMinutes, 0.001)
	assert.InDelta(t, 1.0/3, metrics.VisitMinutesGini, 0.0001)
	assert.Greater(t, metrics.OverallFairnessScore, 0.0)
	assert.Less(t, metrics.OverallFairnessScore, 100.0)
}

func TestFairnessAnalyzer_UnknownEmployeeStillCounted(t *testing.T) {
	metrics := NewFairnessAnalyzer().Analyze(testAssignments()[:1], nil)

	require.Len(t, metrics.Workloads, 1)
	assert.Equal(t, "员工E1", metrics.Workloads[0].EmployeeName)
	assert.Zero(t, metrics.VisitMinutesGini)
	assert.Equal(t, 100.0, metrics.OverallFairnessScore)
}

func TestCalculateGini(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"空", nil, 0},
		{"全为零", []float64{0, 0}, 0},
		{"完全平均", []float64{60, 60, 60}, 0},
		{"集中在一人", []float64{0, 0, 0, 100}, 0.75},
		{"顺序无关", []float64{100, 0, 0, 0}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calculateGini(tt.values), 0.0001)
		})
	}
}
