package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

func visit(emp, patient string, start time.Time, minutes int) *model.Assignment {
	return &model.Assignment{
		EmployeeID:      emp,
		EmployeeName:    emp,
		PatientID:       patient,
		PatientName:     patient,
		ServiceType:     model.ServicePersonalCare,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		TravelMinutes:   10,
		PriorityScore:   model.DefaultPriorityScore,
		Reason:          model.ReasonScheduled,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	a := visit("E1", "P1", day.Add(9*time.Hour), 45)
	id, err := s.CreateAssignment(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, id, a.ID)

	got, found, err := s.GetAssignment(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "P1", got.PatientID)
	assert.False(t, got.CreatedAt.IsZero())

	_, found, err = s.GetAssignment(ctx, 99)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_CreateRejectsInvalid(t *testing.T) {
	s := NewMemoryStore()
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	bad := visit("E1", "P1", start, 30)
	bad.EndTime = start.Add(-time.Minute)

	_, err := s.CreateAssignment(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidationFail))
}

func TestMemoryStore_HasOverlap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	_, err := s.CreateAssignment(ctx, visit("E1", "P1", start, 60))
	require.NoError(t, err)

	tests := []struct {
		name     string
		emp      string
		start    time.Time
		end      time.Time
		expected bool
	}{
		{"完全包含", "E1", start.Add(10 * time.Minute), start.Add(20 * time.Minute), true},
		{"首尾相接不算重叠", "E1", start.Add(60 * time.Minute), start.Add(90 * time.Minute), false},
		{"结束于开始时刻", "E1", start.Add(-30 * time.Minute), start, false},
		{"部分重叠", "E1", start.Add(50 * time.Minute), start.Add(70 * time.Minute), true},
		{"其他员工", "E2", start, start.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.HasOverlap(ctx, tt.emp, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMemoryStore_HasServedToday(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	_, err := s.CreateAssignment(ctx, visit("E1", "P1", day.Add(14*time.Hour), 30))
	require.NoError(t, err)

	served, err := s.HasServedToday(ctx, "E1", "P1", day)
	require.NoError(t, err)
	assert.True(t, served)

	served, err = s.HasServedToday(ctx, "E1", "P1", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, served)

	served, err = s.HasServedToday(ctx, "E1", "P2", day)
	require.NoError(t, err)
	assert.False(t, served)
}

func TestMemoryStore_UpdateDeleteClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	id1, err := s.CreateAssignment(ctx, visit("E1", "P1", start, 30))
	require.NoError(t, err)
	id2, err := s.CreateAssignment(ctx, visit("E1", "P2", start.Add(time.Hour), 30))
	require.NoError(t, err)
	_, err = s.CreateAssignment(ctx, visit("E2", "P3", start, 30))
	require.NoError(t, err)

	emp := "E9"
	found, err := s.UpdateAssignment(ctx, id1, model.AssignmentUpdate{EmployeeID: &emp})
	require.NoError(t, err)
	assert.True(t, found)
	got, _, _ := s.GetAssignment(ctx, id1)
	assert.Equal(t, "E9", got.EmployeeID)

	// 更新后仍需满足校验
	bad := -5
	_, err = s.UpdateAssignment(ctx, id1, model.AssignmentUpdate{TravelMinutes: &bad})
	require.Error(t, err)

	found, err = s.UpdateAssignment(ctx, 42, model.AssignmentUpdate{EmployeeID: &emp})
	require.NoError(t, err)
	assert.False(t, found)

	found, err = s.DeleteAssignment(ctx, id2)
	require.NoError(t, err)
	assert.True(t, found)

	n, err := s.DeleteAssignments(ctx, []int64{id1, id2, 77})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.ClearAssignments(ctx))
	all, err := s.ListAssignments(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryStore_ListEmployeeAssignments(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	_, _ = s.CreateAssignment(ctx, visit("E1", "P2", day.Add(13*time.Hour), 30))
	_, _ = s.CreateAssignment(ctx, visit("E1", "P1", day.Add(9*time.Hour), 30))
	_, _ = s.CreateAssignment(ctx, visit("E1", "P3", day.Add(33*time.Hour), 30))
	_, _ = s.CreateAssignment(ctx, visit("E2", "P4", day.Add(9*time.Hour), 30))

	list, err := s.ListEmployeeAssignments(ctx, "E1", day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "P1", list[0].PatientID)
	assert.Equal(t, "P2", list[1].PatientID)
}

func TestMemoryStore_Operations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.LogOperation(ctx, &Operation{Type: OperationDailySchedule, Description: "a"}))
	require.NoError(t, s.LogOperation(ctx, &Operation{Type: OperationReanalysis, Description: "b"}))

	ops, err := s.ListOperations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OperationReanalysis, ops[0].Type)
}
