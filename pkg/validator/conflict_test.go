package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
)

var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func makeAssignment(id int64, emp, patient string, start time.Time, minutes int) *model.Assignment {
	return &model.Assignment{
		ID:              id,
		EmployeeID:      emp,
		PatientID:       patient,
		ServiceType:     model.ServicePersonalCare,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		TravelMinutes:   10,
		PriorityScore:   model.DefaultPriorityScore,
	}
}

func testRoster() *model.Roster {
	return &model.Roster{
		Employees: []*model.Employee{
			{ID: "E1", Name: "Ann", Qualification: model.QualificationCareWorker, Languages: []string{"English"}, ShiftStart: "09:00", ShiftEnd: "17:00", MaxVisitsPerDay: 2},
			{ID: "E2", Name: "Bob", Qualification: model.QualificationNurse, Languages: []string{"English"}, ShiftStart: "09:00", ShiftEnd: "17:00"},
		},
		Patients: []*model.Patient{
			{ID: "P1", Name: "Pat"},
			{ID: "P2", Name: "Med", RequiredSupport: []model.ServiceType{model.ServiceMedicine}},
			{ID: "P3", Name: "Ola", PreferredLanguage: "Polish"},
		},
	}
}

func conflictTypes(conflicts []Conflict) map[ConflictType]int {
	out := make(map[ConflictType]int)
	for _, c := range conflicts {
		out[c.Type]++
	}
	return out
}

func TestConflictDetector_CleanRota(t *testing.T) {
	d := NewConflictDetector(nil, nil)
	assignments := []*model.Assignment{
		makeAssignment(1, "E1", "P1", at(9, 10), 45),
		makeAssignment(2, "E2", "P2", at(9, 0), 30),
		makeAssignment(3, "E2", "P1", at(9, 40), 45),
	}

	conflicts := d.DetectAll(assignments, testRoster())
	assert.Empty(t, conflicts)
	assert.False(t, HasErrors(conflicts))
}

func TestConflictDetector_DetectOverlaps(t *testing.T) {
	d := NewConflictDetector(nil, nil)
	// 长记录覆盖两条非相邻记录
	assignments := []*model.Assignment{
		makeAssignment(1, "E2", "P1", at(9, 0), 180),
		makeAssignment(2, "E2", "P2", at(10, 0), 30),
		makeAssignment(3, "E2", "P3", at(11, 0), 30),
	}

	types := conflictTypes(d.DetectAll(assignments, testRoster()))
	assert.Equal(t, 2, types[ConflictOverlap])
}

func TestConflictDetector_DetectRuleViolations(t *testing.T) {
	d := NewConflictDetector(nil, nil)
	assignments := []*model.Assignment{
		makeAssignment(1, "E1", "P2", at(9, 0), 30),   // 无临床资质
		makeAssignment(2, "E1", "P3", at(10, 0), 30),  // 不会波兰语
		makeAssignment(3, "E1", "P3", at(11, 0), 30),  // 同日重复 + 超上限
		makeAssignment(4, "E2", "P1", at(16, 50), 10), // 截断过短
		makeAssignment(5, "E2", "P1", at(17, 30), 30), // 超出班次（同日重复）
		makeAssignment(6, "E9", "P1", at(9, 0), 30),   // 不在名册
	}

	conflicts := d.DetectAll(assignments, testRoster())
	types := conflictTypes(conflicts)

	assert.Equal(t, 3, types[ConflictEligibility])
	assert.Equal(t, 2, types[ConflictRepeatVisit])
	assert.Equal(t, 1, types[ConflictVisitCap])
	assert.Equal(t, 1, types[ConflictShortVisit])
	assert.Equal(t, 1, types[ConflictOutsideShift])
	assert.Equal(t, 1, types[ConflictMissingReference])
	assert.True(t, HasErrors(conflicts))
}

func TestGuard(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	g := NewGuard(s)

	first := makeAssignment(0, "E1", "P1", at(9, 0), 60)
	second := makeAssignment(0, "E1", "P2", at(9, 30), 60)
	for _, a := range []*model.Assignment{first, second} {
		_, err := s.CreateAssignment(ctx, a)
		require.NoError(t, err)
	}

	overlaps, err := g.Overlaps(ctx, "E1", at(9, 45), at(10, 0))
	require.NoError(t, err)
	assert.True(t, overlaps)

	overlaps, err = g.Overlaps(ctx, "E1", at(10, 30), at(11, 0))
	require.NoError(t, err)
	assert.False(t, overlaps)

	until, blocked, err := g.BlockedUntil(ctx, "E1", at(9, 15), at(9, 45))
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, at(10, 30), until)

	_, blocked, err = g.BlockedUntil(ctx, "E1", at(12, 0), at(12, 30))
	require.NoError(t, err)
	assert.False(t, blocked)

	served, err := g.AlreadyServedToday(ctx, "E1", "P2", monday)
	require.NoError(t, err)
	assert.True(t, served)

	has, err := g.HasAssignmentOnDate(ctx, "E1", monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, has)
}
