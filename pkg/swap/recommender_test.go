package swap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
	"github.com/0pancd04/rota-ai-desertation/pkg/travel"
)

var monday = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func employee(id, start, end string) *model.Employee {
	return &model.Employee{
		ID:            id,
		Name:          "员工" + id,
		Address:       id + "-HOME",
		Qualification: model.QualificationCareWorker,
		Transport:     model.TransportCar,
		ShiftStart:    start,
		ShiftEnd:      end,
	}
}

func seed(t *testing.T, s *store.MemoryStore, empID, patientID string, start time.Time, minutes int) int64 {
	t.Helper()
	id, err := s.CreateAssignment(context.Background(), &model.Assignment{
		EmployeeID:      empID,
		EmployeeName:    "员工" + empID,
		PatientID:       patientID,
		ServiceType:     model.ServicePersonalCare,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		TravelMinutes:   12,
		PriorityScore:   model.DefaultPriorityScore,
		Reason:          model.ReasonScheduled,
	})
	require.NoError(t, err)
	return id
}

func travelTable() *travel.TableProvider {
	return travel.NewTableProvider(nil).
		Set("E1-HOME", "P1-ADDR", 12).
		Set("E2-HOME", "P1-ADDR", 5).
		Set("E3-HOME", "P1-ADDR", 20).
		Set("E4-HOME", "P1-ADDR", 40)
}

func TestReanalyze_FallsBackIgnoringShift(t *testing.T) {
	s := store.NewMemoryStore()
	roster := &model.Roster{
		Employees: []*model.Employee{
			employee("E1", "09:00", "17:00"),
			employee("E2", "09:00", "17:00"),
			employee("E3", "14:00", "18:00"),
			employee("E4", "14:00", "18:00"),
		},
		Patients: []*model.Patient{{ID: "P1", Address: "P1-ADDR"}},
	}

	target := seed(t, s, "E1", "P1", at(9, 0), 60)
	seed(t, s, "E2", "P9", at(9, 30), 60) // 唯一班次覆盖的员工时间冲突

	r := NewReanalyzer(s, travelTable(), roster, WithOperationLog(s))
	updated, err := r.Reanalyze(context.Background(), []int64{target}, false)
	require.NoError(t, err)
	require.Len(t, updated, 1)

	got := updated[0]
	assert.Equal(t, "E3", got.EmployeeID)
	assert.Equal(t, "员工E3", got.EmployeeName)
	assert.Equal(t, 20, got.TravelMinutes)
	assert.Equal(t, model.ReasonReassigned, got.Reason)
	assert.Equal(t, model.DefaultPriorityScore, got.PriorityScore)
	assert.Equal(t, at(9, 0), got.StartTime)
	assert.Equal(t, at(10, 0), got.EndTime)

	stored, found, err := s.GetAssignment(context.Background(), target)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "E3", stored.EmployeeID)

	ops, err := s.ListOperations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, store.OperationReanalysis, ops[0].Type)
}

func TestReanalyze_PrefersEmployeeBusyThatDay(t *testing.T) {
	s := store.NewMemoryStore()
	roster := &model.Roster{
		Employees: []*model.Employee{
			employee("E1", "09:00", "17:00"),
			employee("E2", "09:00", "17:00"),
			employee("E3", "08:00", "17:00"),
		},
		Patients: []*model.Patient{{ID: "P1", Address: "P1-ADDR"}},
	}

	target := seed(t, s, "E1", "P1", at(9, 0), 60)
	seed(t, s, "E3", "P7", at(13, 0), 45)
	// 其他日期的安排不算当天有安排
	seed(t, s, "E2", "P7", at(9, 0).AddDate(0, 0, 1), 45)

	r := NewReanalyzer(s, travelTable(), roster)
	recs, err := r.Recommend(context.Background(), mustGet(t, s, target), roster.Patients[0])
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "E3", recs[0].Employee.ID)
	assert.True(t, recs[0].BusyThatDay)
	assert.Equal(t, KindPreferred, recs[0].Kind)
	assert.Equal(t, "E2", recs[1].Employee.ID)
	assert.Equal(t, 2, recs[1].Rank)

	updated, err := r.Reanalyze(context.Background(), []int64{target}, false)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "E3", updated[0].EmployeeID)
}

func TestReanalyze_RespectsEligibilityAndRepeatVisits(t *testing.T) {
	s := store.NewMemoryStore()
	nurse := employee("E4", "09:00", "17:00")
	nurse.Qualification = model.QualificationNurse
	original := employee("E1", "09:00", "17:00")
	original.Qualification = model.QualificationNurse
	roster := &model.Roster{
		Employees: []*model.Employee{
			original,
			employee("E2", "09:00", "17:00"), // 最近但没有临床资质
			nurse,
		},
		Patients: []*model.Patient{{
			ID: "P1", Address: "P1-ADDR",
			RequiredSupport: []model.ServiceType{model.ServiceMedicine},
		}},
	}

	target := seed(t, s, "E1", "P1", at(9, 0), 30)

	r := NewReanalyzer(s, travelTable(), roster)
	updated, err := r.Reanalyze(context.Background(), []int64{target}, false)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "E4", updated[0].EmployeeID)

	// 护士当天已为该对象上门，不能再接替
	s2 := store.NewMemoryStore()
	target2 := seed(t, s2, "E1", "P1", at(9, 0), 30)
	seed(t, s2, "E4", "P1", at(15, 0), 30)
	updated, err = NewReanalyzer(s2, travelTable(), roster).Reanalyze(context.Background(), []int64{target2}, false)
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestReanalyze_NoCandidateLeavesRecordUnchanged(t *testing.T) {
	s := store.NewMemoryStore()
	roster := &model.Roster{
		Employees: []*model.Employee{employee("E1", "09:00", "17:00")},
		Patients:  []*model.Patient{{ID: "P1", Address: "P1-ADDR"}},
	}
	target := seed(t, s, "E1", "P1", at(9, 0), 60)
	before := mustGet(t, s, target)

	updated, err := NewReanalyzer(s, travelTable(), roster).Reanalyze(context.Background(), []int64{target}, false)
	require.NoError(t, err)
	assert.Empty(t, updated)
	assert.Equal(t, before, mustGet(t, s, target))
}

func TestReanalyze_SkipsUnknownIDsAndMissingReferences(t *testing.T) {
	s := store.NewMemoryStore()
	roster := &model.Roster{
		Employees: []*model.Employee{
			employee("E1", "09:00", "17:00"),
			employee("E2", "09:00", "17:00"),
		},
		Patients: []*model.Patient{{ID: "P1", Address: "P1-ADDR"}},
	}
	orphan := seed(t, s, "E1", "P404", at(9, 0), 60)
	ghost := seed(t, s, "E404", "P1", at(11, 0), 60)
	ok := seed(t, s, "E1", "P1", at(13, 0), 60)

	updated, err := NewReanalyzer(s, travelTable(), roster).Reanalyze(context.Background(), []int64{999, orphan, ghost, ok}, false)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, ok, updated[0].ID)
	assert.Equal(t, "E2", updated[0].EmployeeID)

	assert.Equal(t, "E1", mustGet(t, s, orphan).EmployeeID)
	assert.Equal(t, "E404", mustGet(t, s, ghost).EmployeeID)
}

func TestReanalyze_AllowTimeChangeIsIgnored(t *testing.T) {
	run := func(allow bool) *model.Assignment {
		s := store.NewMemoryStore()
		roster := &model.Roster{
			Employees: []*model.Employee{
				employee("E1", "09:00", "17:00"),
				employee("E2", "09:00", "17:00"),
			},
			Patients: []*model.Patient{{ID: "P1", Address: "P1-ADDR"}},
		}
		target := seed(t, s, "E1", "P1", at(9, 0), 60)
		updated, err := NewReanalyzer(s, travelTable(), roster).Reanalyze(context.Background(), []int64{target}, allow)
		require.NoError(t, err)
		require.Len(t, updated, 1)
		return updated[0]
	}

	with, without := run(true), run(false)
	assert.Equal(t, without.EmployeeID, with.EmployeeID)
	assert.Equal(t, without.StartTime, with.StartTime)
	assert.Equal(t, without.EndTime, with.EndTime)
}

func TestReanalyze_Cancelled(t *testing.T) {
	s := store.NewMemoryStore()
	roster := &model.Roster{Employees: []*model.Employee{employee("E1", "09:00", "17:00")}}
	target := seed(t, s, "E1", "P1", at(9, 0), 60)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReanalyzer(s, travelTable(), roster).Reanalyze(ctx, []int64{target}, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func mustGet(t *testing.T, s *store.MemoryStore, id int64) *model.Assignment {
	t.Helper()
	a, found, err := s.GetAssignment(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	return a
}
