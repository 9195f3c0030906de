package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0pancd04/rota-ai-desertation/pkg/dispatcher/constraint"
	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
	"github.com/0pancd04/rota-ai-desertation/pkg/travel"
	"github.com/0pancd04/rota-ai-desertation/pkg/validator"
)

// slowStore 每次写入前等待，模拟数据库往返
type slowStore struct {
	*store.MemoryStore
	delay time.Duration
}

func (s *slowStore) CreateAssignment(ctx context.Context, a *model.Assignment) (int64, error) {
	time.Sleep(s.delay)
	return s.MemoryStore.CreateAssignment(ctx, a)
}

func newSlowServer(delay time.Duration) *testServer {
	mem := store.NewMemoryStore()
	h := NewRotaHandler(Deps{
		Store:  &slowStore{MemoryStore: mem, delay: delay},
		OpLog:  mem,
		Travel: travel.NewHeuristicProvider(),
		Roster: testRoster(),
	})
	mux := http.NewServeMux()
	h.Register(mux)
	return &testServer{handler: h, store: mem, mux: mux}
}

func TestGenerate_ConcurrentRequests(t *testing.T) {
	ts := newSlowServer(2 * time.Millisecond)

	codes := make([]int, 3)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = ts.do("POST", "/api/v1/rota/generate", GenerateRequest{StartDate: "2025-01-06"}).Code
		}(i)
	}
	wg.Wait()
	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}

	all, err := ts.store.ListAssignments(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, all)

	seen := make(map[string]bool)
	for i, a := range all {
		key := a.EmployeeID + "|" + a.PatientID + "|" + a.Date()
		assert.False(t, seen[key], "同日重复上门: %s", key)
		seen[key] = true

		for _, b := range all[i+1:] {
			if a.EmployeeID == b.EmployeeID {
				assert.False(t, a.Interval().Overlaps(b.Interval()), "员工 %s 的 #%d 与 #%d 重叠", a.EmployeeID, a.ID, b.ID)
			}
		}
	}

	conflicts := validator.NewConflictDetector(nil, constraint.NewFilter()).DetectAll(all, testRoster())
	for _, c := range conflicts {
		assert.NotEqual(t, validator.ConflictOverlap, c.Type, c.Message)
		assert.NotEqual(t, validator.ConflictRepeatVisit, c.Type, c.Message)
	}
}

func TestGenerate_AsyncAndSyncDoNotInterleave(t *testing.T) {
	ts := newSlowServer(time.Millisecond)

	rec := ts.do("POST", "/api/v1/rota/generate?async=true", GenerateRequest{StartDate: "2025-01-06"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var task AsyncResponse
	decode(t, rec, &task)

	rec = ts.do("POST", "/api/v1/rota/generate", GenerateRequest{StartDate: "2025-01-06"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		got, ok := ts.handler.tracker.Get(task.TaskID)
		return ok && got.Status.IsFinished()
	}, 5*time.Second, 10*time.Millisecond)

	all, err := ts.store.ListAssignments(context.Background())
	require.NoError(t, err)
	conflicts := validator.NewConflictDetector(nil, constraint.NewFilter()).DetectAll(all, testRoster())
	for _, c := range conflicts {
		assert.NotEqual(t, validator.ConflictOverlap, c.Type, c.Message)
		assert.NotEqual(t, validator.ConflictRepeatVisit, c.Type, c.Message)
	}
}

func TestRecommend_NoCandidate(t *testing.T) {
	only := testRoster()
	only.Employees = only.Employees[:1]
	ts := newTestServer(t, only)
	seedAssignment(t, ts.store, "E1", "P1", monday.Add(10*time.Hour), 30)

	rec := ts.do("GET", "/api/v1/rota/recommend/1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), string(apperrors.CodeNoAvailableEmployee))
}
