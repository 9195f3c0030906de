package progress

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelReporter_NonBlocking(t *testing.T) {
	r := NewChannelReporter(2)

	for i := 0; i < 5; i++ {
		r.Report(Event{Percent: i * 10})
	}
	assert.Equal(t, int64(3), r.Dropped())

	first := <-r.Events()
	assert.Equal(t, 0, first.Percent)

	r.Close()
	r.Close()
	r.Report(Event{Percent: 99})

	var rest []Event
	for e := range r.Events() {
		rest = append(rest, e)
	}
	require.Len(t, rest, 1)
	assert.Equal(t, 10, rest[0].Percent)
}

func TestOrDiscard(t *testing.T) {
	assert.NotPanics(t, func() { OrDiscard(nil).Report(Event{}) })

	var got []Event
	r := OrDiscard(ReporterFunc(func(e Event) { got = append(got, e) }))
	r.Report(Event{Step: "x"})
	assert.Len(t, got, 1)
}

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker()
	task := tr.Create(TaskWeeklyRota, "生成周排班")
	assert.Equal(t, StatusPending, task.Status)
	assert.NotEmpty(t, task.ID)

	require.True(t, tr.Start(task.ID))
	tr.Reporter(task.ID).Report(Event{Percent: 42, Step: "2025-01-07", TotalDays: 7})

	got, ok := tr.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, 42, got.Progress)
	assert.Equal(t, "2025-01-07", got.CurrentStep)
	assert.Equal(t, 7, got.TotalSteps)

	require.True(t, tr.Complete(task.ID, map[string]int{"created": 3}))
	// 完成后的进度事件不再改变状态
	tr.Reporter(task.ID).Report(Event{Percent: 10})

	got, _ = tr.Get(task.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, map[string]int{"created": 3}, got.Result)
}

func TestTracker_Fail(t *testing.T) {
	tr := NewTracker()
	task := tr.Create(TaskReanalysis, "重新分配")

	require.True(t, tr.Fail(task.ID, errors.New("存储不可用"), 5))
	got, ok := tr.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "存储不可用", got.Error)
	assert.Equal(t, 5, got.Result)

	assert.False(t, tr.Start("missing"))
	_, ok = tr.Get("missing")
	assert.False(t, ok)
}

func TestTracker_Cleanup(t *testing.T) {
	tr := NewTracker()
	base := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return base }

	old := tr.Create(TaskWeeklyRota, "old")
	tr.Complete(old.ID, nil)
	running := tr.Create(TaskWeeklyRota, "running")
	tr.Start(running.ID)

	tr.now = func() time.Time { return base.Add(48 * time.Hour) }
	fresh := tr.Create(TaskWeeklyRota, "fresh")
	tr.Complete(fresh.ID, nil)

	assert.Equal(t, 1, tr.Cleanup(24*time.Hour))

	list := tr.List()
	require.Len(t, list, 2)
	assert.Equal(t, fresh.ID, list[0].ID)
}
