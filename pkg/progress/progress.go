// Package progress 提供排班任务的进度上报与任务跟踪
package progress

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event 进度事件
type Event struct {
	TaskID    string    `json:"task_id,omitempty"`
	Percent   int       `json:"percent"`
	Step      string    `json:"step"`
	Day       int       `json:"day,omitempty"`        // 第几天（从1开始）
	TotalDays int       `json:"total_days,omitempty"` // 总天数
	Created   int       `json:"created"`              // 截至目前已创建的分配数
	Time      time.Time `json:"time"`
}

// Reporter 进度上报接口
type Reporter interface {
	Report(Event)
}

// ReporterFunc 函数形式的 Reporter
type ReporterFunc func(Event)

// Report 实现 Reporter
func (f ReporterFunc) Report(e Event) { f(e) }

// Discard 丢弃所有事件
var Discard Reporter = ReporterFunc(func(Event) {})

// OrDiscard r 为 nil 时返回 Discard
func OrDiscard(r Reporter) Reporter {
	if r == nil {
		return Discard
	}
	return r
}

// ChannelReporter 将事件写入带缓冲的通道，通道满时丢弃，不阻塞排班
type ChannelReporter struct {
	ch      chan Event
	dropped atomic.Int64
	closed  atomic.Bool
	mu      sync.RWMutex
}

// NewChannelReporter 创建通道上报器
func NewChannelReporter(buffer int) *ChannelReporter {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelReporter{ch: make(chan Event, buffer)}
}

// Report 非阻塞写入
func (c *ChannelReporter) Report(e Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed.Load() {
		return
	}
	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
	}
}

// Events 返回事件通道
func (c *ChannelReporter) Events() <-chan Event {
	return c.ch
}

// Dropped 返回被丢弃的事件数
func (c *ChannelReporter) Dropped() int64 {
	return c.dropped.Load()
}

// Close 关闭通道，之后的事件被忽略
func (c *ChannelReporter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.CompareAndSwap(false, true) {
		close(c.ch)
	}
}

// Status 任务状态
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsFinished 是否已结束
func (s Status) IsFinished() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TaskType 任务类型
type TaskType string

const (
	TaskWeeklyRota TaskType = "weekly_rota"
	TaskReanalysis TaskType = "reanalysis"
)

// Task 后台任务
type Task struct {
	ID          string    `json:"id"`
	Type        TaskType  `json:"type"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"current_step"`
	TotalSteps  int       `json:"total_steps"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Result      any       `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Tracker 后台任务跟踪器
type Tracker struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

// NewTracker 创建任务跟踪器
func NewTracker() *Tracker {
	return &Tracker{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
}

// Create 创建待执行任务并返回副本
func (t *Tracker) Create(taskType TaskType, description string) *Task {
	now := t.now()
	task := &Task{
		ID:          uuid.New().String(),
		Type:        taskType,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	t.mu.Lock()
	t.tasks[task.ID] = task
	t.mu.Unlock()

	c := *task
	return &c
}

// Start 标记任务开始
func (t *Tracker) Start(id string) bool {
	return t.update(id, func(task *Task) {
		task.Status = StatusInProgress
	})
}

// Reporter 返回写入该任务进度的 Reporter
func (t *Tracker) Reporter(id string) Reporter {
	return ReporterFunc(func(e Event) {
		t.update(id, func(task *Task) {
			if task.Status.IsFinished() {
				return
			}
			task.Status = StatusInProgress
			task.Progress = min(max(e.Percent, 0), 100)
			task.CurrentStep = e.Step
			if e.TotalDays > 0 {
				task.TotalSteps = e.TotalDays
			}
		})
	})
}

// Complete 标记任务完成
func (t *Tracker) Complete(id string, result any) bool {
	return t.update(id, func(task *Task) {
		task.Status = StatusCompleted
		task.Progress = 100
		task.Result = result
	})
}

// Fail 标记任务失败，保留已有的部分结果
func (t *Tracker) Fail(id string, err error, partial any) bool {
	return t.update(id, func(task *Task) {
		task.Status = StatusFailed
		if err != nil {
			task.Error = err.Error()
		}
		if partial != nil {
			task.Result = partial
		}
	})
}

// Get 按 ID 读取任务副本
func (t *Tracker) Get(id string) (*Task, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	task, ok := t.tasks[id]
	if !ok {
		return nil, false
	}
	c := *task
	return &c, true
}

// List 返回全部任务，新的在前
func (t *Tracker) List() []*Task {
	t.mu.RLock()
	out := make([]*Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		c := *task
		out = append(out, &c)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cleanup 清理早于 maxAge 且已结束的任务，返回清理数量
func (t *Tracker) Cleanup(maxAge time.Duration) int {
	cutoff := t.now().Add(-maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, task := range t.tasks {
		if task.Status.IsFinished() && task.CreatedAt.Before(cutoff) {
			delete(t.tasks, id)
			removed++
		}
	}
	return removed
}

func (t *Tracker) update(id string, fn func(*Task)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	task, ok := t.tasks[id]
	if !ok {
		return false
	}
	fn(task)
	task.UpdatedAt = t.now()
	return true
}
