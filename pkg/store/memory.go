package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// MemoryStore 内存存储，适用于测试和单次命令行运行
type MemoryStore struct {
	mu          sync.RWMutex
	nextID      int64
	assignments map[int64]*model.Assignment
	operations  []*Operation
	now         func() time.Time
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:      1,
		assignments: make(map[int64]*model.Assignment),
		now:         time.Now,
	}
}

// CreateAssignment 写入记录
func (s *MemoryStore) CreateAssignment(ctx context.Context, a *model.Assignment) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := a.Clone()
	rec.ID = s.nextID
	s.nextID++
	now := s.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.assignments[rec.ID] = rec

	a.ID = rec.ID
	a.CreatedAt = now
	a.UpdatedAt = now
	return rec.ID, nil
}

// GetAssignment 按 ID 读取
func (s *MemoryStore) GetAssignment(ctx context.Context, id int64) (*model.Assignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[id]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

// UpdateAssignment 部分更新
func (s *MemoryStore) UpdateAssignment(ctx context.Context, id int64, upd model.AssignmentUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[id]
	if !ok {
		return false, nil
	}

	next := a.Clone()
	upd.ApplyTo(next)
	if err := next.Validate(); err != nil {
		return true, err
	}
	next.UpdatedAt = s.now()
	s.assignments[id] = next
	return true, nil
}

// DeleteAssignment 删除单条记录
func (s *MemoryStore) DeleteAssignment(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[id]; !ok {
		return false, nil
	}
	delete(s.assignments, id)
	return true, nil
}

// DeleteAssignments 批量删除
func (s *MemoryStore) DeleteAssignments(ctx context.Context, ids []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := s.assignments[id]; ok {
			delete(s.assignments, id)
			deleted++
		}
	}
	return deleted, nil
}

// ClearAssignments 清空全部记录
func (s *MemoryStore) ClearAssignments(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.assignments = make(map[int64]*model.Assignment)
	return nil
}

// HasOverlap 员工是否已有重叠记录
func (s *MemoryStore) HasOverlap(ctx context.Context, employeeID string, start, end time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	probe := model.TimeRange{Start: start, End: end}
	for _, a := range s.assignments {
		if a.EmployeeID == employeeID && probe.Overlaps(a.Interval()) {
			return true, nil
		}
	}
	return false, nil
}

// HasServedToday 员工当天是否已为该服务对象上门
func (s *MemoryStore) HasServedToday(ctx context.Context, employeeID, patientID string, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.assignments {
		if a.EmployeeID == employeeID && a.PatientID == patientID && a.IsOnDate(day) {
			return true, nil
		}
	}
	return false, nil
}

// ListAssignments 返回全部记录
func (s *MemoryStore) ListAssignments(ctx context.Context) ([]*model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		out = append(out, a.Clone())
	}
	sortAssignments(out)
	return out, nil
}

// ListEmployeeAssignments 返回员工在 [from, to) 内开始的记录
func (s *MemoryStore) ListEmployeeAssignments(ctx context.Context, employeeID string, from, to time.Time) ([]*model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Assignment
	for _, a := range s.assignments {
		if a.EmployeeID != employeeID {
			continue
		}
		if a.StartTime.Before(from) || !a.StartTime.Before(to) {
			continue
		}
		out = append(out, a.Clone())
	}
	sortAssignments(out)
	return out, nil
}

// LogOperation 记录操作日志
func (s *MemoryStore) LogOperation(ctx context.Context, op *Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *op
	rec.ID = int64(len(s.operations) + 1)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.operations = append(s.operations, &rec)
	op.ID = rec.ID
	return nil
}

// ListOperations 返回最近的操作日志（新的在前）
func (s *MemoryStore) ListOperations(ctx context.Context, limit int) ([]*Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Operation
	for i := len(s.operations) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		op := *s.operations[i]
		out = append(out, &op)
	}
	return out, nil
}

// sortAssignments 按开始时间、ID 排序
func sortAssignments(list []*model.Assignment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].StartTime.Before(list[j].StartTime)
		}
		return list[i].ID < list[j].ID
	})
}
