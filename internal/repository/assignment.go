package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/0pancd04/rota-ai-desertation/internal/database"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
)

const assignmentColumns = `id, employee_id, employee_name, patient_id, patient_name, service_type,
	start_time, end_time, duration_minutes, travel_minutes, priority_score, reason,
	created_at, updated_at`

// AssignmentRepository 基于 SQL 的分配记录存储
type AssignmentRepository struct {
	db  DB
	now func() time.Time
}

var (
	_ store.Store        = (*AssignmentRepository)(nil)
	_ store.OperationLog = (*AssignmentRepository)(nil)
)

// NewAssignmentRepository 创建分配记录仓储
func NewAssignmentRepository(db DB) *AssignmentRepository {
	return &AssignmentRepository{db: db, now: time.Now}
}

func (r *AssignmentRepository) t(v time.Time) any {
	return r.db.Dialect().TimeValue(v)
}

// CreateAssignment 写入记录
func (r *AssignmentRepository) CreateAssignment(ctx context.Context, a *model.Assignment) (int64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}

	now := r.now().UTC().Truncate(time.Second)
	query := `
		INSERT INTO assignments (
			employee_id, employee_name, patient_id, patient_name, service_type,
			start_time, end_time, duration_minutes, travel_minutes, priority_score, reason,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		a.EmployeeID, a.EmployeeName, a.PatientID, a.PatientName, string(a.ServiceType),
		r.t(a.StartTime), r.t(a.EndTime), a.DurationMinutes, a.TravelMinutes, a.PriorityScore, a.Reason,
		r.t(now), r.t(now),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("创建分配记录失败: %w", err)
	}

	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return id, nil
}

// GetAssignment 按 ID 读取
func (r *AssignmentRepository) GetAssignment(ctx context.Context, id int64) (*model.Assignment, bool, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`

	a, err := scanAssignment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("查询分配记录失败: %w", err)
	}
	return a, true, nil
}

// UpdateAssignment 部分更新，更新后的记录需通过校验
func (r *AssignmentRepository) UpdateAssignment(ctx context.Context, id int64, upd model.AssignmentUpdate) (bool, error) {
	current, found, err := r.GetAssignment(ctx, id)
	if err != nil || !found {
		return found, err
	}

	upd.ApplyTo(current)
	if err := current.Validate(); err != nil {
		return true, err
	}

	query := `
		UPDATE assignments SET
			employee_id = $1, employee_name = $2, service_type = $3,
			start_time = $4, end_time = $5, duration_minutes = $6,
			travel_minutes = $7, priority_score = $8, reason = $9, updated_at = $10
		WHERE id = $11
	`
	result, err := r.db.ExecContext(ctx, query,
		current.EmployeeID, current.EmployeeName, string(current.ServiceType),
		r.t(current.StartTime), r.t(current.EndTime), current.DurationMinutes,
		current.TravelMinutes, current.PriorityScore, current.Reason, r.t(r.now()),
		id,
	)
	if err != nil {
		return true, fmt.Errorf("更新分配记录失败: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return true, fmt.Errorf("更新分配记录失败: %w", err)
	}
	return rows > 0, nil
}

// DeleteAssignment 删除单条记录
func (r *AssignmentRepository) DeleteAssignment(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("删除分配记录失败: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("删除分配记录失败: %w", err)
	}
	return rows > 0, nil
}

// DeleteAssignments 批量删除
func (r *AssignmentRepository) DeleteAssignments(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	query := `DELETE FROM assignments WHERE id IN (` + strings.Join(placeholders, ", ") + `)`
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("批量删除分配记录失败: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("批量删除分配记录失败: %w", err)
	}
	return int(rows), nil
}

// ClearAssignments 清空全部记录
func (r *AssignmentRepository) ClearAssignments(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM assignments`); err != nil {
		return fmt.Errorf("清空分配记录失败: %w", err)
	}
	return nil
}

// HasOverlap 员工是否已有与 [start, end) 重叠的记录
func (r *AssignmentRepository) HasOverlap(ctx context.Context, employeeID string, start, end time.Time) (bool, error) {
	query := `
		SELECT COUNT(1) FROM assignments
		WHERE employee_id = $1 AND start_time < $2 AND end_time > $3
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, employeeID, r.t(end), r.t(start)).Scan(&n); err != nil {
		return false, fmt.Errorf("检查时间重叠失败: %w", err)
	}
	return n > 0, nil
}

// HasServedToday 员工当天是否已为该服务对象上门
func (r *AssignmentRepository) HasServedToday(ctx context.Context, employeeID, patientID string, day time.Time) (bool, error) {
	dayRange := model.DayRange(day)
	query := `
		SELECT COUNT(1) FROM assignments
		WHERE employee_id = $1 AND patient_id = $2 AND start_time >= $3 AND start_time < $4
	`
	var n int
	err := r.db.QueryRowContext(ctx, query,
		employeeID, patientID, r.t(dayRange.Start), r.t(dayRange.End),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("检查当日上门失败: %w", err)
	}
	return n > 0, nil
}

// ListAssignments 按开始时间排序返回全部记录
func (r *AssignmentRepository) ListAssignments(ctx context.Context) ([]*model.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments ORDER BY start_time, id`
	return r.list(ctx, query)
}

// ListEmployeeAssignments 返回员工在 [from, to) 内开始的记录
func (r *AssignmentRepository) ListEmployeeAssignments(ctx context.Context, employeeID string, from, to time.Time) ([]*model.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments
		WHERE employee_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time, id`
	return r.list(ctx, query, employeeID, r.t(from), r.t(to))
}

func (r *AssignmentRepository) list(ctx context.Context, query string, args ...any) ([]*model.Assignment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询分配记录失败: %w", err)
	}
	defer rows.Close()

	var result []*model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("读取分配记录失败: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanAssignment(row rowScanner) (*model.Assignment, error) {
	var (
		a       model.Assignment
		service string
	)
	err := row.Scan(
		&a.ID, &a.EmployeeID, &a.EmployeeName, &a.PatientID, &a.PatientName, &service,
		database.TimeScanner{Time: &a.StartTime}, database.TimeScanner{Time: &a.EndTime},
		&a.DurationMinutes, &a.TravelMinutes, &a.PriorityScore, &a.Reason,
		database.TimeScanner{Time: &a.CreatedAt}, database.TimeScanner{Time: &a.UpdatedAt},
	)
	if err != nil {
		return nil, err
	}
	a.ServiceType = model.ServiceType(service)
	return &a, nil
}

// LogOperation 记录操作日志
func (r *AssignmentRepository) LogOperation(ctx context.Context, op *store.Operation) error {
	if op.CreatedAt.IsZero() {
		op.CreatedAt = r.now().UTC().Truncate(time.Second)
	}

	var details any
	if len(op.Details) > 0 {
		data, err := json.Marshal(op.Details)
		if err != nil {
			return fmt.Errorf("序列化操作详情失败: %w", err)
		}
		details = string(data)
	}

	query := `
		INSERT INTO operations_log (operation_type, description, details, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, op.Type, op.Description, details, r.t(op.CreatedAt)).Scan(&op.ID); err != nil {
		return fmt.Errorf("记录操作日志失败: %w", err)
	}
	return nil
}

// ListOperations 返回最近的操作日志（新的在前），limit<=0 时返回全部
func (r *AssignmentRepository) ListOperations(ctx context.Context, limit int) ([]*store.Operation, error) {
	query := `SELECT id, operation_type, description, details, created_at FROM operations_log ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询操作日志失败: %w", err)
	}
	defer rows.Close()

	var result []*store.Operation
	for rows.Next() {
		var (
			op      store.Operation
			details sql.NullString
		)
		if err := rows.Scan(&op.ID, &op.Type, &op.Description, &details, database.TimeScanner{Time: &op.CreatedAt}); err != nil {
			return nil, fmt.Errorf("读取操作日志失败: %w", err)
		}
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &op.Details); err != nil {
				return nil, fmt.Errorf("解析操作详情失败: %w", err)
			}
		}
		result = append(result, &op)
	}
	return result, rows.Err()
}
