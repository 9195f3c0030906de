package database

import (
	"context"
	"fmt"
	"time"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS assignments (
		id               BIGSERIAL PRIMARY KEY,
		employee_id      TEXT NOT NULL,
		employee_name    TEXT NOT NULL DEFAULT '',
		patient_id       TEXT NOT NULL,
		patient_name     TEXT NOT NULL DEFAULT '',
		service_type     TEXT NOT NULL DEFAULT '',
		start_time       TIMESTAMPTZ NOT NULL,
		end_time         TIMESTAMPTZ NOT NULL,
		duration_minutes INTEGER NOT NULL,
		travel_minutes   INTEGER NOT NULL DEFAULT 0 CHECK (travel_minutes BETWEEN 0 AND 180),
		priority_score   DOUBLE PRECISION NOT NULL DEFAULT 5.0,
		reason           TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL,
		CHECK (end_time > start_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_employee_start ON assignments (employee_id, start_time)`,
	`CREATE TABLE IF NOT EXISTS operations_log (
		id             BIGSERIAL PRIMARY KEY,
		operation_type TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		details        TEXT,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS assignments (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id      TEXT NOT NULL,
		employee_name    TEXT NOT NULL DEFAULT '',
		patient_id       TEXT NOT NULL,
		patient_name     TEXT NOT NULL DEFAULT '',
		service_type     TEXT NOT NULL DEFAULT '',
		start_time       TEXT NOT NULL,
		end_time         TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		travel_minutes   INTEGER NOT NULL DEFAULT 0 CHECK (travel_minutes BETWEEN 0 AND 180),
		priority_score   REAL NOT NULL DEFAULT 5.0,
		reason           TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		CHECK (end_time > start_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_employee_start ON assignments (employee_id, start_time)`,
	`CREATE TABLE IF NOT EXISTS operations_log (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_type TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		details        TEXT,
		created_at     TEXT NOT NULL
	)`,
}

// Migrate 创建表结构，可重复执行
func (db *DB) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if db.dialect == DialectSQLite {
		schema = sqliteSchema
	}
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行第 %d 条迁移失败: %w", i+1, err)
		}
	}
	return nil
}

// TimeScanner 读取时间列，兼容 PostgreSQL 的 time.Time 与 SQLite 的文本
type TimeScanner struct {
	Time *time.Time
}

// Scan 实现 sql.Scanner
func (s TimeScanner) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*s.Time = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	case nil:
		*s.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("无法解析时间列: %T", src)
	}
}

func (s TimeScanner) parse(text string) error {
	for _, layout := range []string{SQLiteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, text); err == nil {
			*s.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("无法解析时间: %q", text)
}
