// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"

	"github.com/0pancd04/rota-ai-desertation/internal/database"
)

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Dialect() database.Dialect
}

// rowScanner 兼容 *sql.Row 与 *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}
