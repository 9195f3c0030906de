// Package database 提供数据库连接和管理
package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL 驱动
	_ "modernc.org/sqlite" // SQLite 驱动

	"github.com/0pancd04/rota-ai-desertation/internal/config"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
)

// Dialect SQL 方言
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLiteTimeLayout SQLite 中时间列的文本格式（UTC），字典序与时间顺序一致
const SQLiteTimeLayout = "2006-01-02 15:04:05"

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// Rebind 将 $N 占位符转换为方言格式，查询中的参数需按顺序出现
func (d Dialect) Rebind(query string) string {
	if d == DialectSQLite {
		return placeholderPattern.ReplaceAllString(query, "?")
	}
	return query
}

// TimeValue 返回写入时间列的参数值
func (d Dialect) TimeValue(t time.Time) any {
	if d == DialectSQLite {
		return t.UTC().Format(SQLiteTimeLayout)
	}
	return t.UTC()
}

// DB 数据库连接封装
type DB struct {
	*sql.DB
	dialect       Dialect
	slowThreshold time.Duration
}

// New 按配置打开 PostgreSQL 或 SQLite 连接
func New(cfg *config.DatabaseConfig) (*DB, error) {
	var (
		dialect Dialect
		dsn     = cfg.DSN()
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		dialect = DialectPostgres
	case config.DriverSQLite:
		dialect = DialectSQLite
		dsn += "?_pragma=busy_timeout(5000)"
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", cfg.Driver)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	// 配置连接池
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	logger.Info().
		Str("driver", cfg.Driver).
		Str("host", cfg.Host).
		Str("database", cfg.Name).
		Msg("数据库连接成功")

	return Wrap(db, dialect, cfg.SlowQueryThreshold), nil
}

// Wrap 封装已打开的连接
func Wrap(db *sql.DB, dialect Dialect, slowThreshold time.Duration) *DB {
	return &DB{DB: db, dialect: dialect, slowThreshold: slowThreshold}
}

// Dialect 返回 SQL 方言
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	if db.DB != nil {
		logger.Info().Msg("关闭数据库连接")
		return db.DB.Close()
	}
	return nil
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction 执行事务
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("事务回滚失败: %v (原始错误: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("事务提交失败: %w", err)
	}

	return nil
}

// ExecContext 执行SQL语句
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := db.DB.ExecContext(ctx, db.dialect.Rebind(query), args...)
	db.logSlow(query, time.Since(start))
	return result, err
}

// QueryContext 执行查询
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.DB.QueryContext(ctx, db.dialect.Rebind(query), args...)
	db.logSlow(query, time.Since(start))
	return rows, err
}

// QueryRowContext 执行单行查询
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := db.DB.QueryRowContext(ctx, db.dialect.Rebind(query), args...)
	db.logSlow(query, time.Since(start))
	return row
}

func (db *DB) logSlow(query string, duration time.Duration) {
	if db.slowThreshold > 0 && duration > db.slowThreshold {
		logger.Warn().
			Str("query", truncateQuery(query)).
			Dur("duration", duration).
			Msg("慢SQL查询")
	}
}

// truncateQuery 截断长查询
func truncateQuery(query string) string {
	if len(query) > 200 {
		return query[:200] + "..."
	}
	return query
}
