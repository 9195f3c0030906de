// Package app 按配置组装存储、路程时间与名册，供服务端与命令行共用
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/0pancd04/rota-ai-desertation/internal/config"
	"github.com/0pancd04/rota-ai-desertation/internal/database"
	"github.com/0pancd04/rota-ai-desertation/internal/repository"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/roster"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
	"github.com/0pancd04/rota-ai-desertation/pkg/travel"
)

// Storage 分配存储及其操作日志
type Storage struct {
	Store store.Store
	OpLog store.OperationLog
	// DB 为空表示内存存储
	DB *database.DB
}

// Close 关闭底层连接
func (s *Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Health 检查存储是否可用
func (s *Storage) Health(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Health(ctx)
}

// OpenStorage 按配置打开存储，数据库存储会先执行迁移
func OpenStorage(ctx context.Context, cfg *config.DatabaseConfig) (*Storage, error) {
	if cfg.Driver == "" || cfg.Driver == config.DriverMemory {
		mem := store.NewMemoryStore()
		logger.Info().Str("driver", config.DriverMemory).Msg("使用内存存储")
		return &Storage{Store: mem, OpLog: mem}, nil
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	repo := repository.NewAssignmentRepository(db)
	return &Storage{Store: repo, OpLog: repo, DB: db}, nil
}

// Travel 路程时间提供者及其资源
type Travel struct {
	Provider travel.Provider
	redis    *redis.Client
}

// Close 关闭 Redis 连接
func (t *Travel) Close() error {
	if t.redis == nil {
		return nil
	}
	return t.redis.Close()
}

// NewTravel 按配置组装路程时间提供者
//
// 基础来源为启发式估算、固定时间表或距离矩阵接口；
// 外层为进程内缓存，启用 Redis 时再加一层跨运行缓存。
func NewTravel(ctx context.Context, cfg *config.Config, recorder travel.LookupRecorder) (*Travel, error) {
	heuristic := travel.NewHeuristicProvider().WithRecorder(recorder)

	var base travel.Provider
	switch cfg.Travel.Provider {
	case "", config.TravelHeuristic:
		base = heuristic
	case config.TravelTable:
		f, err := os.Open(cfg.Travel.TablePath)
		if err != nil {
			return nil, fmt.Errorf("打开出行时间表失败: %w", err)
		}
		defer f.Close()
		table, err := travel.LoadTable(f, heuristic)
		if err != nil {
			return nil, err
		}
		base = table.WithRecorder(recorder)
	case config.TravelDistanceMatrix:
		base = travel.NewDistanceMatrixProvider(cfg.Travel.DistanceMatrix, heuristic).WithRecorder(recorder)
	default:
		return nil, fmt.Errorf("不支持的路程时间来源: %s", cfg.Travel.Provider)
	}

	result := &Travel{}
	provider := base
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("Redis 连接失败: %w", err)
		}
		result.redis = client
		provider = travel.NewRedisCache(client, provider, "", cfg.Redis.TTL).WithRecorder(recorder)
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("路程时间使用 Redis 缓存")
	}

	result.Provider = travel.NewMemoCache(provider).WithRecorder(recorder)
	logger.Info().Str("provider", cfg.Travel.Provider).Msg("路程时间来源已配置")
	return result, nil
}

// LoadRoster 按扩展名读取 .xlsx 或 .json 名册
func LoadRoster(path string) (*model.Roster, *roster.ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("打开名册文件失败: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return roster.ImportExcel(f)
	case ".json":
		r, err := roster.ImportJSON(f)
		if err != nil {
			return nil, nil, err
		}
		return r, &roster.ImportReport{Employees: len(r.Employees), Patients: len(r.Patients)}, nil
	default:
		return nil, nil, fmt.Errorf("不支持的名册格式: %s", filepath.Ext(path))
	}
}
