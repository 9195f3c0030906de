// Rota 上门护理周排班服务
// 主程序入口

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/0pancd04/rota-ai-desertation/internal/app"
	"github.com/0pancd04/rota-ai-desertation/internal/config"
	"github.com/0pancd04/rota-ai-desertation/internal/handler"
	"github.com/0pancd04/rota-ai-desertation/internal/metrics"
	"github.com/0pancd04/rota-ai-desertation/internal/middleware"
	"github.com/0pancd04/rota-ai-desertation/internal/security"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/progress"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: cfg.App.LogFormat,
	})

	// 打印版本信息
	fmt.Printf("Rota 上门护理排班服务 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("服务异常退出")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	storage, err := app.OpenStorage(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer storage.Close()

	tr, err := app.NewTravel(ctx, cfg, metrics.TravelLookupRecorder())
	if err != nil {
		return err
	}
	defer tr.Close()

	roster := &model.Roster{}
	if cfg.App.RosterPath != "" {
		loaded, rep, err := app.LoadRoster(cfg.App.RosterPath)
		if err != nil {
			return err
		}
		roster = loaded
		logger.Info().
			Str("path", cfg.App.RosterPath).
			Int("employees", rep.Employees).
			Int("patients", rep.Patients).
			Int("skipped", len(rep.Skipped)).
			Msg("名册已加载")
	}

	tracker := progress.NewTracker()
	rotaHandler := handler.NewRotaHandler(handler.Deps{
		Store:     storage.Store,
		OpLog:     storage.OpLog,
		Travel:    tr.Provider,
		Tracker:   tracker,
		Roster:    roster,
		Scheduler: cfg.Scheduler,
	}).WithBaseContext(ctx)

	// 创建 HTTP 服务器
	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	// 健康检查端点
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if err := storage.Health(r.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status, "service": cfg.App.Name})
	})

	// 版本信息端点
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// ========================================
	// API v1 端点
	// ========================================
	rotaHandler.Register(mux)

	// Prometheus 指标端点
	skipAuth := []string{"/health", "/version"}
	if cfg.Metrics.Enabled && cfg.Metrics.Path != "" {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
		skipAuth = append(skipAuth, cfg.Metrics.Path)
	}

	// ========================================
	// 中间件
	// ========================================
	var limiter *security.RateLimiter
	if cfg.API.RateLimit > 0 {
		limiter = security.NewRateLimiter(cfg.API.RateLimit, time.Minute)
		defer limiter.Stop()
	}
	keys := security.NewAPIKeyManager(cfg.API.APIKeys...)

	// 执行顺序：recovery -> requestID -> logging -> security headers -> cors -> rateLimit -> auth -> handler
	h := middleware.Chain(mux,
		middleware.Recovery,
		middleware.RequestID,
		middleware.Logging,
		middleware.SecurityHeaders,
		middleware.CORS(cfg.API.CORS),
		middleware.RateLimit(limiter),
		middleware.APIKeyAuth(keys, skipAuth...),
	)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      h,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Scheduler.DefaultTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 定期清理已结束的后台任务
	go cleanupTasks(ctx, rotaHandler, cfg.Scheduler.TaskRetention)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("env", cfg.App.Env).
			Str("store", cfg.Database.Driver).
			Str("travel", cfg.Travel.Provider).
			Bool("auth", keys.Enabled()).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// 优雅关闭
	logger.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}

	logger.Info().Msg("服务器已关闭")
	return nil
}

func cleanupTasks(ctx context.Context, h *handler.RotaHandler, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(retention / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.CleanupTasks(retention); n > 0 {
				logger.Debug().Int("removed", n).Msg("已清理过期任务")
			}
		}
	}
}
