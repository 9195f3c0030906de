// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	// 未显式初始化时使用默认配置
	Init(DefaultConfig())
	return &logger
}

// ctxKey 上下文键类型
type ctxKey string

const requestIDKey ctxKey = "request_id"

// ContextWithRequestID 将请求ID写入上下文
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext 从上下文读取请求ID
func RequestIDFromContext(ctx context.Context) string {
	reqID, _ := ctx.Value(requestIDKey).(string)
	return reqID
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		l = l.With().Str("request_id", reqID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields 添加多个字段
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// SetOutput 替换输出（测试使用）
func SetOutput(w io.Writer) {
	once.Do(func() {})
	logger = zerolog.New(w).With().Timestamp().Logger()
}

// RotaLogger 排班引擎专用日志器
type RotaLogger struct {
	base *zerolog.Logger
}

// NewRotaLogger 创建排班引擎日志器
func NewRotaLogger(component string) *RotaLogger {
	l := Get().With().Str("component", component).Logger()
	return &RotaLogger{base: &l}
}

// Base 返回底层日志器
func (l *RotaLogger) Base() *zerolog.Logger {
	return l.base
}

// StartRun 记录周排班开始
func (l *RotaLogger) StartRun(runID string, startDate time.Time, employees, patients int) {
	l.base.Info().
		Str("run_id", runID).
		Str("start_date", startDate.Format("2006-01-02")).
		Int("employees", employees).
		Int("patients", patients).
		Msg("开始生成周排班")
}

// DayComplete 记录单日排班完成
func (l *RotaLogger) DayComplete(runID string, day time.Time, created int) {
	l.base.Info().
		Str("run_id", runID).
		Str("date", day.Format("2006-01-02")).
		Int("created", created).
		Msg("单日排班完成")
}

// VisitSkipped 记录无法安排的上门
func (l *RotaLogger) VisitSkipped(employeeID, patientID, reason string) {
	l.base.Debug().
		Str("employee_id", employeeID).
		Str("patient_id", patientID).
		Str("reason", reason).
		Msg("跳过上门")
}

// IterationLimit 记录达到迭代上限
func (l *RotaLogger) IterationLimit(employeeID string, day time.Time, limit int) {
	l.base.Warn().
		Str("employee_id", employeeID).
		Str("date", day.Format("2006-01-02")).
		Int("limit", limit).
		Msg("路线规划达到迭代上限")
}

// RunComplete 记录周排班完成
func (l *RotaLogger) RunComplete(runID string, duration time.Duration, created int, err error) {
	event := l.base.Info()
	if err != nil {
		event = l.base.Error().Err(err)
	}
	event.
		Str("run_id", runID).
		Dur("duration", duration).
		Int("created", created).
		Msg("周排班生成结束")
}
