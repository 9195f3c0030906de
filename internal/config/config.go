// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // 运行环境可能没有时区数据库

	"gopkg.in/yaml.v3"

	"github.com/0pancd04/rota-ai-desertation/pkg/travel"
)

// 数据库驱动
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// 路程时间来源
const (
	TravelHeuristic      = "heuristic"
	TravelTable          = "table"
	TravelDistanceMatrix = "distance_matrix"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	API       APIConfig       `yaml:"api"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Travel    TravelConfig    `yaml:"travel"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name      string `yaml:"name"`
	Env       string `yaml:"env"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// 启动时加载的名册文件 (.xlsx 或 .json)，可为空
	RosterPath string `yaml:"roster_path"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver             string        `yaml:"driver"` // memory/postgres/sqlite
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	Name               string        `yaml:"name"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	SSLMode            string        `yaml:"ssl_mode"`
	Path               string        `yaml:"path"` // SQLite 文件路径
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"conn_max_lifetime"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置，启用后缓存路程时间
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	TTL      time.Duration `yaml:"ttl"`
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `yaml:"rate_limit"` // 每分钟请求数，0 表示不限
	Timeout   time.Duration `yaml:"timeout"`
	CORS      CORSConfig    `yaml:"cors"`
	// 静态 API Key，为空时不校验
	APIKeys []string `yaml:"api_keys"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// SchedulerConfig 排班引擎配置
type SchedulerConfig struct {
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	MaxIterations  int           `yaml:"max_iterations"`
	Timezone       string        `yaml:"timezone"`
	// 任务保留时间，超时的已结束任务被清理
	TaskRetention time.Duration `yaml:"task_retention"`
}

// Location 返回排班使用的时区
func (c *SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// TravelConfig 路程时间配置
type TravelConfig struct {
	Provider       string                      `yaml:"provider"` // heuristic/table/distance_matrix
	TablePath      string                      `yaml:"table_path"`
	DistanceMatrix travel.DistanceMatrixConfig `yaml:"distance_matrix"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:      "rota",
			Env:       "development",
			Port:      7012,
			LogLevel:  "info",
			LogFormat: "console",
		},
		Database: DatabaseConfig{
			Driver:             DriverMemory,
			Host:               "localhost",
			Port:               5432,
			Name:               "rota",
			User:               "rota",
			SSLMode:            "disable",
			Path:               "rota.db",
			MaxOpenConns:       25,
			MaxIdleConns:       5,
			ConnMaxLifetime:    5 * time.Minute,
			SlowQueryThreshold: 200 * time.Millisecond,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
			TTL:      24 * time.Hour,
		},
		API: APIConfig{
			RateLimit: 100,
			Timeout:   30 * time.Second,
			CORS: CORSConfig{
				Enabled: true,
				Origins: []string{"*"},
			},
		},
		Scheduler: SchedulerConfig{
			DefaultTimeout: 60 * time.Second,
			MaxIterations:  1000,
			Timezone:       "UTC",
			TaskRetention:  time.Hour,
		},
		Travel: TravelConfig{
			Provider:       TravelHeuristic,
			DistanceMatrix: travel.DefaultDistanceMatrixConfig(),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load 加载配置：默认值 -> CONFIG_FILE 指定的 YAML 文件 -> 环境变量
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom 与 Load 相同，但显式指定 YAML 文件，空路径表示不读文件
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.App.Name = getEnv("APP_NAME", c.App.Name)
	c.App.Env = getEnv("APP_ENV", c.App.Env)
	c.App.Port = getEnvInt("APP_PORT", c.App.Port)
	c.App.LogLevel = getEnv("APP_LOG_LEVEL", c.App.LogLevel)
	c.App.LogFormat = getEnv("APP_LOG_FORMAT", c.App.LogFormat)
	c.App.RosterPath = getEnv("ROSTER_PATH", c.App.RosterPath)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.Path = getEnv("DB_PATH", c.Database.Path)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.SlowQueryThreshold = getEnvDuration("DB_SLOW_QUERY_THRESHOLD", c.Database.SlowQueryThreshold)

	c.Redis.Enabled = getEnvBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnvInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getEnvInt("REDIS_POOL_SIZE", c.Redis.PoolSize)
	c.Redis.TTL = getEnvDuration("REDIS_TTL", c.Redis.TTL)

	c.API.RateLimit = getEnvInt("API_RATE_LIMIT", c.API.RateLimit)
	c.API.Timeout = getEnvDuration("API_TIMEOUT", c.API.Timeout)
	c.API.CORS.Enabled = getEnvBool("API_CORS_ENABLED", c.API.CORS.Enabled)
	c.API.CORS.Origins = getEnvList("API_CORS_ORIGINS", c.API.CORS.Origins)
	c.API.APIKeys = getEnvList("API_KEYS", c.API.APIKeys)

	c.Scheduler.DefaultTimeout = getEnvDuration("SCHEDULER_TIMEOUT", c.Scheduler.DefaultTimeout)
	c.Scheduler.MaxIterations = getEnvInt("SCHEDULER_MAX_ITERATIONS", c.Scheduler.MaxIterations)
	c.Scheduler.Timezone = getEnv("SCHEDULER_TIMEZONE", c.Scheduler.Timezone)
	c.Scheduler.TaskRetention = getEnvDuration("SCHEDULER_TASK_RETENTION", c.Scheduler.TaskRetention)

	c.Travel.Provider = getEnv("TRAVEL_PROVIDER", c.Travel.Provider)
	c.Travel.TablePath = getEnv("TRAVEL_TABLE_PATH", c.Travel.TablePath)
	c.Travel.DistanceMatrix.BaseURL = getEnv("DISTANCE_MATRIX_BASE_URL", c.Travel.DistanceMatrix.BaseURL)
	c.Travel.DistanceMatrix.APIKey = getEnv("DISTANCE_MATRIX_API_KEY", c.Travel.DistanceMatrix.APIKey)
	c.Travel.DistanceMatrix.Timeout = getEnvDuration("DISTANCE_MATRIX_TIMEOUT", c.Travel.DistanceMatrix.Timeout)

	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Path = getEnv("METRICS_PATH", c.Metrics.Path)
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	switch c.Travel.Provider {
	case TravelHeuristic, TravelDistanceMatrix:
	case TravelTable:
		if c.Travel.TablePath == "" {
			return fmt.Errorf("travel.table_path 不能为空")
		}
	default:
		return fmt.Errorf("不支持的路程时间来源: %s", c.Travel.Provider)
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("无效端口: %d", c.App.Port)
	}
	if c.Scheduler.MaxIterations <= 0 {
		return fmt.Errorf("scheduler.max_iterations 必须大于 0")
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return fmt.Errorf("无效时区 %s: %w", c.Scheduler.Timezone, err)
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList 逗号分隔的列表
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var list []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
