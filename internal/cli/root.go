// Package cli 实现 rotactl 命令行：离线生成、校验、统计与导出周排班
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/0pancd04/rota-ai-desertation/internal/app"
	"github.com/0pancd04/rota-ai-desertation/internal/config"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

type configKey struct{}

// globalFlags 全局参数，非空时覆盖配置文件与环境变量
type globalFlags struct {
	configPath string
	driver     string
	dbPath     string
	rosterPath string
	tablePath  string
	timezone   string
	logLevel   string
}

func (g *globalFlags) apply(cfg *config.Config) {
	switch {
	case g.driver != "":
		cfg.Database.Driver = g.driver
	case g.configPath == "" && os.Getenv("DB_DRIVER") == "":
		// 内存存储随进程退出而丢失，命令行默认落盘
		cfg.Database.Driver = config.DriverSQLite
	}
	if g.dbPath != "" {
		cfg.Database.Path = g.dbPath
	}
	if g.rosterPath != "" {
		cfg.App.RosterPath = g.rosterPath
	}
	if g.tablePath != "" {
		cfg.Travel.Provider = config.TravelTable
		cfg.Travel.TablePath = g.tablePath
	}
	if g.timezone != "" {
		cfg.Scheduler.Timezone = g.timezone
	}
	if g.logLevel != "" {
		cfg.App.LogLevel = g.logLevel
	}
}

// NewRootCmd 创建 rotactl 根命令
func NewRootCmd(version string) *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:          "rotactl",
		Short:        "上门护理周排班命令行工具",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFrom(flags.configPath)
			if err != nil {
				return err
			}
			flags.apply(cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			// 日志写 stderr，stdout 只留给命令输出
			logger.Init(logger.Config{
				Level:  cfg.App.LogLevel,
				Format: cfg.App.LogFormat,
				Output: "stderr",
			})
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", os.Getenv("CONFIG_FILE"), "YAML 配置文件路径")
	pf.StringVar(&flags.driver, "db", "", "存储驱动 (memory/sqlite/postgres)，未配置时为 sqlite")
	pf.StringVar(&flags.dbPath, "db-path", "", "SQLite 文件路径")
	pf.StringVar(&flags.rosterPath, "roster", "", "名册文件 (.xlsx 或 .json)")
	pf.StringVar(&flags.tablePath, "travel-table", "", "出行时间表 JSON，设置后使用固定时间表")
	pf.StringVar(&flags.timezone, "timezone", "", "排班时区，例如 Europe/London")
	pf.StringVar(&flags.logLevel, "log-level", "", "日志级别 (debug/info/warn/error)")

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newReanalyzeCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newRosterCmd())
	cmd.AddCommand(newClearCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// env 一次命令执行所需的存储、路程时间与名册
type env struct {
	cfg      *config.Config
	storage  *app.Storage
	travel   *app.Travel
	roster   *model.Roster
	location *time.Location
}

// openEnv 按配置打开资源，needRoster 为 true 时名册不能为空
func openEnv(ctx context.Context, needRoster bool) (*env, error) {
	cfg := configFrom(ctx)

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	roster := &model.Roster{}
	if cfg.App.RosterPath != "" {
		loaded, _, err := app.LoadRoster(cfg.App.RosterPath)
		if err != nil {
			return nil, err
		}
		roster = loaded
	}
	if needRoster && len(roster.Employees) == 0 {
		return nil, fmt.Errorf("名册中没有员工，请通过 --roster 指定名册文件")
	}

	storage, err := app.OpenStorage(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	tr, err := app.NewTravel(ctx, cfg, nil)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	return &env{cfg: cfg, storage: storage, travel: tr, roster: roster, location: loc}, nil
}

func (e *env) Close() {
	_ = e.travel.Close()
	_ = e.storage.Close()
}

// parseDate 解析 YYYY-MM-DD，空字符串返回零值
func (e *env) parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(model.DateLayout, value, e.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s 日期格式应为 YYYY-MM-DD: %q", flag, value)
	}
	return t, nil
}
