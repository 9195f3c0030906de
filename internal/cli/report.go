package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/0pancd04/rota-ai-desertation/pkg/careplan"
	"github.com/0pancd04/rota-ai-desertation/pkg/report"
	"github.com/0pancd04/rota-ai-desertation/pkg/stats"
)

// filterFlags 统计范围参数
type filterFlags struct {
	from     string
	to       string
	weekdays []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "起始日期 YYYY-MM-DD（含）")
	cmd.Flags().StringVar(&f.to, "to", "", "结束日期 YYYY-MM-DD（含）")
	cmd.Flags().StringSliceVar(&f.weekdays, "weekday", nil, "仅统计这些星期，例如 mon,tue")
}

func (f *filterFlags) build(e *env) (stats.Filter, error) {
	var filter stats.Filter
	var err error
	if filter.From, err = e.parseDate("from", f.from); err != nil {
		return filter, err
	}
	if filter.To, err = e.parseDate("to", f.to); err != nil {
		return filter, err
	}
	for _, name := range f.weekdays {
		wd, ok := stats.ParseWeekday(name)
		if !ok {
			return filter, fmt.Errorf("未知的星期: %q", name)
		}
		filter.Weekdays = append(filter.Weekdays, wd)
	}
	return filter, nil
}

func newStatsCmd() *cobra.Command {
	var ff filterFlags

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "输出排班统计 (JSON)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			filter, err := ff.build(e)
			if err != nil {
				return err
			}
			assignments, err := e.storage.Store.ListAssignments(cmd.Context())
			if err != nil {
				return fmt.Errorf("读取分配失败: %w", err)
			}

			summary := stats.NewCalculator(careplan.NewEstimator()).Compute(assignments, e.roster, filter)
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}

	ff.register(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		ff  filterFlags
		out string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "导出排班 Excel 工作簿",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			filter, err := ff.build(e)
			if err != nil {
				return err
			}
			assignments, err := e.storage.Store.ListAssignments(cmd.Context())
			if err != nil {
				return fmt.Errorf("读取分配失败: %w", err)
			}

			summary := stats.NewCalculator(careplan.NewEstimator()).Compute(assignments, e.roster, filter)
			data, err := report.ExportRota(filter.Apply(assignments), summary)
			if err != nil {
				return err
			}

			path := out
			if path == "" {
				path = fmt.Sprintf("rota-%s.xlsx", time.Now().In(e.location).Format("20060102"))
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("写入文件失败: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "已导出 %d 条分配到 %s\n", len(filter.Apply(assignments)), path)
			return nil
		},
	}

	ff.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "输出文件，默认 rota-YYYYMMDD.xlsx")
	return cmd
}
