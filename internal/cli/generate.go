package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/0pancd04/rota-ai-desertation/pkg/careplan"
	"github.com/0pancd04/rota-ai-desertation/pkg/dispatcher"
	"github.com/0pancd04/rota-ai-desertation/pkg/dispatcher/constraint"
	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/scheduler/solver"
	"github.com/0pancd04/rota-ai-desertation/pkg/stats"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
)

// generateOutput generate --json 的输出
type generateOutput struct {
	*solver.Result
	Summary *stats.Summary `json:"summary,omitempty"`
}

func newGenerateCmd() *cobra.Command {
	var (
		start      string
		clearFirst bool
		asJSON     bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "生成一周排班（默认从下一个周一开始）",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, true)
			if err != nil {
				return err
			}
			defer e.Close()

			startDate, err := e.parseDate("start", start)
			if err != nil {
				return err
			}

			if clearFirst {
				if err := clearAssignments(cmd, e); err != nil {
					return err
				}
			}

			estimator := careplan.NewEstimator()
			router := dispatcher.NewRouteEngine(e.storage.Store, e.travel.Provider,
				dispatcher.WithMaxIterations(e.cfg.Scheduler.MaxIterations),
				dispatcher.WithFilter(constraint.NewFilter()),
				dispatcher.WithEstimator(estimator),
			)
			loc := e.location
			s := solver.NewWeeklySolver(router,
				solver.WithClock(func() time.Time { return time.Now().In(loc) }),
				solver.WithOperationLog(e.storage.OpLog),
			)

			if e.cfg.Scheduler.DefaultTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, e.cfg.Scheduler.DefaultTimeout)
				defer cancel()
			}

			result, err := s.Generate(ctx, &solver.GenerateRequest{
				RunID:     uuid.New().String(),
				StartDate: startDate,
				Employees: e.roster.Employees,
				Patients:  e.roster.Patients,
			})
			if err != nil {
				if result != nil {
					logger.Warn().Int("created", result.Created).Msg("排班中断，已写入的分配保留在存储中")
				}
				return err
			}

			summary := stats.NewCalculator(estimator).Compute(result.Assignments, e.roster, stats.Filter{})
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, generateOutput{Result: result, Summary: summary})
			}
			printGenerate(out, result, summary, verbose)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "起始日期 YYYY-MM-DD，默认下一个周一")
	cmd.Flags().BoolVar(&clearFirst, "clear", false, "生成前清空已有分配")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出结果")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "逐条列出生成的分配")
	return cmd
}

func printGenerate(w io.Writer, result *solver.Result, summary *stats.Summary, verbose bool) {
	_, _ = fmt.Fprintf(w, "排班 %s  起始 %s  共 %d 条分配  耗时 %s\n",
		result.RunID, result.StartDate, result.Created, result.Duration.Round(time.Millisecond))
	for _, d := range result.Days {
		_, _ = fmt.Fprintf(w, "  %s  分配 %3d  未满足 %4d 分钟\n", d.Date, d.Created, d.UnmetMinutes)
	}
	if st := result.Statistics; st != nil {
		_, _ = fmt.Fprintf(w, "上门 %d 分钟  路程 %d 分钟  迭代 %d 次 (触顶 %d 次)\n",
			st.TotalVisitMinutes, st.TotalTravelMinutes, st.Iterations, st.IterationLimitHits)
	}
	if summary != nil {
		_, _ = fmt.Fprintf(w, "需求满足度 %.1f%%  未安排服务对象 %d 名", summary.DemandSatisfaction, len(summary.UnassignedPatients))
		if summary.Fairness != nil {
			_, _ = fmt.Fprintf(w, "  公平性评分 %.1f (基尼 %.3f)", summary.Fairness.OverallFairnessScore, summary.Fairness.VisitMinutesGini)
		}
		_, _ = fmt.Fprintln(w)
	}
	if !verbose {
		return
	}
	for _, a := range result.Assignments {
		_, _ = fmt.Fprintf(w, "  #%d %s %s-%s %s -> %s %s\n",
			a.ID, a.Date(), a.StartTime.Format("15:04"), a.EndTime.Format("15:04"),
			a.EmployeeID, a.PatientID, a.ServiceType)
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "清空全部分配",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := clearAssignments(cmd, e); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "已清空全部分配")
			return nil
		},
	}
}

func clearAssignments(cmd *cobra.Command, e *env) error {
	ctx := cmd.Context()
	if err := e.storage.Store.ClearAssignments(ctx); err != nil {
		return fmt.Errorf("清空分配失败: %w", err)
	}
	op := &store.Operation{Type: store.OperationClear, Description: "清空全部分配"}
	if err := e.storage.OpLog.LogOperation(ctx, op); err != nil {
		logger.Warn().Err(err).Msg("写入操作日志失败")
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
