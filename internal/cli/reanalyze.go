package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/0pancd04/rota-ai-desertation/pkg/dispatcher/constraint"
	apperrors "github.com/0pancd04/rota-ai-desertation/pkg/errors"
	"github.com/0pancd04/rota-ai-desertation/pkg/swap"
	"github.com/0pancd04/rota-ai-desertation/pkg/validator"
)

func newReanalyzeCmd() *cobra.Command {
	var (
		allowTimeChange bool
		asJSON          bool
	)

	cmd := &cobra.Command{
		Use:   "reanalyze <assignment-id>...",
		Short: "为指定分配重新挑选员工",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			e, err := openEnv(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer e.Close()

			r := swap.NewReanalyzer(e.storage.Store, e.travel.Provider, e.roster,
				swap.WithFilter(constraint.NewFilter()),
				swap.WithOperationLog(e.storage.OpLog),
			)
			updated, err := r.Reanalyze(cmd.Context(), ids, allowTimeChange)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, updated)
			}
			_, _ = fmt.Fprintf(out, "请求 %d 条，更新 %d 条\n", len(ids), len(updated))
			for _, a := range updated {
				_, _ = fmt.Fprintf(out, "  #%d %s %s %s -> %s\n",
					a.ID, a.Date(), a.StartTime.Format("15:04"), a.PatientID, a.EmployeeID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allowTimeChange, "allow-time-change", false, "允许调整上门时间（当前版本保持原时间）")
	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出更新后的分配")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("无效的分配ID: %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newValidateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "检测已存储排班中的冲突",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer e.Close()

			assignments, err := e.storage.Store.ListAssignments(cmd.Context())
			if err != nil {
				return fmt.Errorf("读取分配失败: %w", err)
			}
			conflicts := validator.NewConflictDetector(nil, constraint.NewFilter()).DetectAll(assignments, e.roster)

			out := cmd.OutOrStdout()
			if asJSON {
				if conflicts == nil {
					conflicts = []validator.Conflict{}
				}
				if err := writeJSON(out, conflicts); err != nil {
					return err
				}
			} else {
				_, _ = fmt.Fprintf(out, "检查 %d 条分配，发现 %d 个问题\n", len(assignments), len(conflicts))
				for _, c := range conflicts {
					_, _ = fmt.Fprintf(out, "  [%s] %s %s %s: %s\n", c.Severity, c.Type, c.Date, c.EmployeeID, c.Message)
				}
			}

			// 存在错误级冲突时以非零码退出
			if n := countErrors(conflicts); n > 0 {
				return apperrors.ScheduleConflict(n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出冲突列表")
	return cmd
}

func countErrors(conflicts []validator.Conflict) int {
	n := 0
	for _, c := range conflicts {
		if c.Severity == "error" {
			n++
		}
	}
	return n
}
