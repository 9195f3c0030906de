package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/0pancd04/rota-ai-desertation/internal/app"
	"github.com/0pancd04/rota-ai-desertation/pkg/roster"
)

func newRosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "名册工具",
	}
	cmd.AddCommand(newRosterCheckCmd())
	cmd.AddCommand(newRosterConvertCmd())
	return cmd
}

func newRosterCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "读取名册并报告被跳过的行",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, rep, err := app.LoadRoster(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "员工 %d 名，服务对象 %d 名\n", len(r.Employees), len(r.Patients))
			for _, s := range rep.Skipped {
				_, _ = fmt.Fprintf(out, "  跳过 %s 第 %d 行: %s\n", s.Sheet, s.Row, s.Reason)
			}
			return nil
		},
	}
}

func newRosterConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <file> <out.xlsx>",
		Short: "把名册 (.json 或 .xlsx) 写成标准 Excel 工作簿",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := app.LoadRoster(args[0])
			if err != nil {
				return err
			}
			data, err := roster.Workbook(r)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return fmt.Errorf("写入文件失败: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "已写入 %s\n", args[1])
			return nil
		},
	}
}
