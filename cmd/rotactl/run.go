package main

import (
	"context"
	"fmt"
	"os"

	"github.com/0pancd04/rota-ai-desertation/internal/cli"
)

// Run 执行命令并返回进程退出码
func Run(ctx context.Context, args []string) int {
	root := cli.NewRootCmd(Version)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}
