// rotactl 离线生成与维护上门护理周排班
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version 构建时通过 -ldflags "-X main.Version=..." 注入
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(Run(ctx, os.Args[1:]))
}
