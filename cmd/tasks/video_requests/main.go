// Package main 提供 NEW_VIDEO 命令消费任务的独立入口：从订阅拉取请求，
// 运行要点流水线，并把会话事件写入 Outbox。
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	configloader "github.com/bionicotaku/lingo-services-takeaways/internal/infrastructure/configloader"
	"github.com/go-kratos/kratos/v2/log"
)

type videoRequestsApp struct {
	Task   runner
	Logger log.Logger
}

type runner interface {
	Run(ctx context.Context) error
}

func main() {
	ctx := context.Background()

	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	flag.Parse()

	params := configloader.Params{ConfPath: *confFlag}
	app, cleanup, err := wireVideoRequestsTask(ctx, params)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	logger := app.Logger
	if logger == nil {
		logger = log.NewStdLogger(os.Stdout)
	}
	helper := log.NewHelper(logger)

	if app.Task == nil {
		helper.Warn("video requests task disabled (missing messaging.requests configuration)")
		return
	}

	helper.Info("starting video requests task")

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Task.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		helper.Errorf("video requests task stopped unexpectedly: %v", err)
		os.Exit(1)
	}

	helper.Info("video requests task stopped")
}
