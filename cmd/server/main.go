// Package main 提供要点服务的启动入口。
// 负责加载配置、初始化依赖（通过 Wire）、启动 HTTP/WebSocket Server 与后台任务并优雅关闭。
package main

import (
	"context"
	"errors"
	"flag"
	"sync"

	configloader "github.com/bionicotaku/lingo-services-takeaways/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	videorequests "github.com/bionicotaku/lingo-services-takeaways/internal/tasks/video_requests"
	obswire "github.com/bionicotaku/lingo-utils/observability"
	outboxpublisher "github.com/bionicotaku/lingo-utils/outbox/publisher"
	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs" // 自动设置 GOMAXPROCS 为容器 CPU 配额
)

// newApp 负责组装 Kratos 应用：注入观测组件、日志器、服务元信息、HTTP Server 与后台任务。
//
// 参数：
//   - hs: 已注册全部路由与中间件的 HTTP Server（含会话 WebSocket 升级路由）
//   - publisher: Outbox 发布 Runner，未配置事件主题时为 nil
//   - requests: NEW_VIDEO 命令消费任务，未配置订阅时为 nil
//   - sessions: 会话服务，停止时等待其后台流水线结束
func newApp(
	_ *obswire.Component,
	logger log.Logger,
	hs *khttp.Server,
	meta configloader.ServiceInfo,
	publisher *outboxpublisher.Runner,
	requests *videorequests.Task,
	sessions *services.SessionService,
) *kratos.App {
	options := []kratos.Option{
		kratos.ID(meta.InstanceID),
		kratos.Name(meta.Name),
		kratos.Version(meta.Version),
		kratos.Metadata(map[string]string{"environment": meta.Environment}),
		kratos.Logger(logger),
		kratos.Server(hs),
	}

	type worker struct {
		name string
		run  func(context.Context) error
	}

	var workers []worker
	if publisher != nil {
		workers = append(workers, worker{name: "outbox publisher", run: publisher.Run})
	}
	if requests != nil {
		workers = append(workers, worker{name: "video requests", run: requests.Run})
	}

	var (
		wg      sync.WaitGroup
		cancels []context.CancelFunc
	)
	helper := log.NewHelper(logger)

	options = append(options,
		kratos.BeforeStart(func(ctx context.Context) error {
			cancels = make([]context.CancelFunc, len(workers))
			for i := range workers {
				runCtx, cancel := context.WithCancel(ctx)
				cancels[i] = cancel
				wg.Add(1)
				worker := workers[i]
				go func() {
					defer wg.Done()
					if err := worker.run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
						helper.Warnf("%s stopped: %v", worker.name, err)
					}
				}()
			}
			return nil
		}),
		kratos.AfterStop(func(ctx context.Context) error {
			for _, cancel := range cancels {
				if cancel != nil {
					cancel()
				}
			}
			done := make(chan struct{})
			go func() {
				wg.Wait()
				if sessions != nil {
					sessions.Wait()
				}
				close(done)
			}()
			select {
			case <-ctx.Done():
			case <-done:
			}
			return nil
		}),
	)

	return kratos.New(options...)
}

func main() {
	ctx := context.Background()

	// 1. 解析命令行参数：-conf 指定配置文件路径或目录
	confFlag := flag.String("conf", "", "config path or directory, eg: -conf configs/config.yaml")
	flag.Parse()

	params := configloader.Params{
		ConfPath: *confFlag,
	}

	// 2. 通过 Wire 装配所有依赖并创建 Kratos App，wireApp 由 wire_gen.go 生成
	app, cleanupApp, err := wireApp(ctx, params)
	if err != nil {
		panic(err)
	}
	defer cleanupApp()

	// 3. 启动应用并阻塞，直到收到停止信号（SIGINT/SIGTERM）
	if err := app.Run(); err != nil {
		panic(err)
	}
}
