//go:build wireinject
// +build wireinject

// Package main 为 NEW_VIDEO 消费任务提供 Wire 依赖注入定义。
package main

import (
	"context"
	"fmt"

	"github.com/bionicotaku/lingo-services-takeaways/internal/clients"
	configloader "github.com/bionicotaku/lingo-services-takeaways/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	videorequests "github.com/bionicotaku/lingo-services-takeaways/internal/tasks/video_requests"

	"github.com/bionicotaku/lingo-utils/gclog"
	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/bionicotaku/lingo-utils/pgxpoolx"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

//go:generate go run github.com/google/wire/cmd/wire

func wireVideoRequestsTask(context.Context, configloader.Params) (*videoRequestsApp, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet,
		gclog.ProviderSet,
		obswire.ProviderSet,
		pgxpoolx.ProviderSet,
		txmanager.ProviderSet,
		repositories.ProviderSet,
		clients.ProviderSet,
		services.ProviderSet,
		videorequests.ProvideTask,
		newVideoRequestsApp,
	))
}

func newVideoRequestsApp(_ *obswire.Component, logger log.Logger, task *videorequests.Task) (*videoRequestsApp, error) {
	if task == nil {
		return &videoRequestsApp{Logger: logger}, nil
	}
	if logger == nil {
		return nil, fmt.Errorf("logger not initialized")
	}
	return &videoRequestsApp{
		Task:   task,
		Logger: logger,
	}, nil
}
