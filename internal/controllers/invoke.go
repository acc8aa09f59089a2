package controllers

import (
	"context"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// operation 前缀，供日志与限流中间件识别路由。
const operationPrefix = "/takeaways.v1."

// invoke 以 Kratos 生成代码的方式执行服务端中间件链并写回 JSON。
func invoke[Req any, Resp any](ctx khttp.Context, operation string, req Req, fn func(context.Context, Req) (Resp, error)) error {
	khttp.SetOperation(ctx, operationPrefix+operation)
	h := ctx.Middleware(func(c context.Context, in any) (any, error) {
		return fn(c, in.(Req))
	})
	// 使用请求自身的 Context：khttp.Context 会被池化复用，不能被后台任务持有。
	out, err := h(ctx.Request().Context(), req)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}
