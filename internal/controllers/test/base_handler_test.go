package controllers_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/controllers"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/stretchr/testify/require"
)

type headerCarrier http.Header

func (h headerCarrier) Get(key string) string      { return http.Header(h).Get(key) }
func (h headerCarrier) Set(key, value string)      { http.Header(h).Set(key, value) }
func (h headerCarrier) Add(key, value string)      { http.Header(h).Add(key, value) }
func (h headerCarrier) Values(key string) []string { return http.Header(h).Values(key) }
func (h headerCarrier) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys
}

type fakeTransport struct {
	header headerCarrier
}

func (t fakeTransport) Kind() transport.Kind            { return transport.KindHTTP }
func (t fakeTransport) Endpoint() string                { return "" }
func (t fakeTransport) Operation() string               { return "/takeaways.v1.Test/Op" }
func (t fakeTransport) RequestHeader() transport.Header { return t.header }
func (t fakeTransport) ReplyHeader() transport.Header   { return headerCarrier(http.Header{}) }

func TestBaseHandlerExtractMetadata(t *testing.T) {
	payload, err := json.Marshal(map[string]any{"sub": "7b61d0ed-5ba1-4f21-a636-7f9f1a9f9a01"})
	require.NoError(t, err)
	userInfo := base64.RawURLEncoding.EncodeToString(payload)

	header := http.Header{}
	header.Set("X-Takeaways-Session", "tab-42")
	header.Set("X-Md-Idempotency-Key", "req-456")
	header.Set("X-Client-Version", "1.4.0")
	header.Set("X-Apigateway-Api-Userinfo", userInfo)

	ctx := transport.NewServerContext(context.Background(), fakeTransport{header: headerCarrier(header)})
	handler := controllers.NewBaseHandler(controllers.HandlerTimeouts{})
	meta := handler.ExtractMetadata(ctx)

	require.Equal(t, "tab-42", meta.SessionID)
	require.Equal(t, "req-456", meta.IdempotencyKey)
	require.Equal(t, "1.4.0", meta.ClientVersion)
	require.Equal(t, "7b61d0ed-5ba1-4f21-a636-7f9f1a9f9a01", meta.UserID)
	require.False(t, meta.InvalidUserInfo)

	require.Equal(t, meta, handler.ExtractHeaderMetadata(header))

	stored, ok := controllers.HandlerMetadataFromContext(controllers.InjectHandlerMetadata(ctx, meta))
	require.True(t, ok)
	require.Equal(t, meta, stored)
}

func TestBaseHandlerExtractMetadata_InvalidUserInfo(t *testing.T) {
	header := http.Header{}
	header.Set("X-Apigateway-Api-Userinfo", "%%%")
	meta := controllers.NewBaseHandler(controllers.HandlerTimeouts{}).ExtractHeaderMetadata(header)
	require.True(t, meta.InvalidUserInfo)
	require.Empty(t, meta.UserID)
}

func TestBaseHandlerExtractMetadata_NoTransport(t *testing.T) {
	meta := controllers.NewBaseHandler(controllers.HandlerTimeouts{}).ExtractMetadata(context.Background())
	require.True(t, meta.IsZero())
}

func TestBaseHandlerTimeoutFallbacks(t *testing.T) {
	cases := []struct {
		name string
		in   controllers.HandlerTimeouts
		want controllers.HandlerTimeouts
	}{
		{name: "all empty", in: controllers.HandlerTimeouts{}, want: controllers.HandlerTimeouts{Default: 5 * time.Second, Command: 5 * time.Second, Query: 5 * time.Second}},
		{name: "command only", in: controllers.HandlerTimeouts{Command: 90 * time.Second}, want: controllers.HandlerTimeouts{Default: 90 * time.Second, Command: 90 * time.Second, Query: 90 * time.Second}},
		{name: "explicit", in: controllers.HandlerTimeouts{Default: 10 * time.Second, Command: 90 * time.Second, Query: 2 * time.Second}, want: controllers.HandlerTimeouts{Default: 10 * time.Second, Command: 90 * time.Second, Query: 2 * time.Second}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, controllers.NewBaseHandler(tc.in).Timeouts())
		})
	}
}

func TestBaseHandlerWithTimeout(t *testing.T) {
	handler := controllers.NewBaseHandler(controllers.HandlerTimeouts{Command: 2 * time.Second, Query: 500 * time.Millisecond})

	ctx, cancel := handler.WithTimeout(context.Background(), controllers.HandlerTypeQuery)
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(500*time.Millisecond), deadline, 100*time.Millisecond)

	var nilHandler *controllers.BaseHandler
	ctx2, cancel2 := nilHandler.WithTimeout(context.Background(), controllers.HandlerTypeCommand)
	defer cancel2()
	_, ok = ctx2.Deadline()
	require.True(t, ok)
}
