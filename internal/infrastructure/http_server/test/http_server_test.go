package httpserver_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/controllers"
	configloader "github.com/bionicotaku/lingo-services-takeaways/internal/infrastructure/configloader"
	httpserver "github.com/bionicotaku/lingo-services-takeaways/internal/infrastructure/http_server"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"

	"github.com/bionicotaku/lingo-utils/observability"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/require"
)

type emptyPipeline struct{}

func (emptyPipeline) Process(context.Context, services.NewVideoCommand, services.EventSink) (*services.PipelineResult, error) {
	return nil, services.ErrVideoInFlight
}

func (emptyPipeline) Lookup(context.Context, string) (*po.TakeawaySet, bool, error) {
	return nil, false, nil
}

func (emptyPipeline) Invalidate(context.Context, string) error { return nil }

func startServer(t *testing.T, metricsCfg *observability.MetricsConfig) string {
	t.Helper()
	logger := log.NewStdLogger(io.Discard)
	takeaways := controllers.NewTakeawayHandler(emptyPipeline{}, nil, nil, logger)
	srv := httpserver.NewHTTPServer(configloader.ServerConfig{
		Network:      "tcp",
		Address:      "127.0.0.1:0",
		Timeout:      5 * time.Second,
		MetadataKeys: []string{"x-takeaways-session"},
	}, metricsCfg, takeaways, nil, nil, nil, logger)
	require.NotNil(t, srv)

	endpoint, err := srv.Endpoint()
	require.NoError(t, err)
	go func() { _ = srv.Start(context.Background()) }()
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return "http://" + endpoint.Host
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	var (
		resp *http.Response
		err  error
	)
	require.Eventually(t, func() bool {
		resp, err = http.Get(url)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestNewHTTPServer_HealthAndRoutes(t *testing.T) {
	base := startServer(t, &observability.MetricsConfig{Enabled: false})

	status, body := get(t, base+httpserver.HealthPath)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body)

	status, body = get(t, base+"/v1/videos/dQw4w9WgXcQ/takeaways")
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, body, controllers.ReasonTakeawaysNotFound)
}

func TestNewHTTPServer_WithMetricsFilter(t *testing.T) {
	base := startServer(t, &observability.MetricsConfig{Enabled: true})

	status, _ := get(t, base+httpserver.HealthPath)
	require.Equal(t, http.StatusOK, status)

	status, _ = get(t, base+"/v1/unknown")
	require.Equal(t, http.StatusNotFound, status)
}

func TestNewHTTPServer_NilMetricsConfig(t *testing.T) {
	srv := httpserver.NewHTTPServer(configloader.ServerConfig{}, nil, nil, nil, nil, nil, log.NewStdLogger(io.Discard))
	require.NotNil(t, srv)
	var _ *khttp.Server = srv
}
