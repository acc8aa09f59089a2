package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/stretchr/testify/require"
)

const testVideoID = "dQw4w9WgXcQ"

func discardLogger() log.Logger {
	return log.NewStdLogger(io.Discard)
}

func sampleSet(videoID string) *po.TakeawaySet {
	return &po.TakeawaySet{
		ID:              "set-" + videoID,
		Title:           "Sample",
		DurationMinutes: 6,
		Takeaways: []po.Takeaway{
			{Minute: 0, KeyPoint: "opening"},
			{Minute: 2, KeyPoint: "core idea"},
			{Minute: 5, KeyPoint: "wrap up"},
		},
	}
}

// fakePipeline 记录命令并按脚本向 sink 投递事件。
type fakePipeline struct {
	mu          sync.Mutex
	commands    []services.NewVideoCommand
	cache       map[string]*po.TakeawaySet
	invalidated []string
	processErr  error
	lookupErr   error
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{cache: make(map[string]*po.TakeawaySet)}
}

func (f *fakePipeline) Process(ctx context.Context, cmd services.NewVideoCommand, sink services.EventSink) (*services.PipelineResult, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	err := f.processErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	set := sampleSet(cmd.VideoID)
	for _, evt := range []vo.SessionEvent{
		vo.StatusEvent(cmd.VideoID, vo.StatusLoadingVideoDetails),
		vo.StatusEvent(cmd.VideoID, vo.StatusCheckingRelevance),
		vo.StatusEvent(cmd.VideoID, vo.StatusGeneratingTakeaways),
		vo.TakeawaysEvent(cmd.VideoID, set, false),
	} {
		if err := sink.Emit(ctx, evt); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	f.cache[cmd.VideoID] = set
	f.mu.Unlock()
	return &services.PipelineResult{VideoID: cmd.VideoID, Set: set, FinalStatus: vo.StatusIdle}, nil
}

func (f *fakePipeline) Lookup(_ context.Context, videoID string) (*po.TakeawaySet, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, false, f.lookupErr
	}
	set, ok := f.cache[videoID]
	return set, ok, nil
}

func (f *fakePipeline) Invalidate(_ context.Context, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, videoID)
	f.invalidated = append(f.invalidated, videoID)
	return nil
}

func (f *fakePipeline) seed(videoID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache[videoID] = sampleSet(videoID)
}

func (f *fakePipeline) calls() []services.NewVideoCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.NewVideoCommand(nil), f.commands...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type registrar interface {
	RegisterRoutes(r *khttp.Router)
}

// startServer 在随机端口启动 Kratos HTTP Server 并返回基础地址。
func startServer(t *testing.T, handlers ...registrar) string {
	t.Helper()
	srv := khttp.NewServer(khttp.Address("127.0.0.1:0"))
	router := srv.Route("/")
	for _, h := range handlers {
		h.RegisterRoutes(router)
	}
	endpoint, err := srv.Endpoint()
	require.NoError(t, err)

	go func() { _ = srv.Start(context.Background()) }()
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return "http://" + endpoint.Host
}

type errorBody struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
