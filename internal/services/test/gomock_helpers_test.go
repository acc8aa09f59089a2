package services_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/jackc/pgx/v5"
)

type fakeTxManager struct{}

type fakeSession struct{ ctx context.Context }

func (fakeTxManager) WithinTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, fakeSession{ctx: ctx})
}

func (fakeTxManager) WithinReadOnlyTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, fakeSession{ctx: ctx})
}

func (fakeSession) Tx() pgx.Tx { return nil }

func (s fakeSession) Context() context.Context { return s.ctx }

func ptrInt(v int) *int { return &v }

// memoryStore 是并发安全的内存键值存储。
type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// eventLabels 把事件序列压缩为便于断言的字符串。
func eventLabels(events []vo.SessionEvent) []string {
	out := make([]string, 0, len(events))
	for _, evt := range events {
		switch evt.Type {
		case vo.EventProcessingStatus:
			out = append(out, fmt.Sprintf("%s:%s", evt.Type, evt.Status))
		case vo.EventProcessingError:
			out = append(out, fmt.Sprintf("%s:%s", evt.Type, evt.Error))
		case vo.EventVideoTakeaways:
			out = append(out, fmt.Sprintf("%s:cache=%t", evt.Type, evt.FromCache))
		default:
			out = append(out, string(evt.Type))
		}
	}
	return out
}

const sampleVideoID = "dQw4w9WgXcQ"

const sampleWatchPage = `<!DOCTYPE html><html><head><title>x</title></head><body>
<script nonce="abc">var ytInitialPlayerResponse = {"videoDetails":{"videoId":"dQw4w9WgXcQ","title":"Why Cities Grow","shortDescription":"A long talk about urban economics.","lengthSeconds":"754","viewCount":"12345","author":"Urban Lab","channelId":"UC123456"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"https://www.youtube.com/api/timedtext?v=dQw4w9WgXcQ&lang=en","languageCode":"en","kind":"asr"},{"baseUrl":"https://www.youtube.com/api/timedtext?v=dQw4w9WgXcQ&lang=de","languageCode":"de"}]}}};var meta = {"x": 1};</script>
</body></html>`

const sampleCaptionXML = `<?xml version="1.0" encoding="utf-8" ?><transcript><text start="0.5" dur="2.1">Welcome to the show</text><text start="61.2" dur="3">It&amp;#39;s about &amp;quot;density&amp;quot;</text><text start="125" dur="4">Rock &amp; roll</text></transcript>`
