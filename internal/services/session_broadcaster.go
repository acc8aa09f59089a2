package services

import (
	"sync"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/go-kratos/kratos/v2/log"
)

const subscriberBuffer = 32

// SessionBroadcaster 把会话消息扇出给该会话的所有订阅者（例如 WebSocket 连接）。
type SessionBroadcaster struct {
	mu          sync.Mutex
	subscribers map[string]map[chan vo.SessionEvent]struct{}
	log         *log.Helper
}

// NewSessionBroadcaster 构造 SessionBroadcaster。
func NewSessionBroadcaster(logger log.Logger) *SessionBroadcaster {
	return &SessionBroadcaster{
		subscribers: make(map[string]map[chan vo.SessionEvent]struct{}),
		log:         log.NewHelper(logger),
	}
}

// Subscribe 注册订阅者，返回消息通道与取消函数。取消后通道被关闭。
func (b *SessionBroadcaster) Subscribe(sessionID string) (<-chan vo.SessionEvent, func()) {
	ch := make(chan vo.SessionEvent, subscriberBuffer)
	b.mu.Lock()
	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = make(map[chan vo.SessionEvent]struct{})
	}
	b.subscribers[sessionID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.subscribers[sessionID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subscribers, sessionID)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish 非阻塞投递；订阅者缓冲区满时丢弃该条消息。
func (b *SessionBroadcaster) Publish(sessionID string, evt vo.SessionEvent) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for ch := range b.subscribers[sessionID] {
		select {
		case ch <- evt:
			delivered++
		default:
			b.log.Warnf("session subscriber buffer full, dropping event: session=%s type=%s", sessionID, evt.Type)
		}
	}
	return delivered
}

// SubscriberCount 返回会话当前的订阅者数量。
func (b *SessionBroadcaster) SubscriberCount(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[sessionID])
}
