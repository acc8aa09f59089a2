// Package videorequests 消费 NEW_VIDEO 命令：经 Inbox 去重后运行要点流水线，
// 并把产生的会话事件写入同一事务内的 Outbox。
package videorequests

import (
	"fmt"

	outboxevents "github.com/bionicotaku/lingo-services-takeaways/internal/models/outbox_events"
)

// decoder 实现 inbox.Decoder 接口，载荷可以是 structpb 或 JSON。
type decoder struct{}

func newDecoder() *decoder {
	return &decoder{}
}

// Decode 解析事件载荷。
func (d *decoder) Decode(data []byte) (*outboxevents.Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("video requests: empty payload")
	}
	env, err := outboxevents.DecodeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("video requests: decode envelope: %w", err)
	}
	return env, nil
}
