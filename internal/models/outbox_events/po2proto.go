package outboxevents

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrEmptyPayload 表示消息体为空或缺少 event 字段。
var ErrEmptyPayload = errors.New("events: empty payload")

// Envelope 是会话事件在总线上的统一载荷结构。
type Envelope struct {
	EventID    string          `json:"event_id"`
	SessionID  string          `json:"session_id,omitempty"`
	VideoID    string          `json:"video_id"`
	OccurredAt string          `json:"occurred_at"`
	Event      vo.SessionEvent `json:"event"`
}

// ToProto 将领域事件转换为 structpb 载荷。
func ToProto(evt *DomainEvent) (*structpb.Struct, error) {
	if evt == nil {
		return nil, fmt.Errorf("events: nil domain event")
	}
	payload, ok := evt.Payload.(*SessionEventPayload)
	if !ok || payload == nil {
		return nil, fmt.Errorf("events: unsupported payload type %T", evt.Payload)
	}
	env := Envelope{
		EventID:    evt.EventID.String(),
		SessionID:  payload.SessionID,
		VideoID:    payload.VideoID,
		OccurredAt: evt.OccurredAt.UTC().Format(time.RFC3339Nano),
		Event:      payload.Event,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("events: marshal envelope: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("events: reshape envelope: %w", err)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("events: build struct: %w", err)
	}
	return st, nil
}

// EncodePayload 生成写入 Outbox 的二进制载荷。
func EncodePayload(evt *DomainEvent) ([]byte, error) {
	msg, err := ToProto(evt)
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("events: marshal proto: %w", err)
	}
	return data, nil
}

// DecodeEnvelope 优先按 protobuf 解析，失败时回退为 JSON。
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err == nil && len(st.GetFields()) > 0 {
		raw, err := json.Marshal(st.AsMap())
		if err != nil {
			return nil, fmt.Errorf("events: reshape struct: %w", err)
		}
		return decodeEnvelopeJSON(raw)
	}
	return decodeEnvelopeJSON(data)
}

func decodeEnvelopeJSON(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("events: decode json: %w", err)
	}
	if env.Event.Type == "" {
		// 允许直接投递裸的会话消息。
		var bare vo.SessionEvent
		if err := json.Unmarshal(data, &bare); err != nil || bare.Type == "" {
			return nil, ErrEmptyPayload
		}
		env.Event = bare
	}
	if env.VideoID == "" {
		env.VideoID = env.Event.VideoID
	}
	if env.Event.VideoID == "" {
		env.Event.VideoID = env.VideoID
	}
	return &env, nil
}
