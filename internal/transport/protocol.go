// Package transport chứa mặt realtime của hệ thống: WebSocket theo kênh vận hành,
// SSE stream theo subscription và giao thức lệnh phía client.
package transport

import (
	"port_stream/internal/stream"
)

// Các kênh WebSocket được phục vụ
const (
	ChannelOperations    = "operations"
	ChannelEquipment     = "equipment"
	ChannelNotifications = "notifications"
)

// Action của lệnh client gửi qua WebSocket
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
	ActionSnapshot    = "snapshot"
)

// Loại message server đẩy xuống client
const (
	MsgEvent        = "event"
	MsgSubscribed   = "subscribed"
	MsgUnsubscribed = "unsubscribed"
	MsgPong         = "pong"
	MsgSnapshot     = "snapshot"
	MsgError        = "error"
)

// ClientCommand lệnh client gửi lên qua WebSocket
type ClientCommand struct {
	Action         string                `json:"action" validate:"required,oneof=subscribe unsubscribe ping snapshot"`
	Topic          string                `json:"topic,omitempty"`          // subscribe: topic pattern cần nghe
	Filters        []stream.Filter       `json:"filters,omitempty"`        // subscribe: filter tùy chọn
	Shaping        *stream.ShapingConfig `json:"shaping,omitempty"`        // subscribe: shaping tùy chọn
	SubscriptionID string                `json:"subscriptionId,omitempty"` // unsubscribe
	TS             int64                 `json:"ts,omitempty"`             // ping: unix milli phía client
	Category       string                `json:"category,omitempty"`       // snapshot
}

// ServerMessage message server đẩy xuống client (envelope chung cho mọi loại)
type ServerMessage struct {
	Type           string      `json:"type"`
	SubscriptionID string      `json:"subscriptionId,omitempty"`
	Code           string      `json:"code,omitempty"`    // error: mã lỗi
	Message        string      `json:"message,omitempty"` // error: mô tả
	TS             int64       `json:"ts,omitempty"`      // pong: ts client gửi lên
	ServerTS       int64       `json:"serverTs,omitempty"`
	Data           interface{} `json:"data,omitempty"`
}

// Mã lỗi đẩy xuống client qua typed error event
const (
	ErrCodeBadCommand   = "BAD_COMMAND"
	ErrCodeBadTopic     = "BAD_TOPIC"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeSnapshotFail = "SNAPSHOT_FAILED"
)
