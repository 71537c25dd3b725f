// Package models chứa model persist của domain subscription.
// File: model.subscription.go - giữ tên cấu trúc cũ (model.<entity>.go).
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"port_stream/internal/stream"
)

// Trạng thái subscription persist. Ba trạng thái đầu trùng runtime;
// expired chỉ tồn tại ở bản persist (worker sweep đánh dấu).
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// SubscriptionMetrics số liệu tích lũy của một subscription, worker cập nhật định kỳ
type SubscriptionMetrics struct {
	EventsMatched   int64 `json:"eventsMatched" bson:"eventsMatched"`
	EventsDelivered int64 `json:"eventsDelivered" bson:"eventsDelivered"`
	LastEventAt     int64 `json:"lastEventAt,omitempty" bson:"lastEventAt,omitempty"` // unix milli
}

// StreamSubscription là bản persist của một đăng ký nhận sự kiện.
// Bản runtime (stream.Subscription) được đồng bộ qua data change event:
// insert/update/upsert → nạp lại vào router, delete → gỡ khỏi router.
type StreamSubscription struct {
	ID           primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	TenantID     string               `json:"tenantId" bson:"tenantId" index:"single:1"`
	Name         string               `json:"name,omitempty" bson:"name,omitempty"`
	OwnerID      string               `json:"ownerId,omitempty" bson:"ownerId,omitempty"` // Người/hệ thống sở hữu subscription
	TopicPattern string               `json:"topicPattern" bson:"topicPattern"`           // Hỗ trợ "*" theo segment
	Status       string               `json:"status" bson:"status" default:"active"`
	Filters      []stream.Filter      `json:"filters,omitempty" bson:"filters,omitempty"`
	Shaping      stream.ShapingConfig `json:"shaping" bson:"shaping"`
	Binding      string               `json:"binding" bson:"binding" default:"queue"`         // room | queue | both
	Room         string               `json:"room,omitempty" bson:"room,omitempty"`           // binding room/both: room nhận broadcast
	QueueTopic   string               `json:"queueTopic,omitempty" bson:"queueTopic,omitempty"` // binding queue/both: topic của priority queue

	Metrics   SubscriptionMetrics `json:"metrics" bson:"metrics"`
	LastError string              `json:"lastError,omitempty" bson:"lastError,omitempty"`

	ExpiresAt int64 `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"` // unix milli; 0 = không hết hạn
	CreatedAt int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`
}

// ToRuntime chuyển bản persist sang bản runtime để nạp vào router.
// QueueTopic rỗng với binding queue/both ⇒ dùng topic pattern làm queue topic.
func (m *StreamSubscription) ToRuntime() *stream.Subscription {
	binding := m.Binding
	if binding == "" {
		binding = stream.BindingQueue
	}
	queueTopic := m.QueueTopic
	if queueTopic == "" && binding != stream.BindingRoom {
		queueTopic = m.TopicPattern
	}
	status := m.Status
	if status == "" {
		status = StatusActive
	}

	return &stream.Subscription{
		ID:         m.ID.Hex(),
		TenantID:   m.TenantID,
		OwnerID:    m.OwnerID,
		Topic:      m.TopicPattern,
		Status:     status,
		Filters:    m.Filters,
		Shaping:    m.Shaping,
		Binding:    binding,
		Room:       m.Room,
		QueueTopic: queueTopic,
		CreatedAt:  m.CreatedAt,

		// Nối tiếp số liệu tích lũy đã persist để nạp lại không reset metrics
		EventsMatched:   m.Metrics.EventsMatched,
		EventsDelivered: m.Metrics.EventsDelivered,
		LastActivityAt:  m.Metrics.LastEventAt,
	}
}

// Routable cho biết subscription có nên nằm trong router không.
// Cancelled/expired không nạp; paused vẫn nạp để resume không phải round-trip DB.
func (m *StreamSubscription) Routable() bool {
	return m.Status == "" || m.Status == StatusActive || m.Status == StatusPaused
}
