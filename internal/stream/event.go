package stream

// Package stream chứa lõi phân phối sự kiện realtime: event router theo topic shard,
// filter evaluator, shaping pipeline (throttle/aggregate/transform), priority/dedup queue,
// connection registry và analytics aggregator.

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"port_stream/internal/common"
)

// GeoPoint vị trí địa lý của nguồn phát sự kiện (cẩu, xe nâng, tàu...)
type GeoPoint struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// EventSource mô tả nguồn phát sự kiện
type EventSource struct {
	Kind string    `json:"kind" bson:"kind"` // Loại nguồn: vessel, crane, truck, sensor, system...
	ID   string    `json:"id" bson:"id"`
	Geo  *GeoPoint `json:"geo,omitempty" bson:"geo,omitempty"`
}

// EventMetadata metadata đi kèm sự kiện, không ảnh hưởng tới payload
type EventMetadata struct {
	Priority      int      `json:"priority" bson:"priority"` // 0 = cao nhất
	Category      string   `json:"category,omitempty" bson:"category,omitempty"`
	Tags          []string `json:"tags,omitempty" bson:"tags,omitempty"`
	CorrelationID string   `json:"correlationId,omitempty" bson:"correlationId,omitempty"`
	CausationID   string   `json:"causationId,omitempty" bson:"causationId,omitempty"`
}

// Event là sự kiện được publish vào router. Immutable sau khi publish —
// router và pipeline không bao giờ sửa payload gốc.
type Event struct {
	ID          string          `json:"id" bson:"id"`
	TenantID    string          `json:"tenantId" bson:"tenantId"`
	Topic       string          `json:"topic" bson:"topic"`
	Payload     json.RawMessage `json:"payload" bson:"payload"`
	Source      EventSource     `json:"source" bson:"source"`
	Metadata    EventMetadata   `json:"metadata" bson:"metadata"`
	PublishedAt int64           `json:"publishedAt" bson:"publishedAt"` // unix milli
}

// NewEvent tạo event mới với ID và timestamp tự sinh
func NewEvent(tenantID, topic string, payload json.RawMessage) *Event {
	return &Event{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Topic:       topic,
		Payload:     payload,
		PublishedAt: time.Now().UnixMilli(),
	}
}

// Validate kiểm tra event hợp lệ về mặt cấu trúc.
// Publish chỉ fail khi event không hợp lệ cấu trúc: topic rỗng/sai định dạng hoặc payload nil.
func (e *Event) Validate() error {
	if e == nil || strings.TrimSpace(e.Topic) == "" || len(e.Payload) == 0 {
		return common.ErrEventInvalid
	}
	for _, seg := range strings.Split(e.Topic, ".") {
		if seg == "" {
			return common.ErrEventInvalid
		}
	}
	if !json.Valid(e.Payload) {
		return common.ErrEventInvalid
	}
	return nil
}

// TopicMatches kiểm tra topic của event có khớp pattern của subscription không.
// Pattern gồm các segment phân cách bằng dấu chấm; "*" khớp đúng một segment.
// Ví dụ: pattern "vessel.*.updated" khớp topic "vessel.eta.updated".
func TopicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	ps := strings.Split(pattern, ".")
	ts := strings.Split(topic, ".")
	if len(ps) != len(ts) {
		return false
	}
	for i := range ps {
		if ps[i] == "*" {
			continue
		}
		if ps[i] != ts[i] {
			return false
		}
	}
	return true
}
