// Package eventdto chứa DTO cho domain event.
// File: dto.event.go - giữ tên cấu trúc cũ (dto.<entity>.go).
package eventdto

import (
	"encoding/json"

	"port_stream/internal/stream"
)

// EventPublishInput là input để publish một sự kiện vào router
type EventPublishInput struct {
	TenantID string               `json:"tenantId,omitempty"`          // Rỗng → lấy từ tenant context
	Topic    string               `json:"topic" validate:"required"`   // Topic cụ thể (không wildcard)
	Payload  json.RawMessage      `json:"payload" validate:"required"` // JSON bất kỳ
	Source   stream.EventSource   `json:"source"`                      //
	Metadata stream.EventMetadata `json:"metadata"`                    // priority 0-9, category, tags...
}

// EventPublishResult là kết quả publish trả về cho client
type EventPublishResult struct {
	EventID             string `json:"eventId"`
	SubscribersNotified int    `json:"subscribersNotified"` // Số subscription nhận event sau shaping
}
