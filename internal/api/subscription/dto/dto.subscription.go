// Package subscriptiondto chứa DTO cho domain subscription.
// File: dto.subscription.go - giữ tên cấu trúc cũ (dto.<entity>.go).
package subscriptiondto

import (
	"port_stream/internal/stream"
)

// SubscriptionCreateInput là input để tạo subscription
type SubscriptionCreateInput struct {
	TenantID     string               `json:"tenantId,omitempty"`                                          // Rỗng → lấy từ tenant context
	Name         string               `json:"name,omitempty"`                                              // Tên gợi nhớ
	OwnerID      string               `json:"ownerId,omitempty"`                                           // Người/hệ thống sở hữu
	TopicPattern string               `json:"topicPattern" validate:"required"`                            // Topic pattern, hỗ trợ "*" theo segment
	Status       string               `json:"status,omitempty" validate:"omitempty,oneof=active paused"`   // Mặc định: active
	Filters      []stream.Filter      `json:"filters,omitempty" validate:"omitempty,dive"`                 // Filter trên payload/topic/source/metadata
	Shaping      stream.ShapingConfig `json:"shaping"`                                                     // Throttle/aggregate/transform
	Binding      string               `json:"binding,omitempty" validate:"omitempty,oneof=room queue both"` // Mặc định: queue
	Room         string               `json:"room,omitempty"`                                              // binding room/both
	QueueTopic   string               `json:"queueTopic,omitempty"`                                        // binding queue/both; rỗng → dùng topic pattern
	ExpiresAt    int64                `json:"expiresAt,omitempty" validate:"omitempty,min=0"`              // unix milli; 0 = không hết hạn
}

// SubscriptionUpdateInput là input để cập nhật subscription.
// Chỉ field non-zero được ghi xuống DB (partial update).
type SubscriptionUpdateInput struct {
	Name         string               `json:"name,omitempty"`
	TopicPattern string               `json:"topicPattern,omitempty"`
	Filters      []stream.Filter      `json:"filters,omitempty" validate:"omitempty,dive"`
	Shaping      stream.ShapingConfig `json:"shaping,omitempty"`
	Binding      string               `json:"binding,omitempty" validate:"omitempty,oneof=room queue both"`
	Room         string               `json:"room,omitempty"`
	QueueTopic   string               `json:"queueTopic,omitempty"`
	ExpiresAt    int64                `json:"expiresAt,omitempty" validate:"omitempty,min=0"`
}
