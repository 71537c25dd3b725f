// Package models chứa model persist của domain queue.
// File: model.queue.go - giữ tên cấu trúc cũ (model.<entity>.go).
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"port_stream/internal/stream"
)

// StreamQueue là cấu hình persist của một priority queue.
// Một document per (tenantId, name); topic xác định queue runtime trong QueueManager.
// Đổi cấu hình qua API ⇒ data change event thay queue runtime bằng queue mới.
type StreamQueue struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID string             `json:"tenantId" bson:"tenantId" index:"single:1"`
	Name     string             `json:"name" bson:"name"`   // Unique trong tenant (index compound)
	Topic    string             `json:"topic" bson:"topic"` // Topic mà queue phục vụ

	MaxSize       int      `json:"maxSize" bson:"maxSize"` // 0 → default khi resolve
	TTLMs         int64    `json:"ttlMs" bson:"ttlMs"`
	DedupEnabled  bool     `json:"dedupEnabled" bson:"dedupEnabled"`
	DedupFields   []string `json:"dedupFields,omitempty" bson:"dedupFields,omitempty"`
	DedupWindowMs int64    `json:"dedupWindowMs" bson:"dedupWindowMs"`

	IsActive  bool  `json:"isActive" bson:"isActive" default:"true"`
	CreatedAt int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`
}

// ToConfig chuyển bản persist sang QueueConfig runtime (chưa resolve default)
func (m *StreamQueue) ToConfig() stream.QueueConfig {
	return stream.QueueConfig{
		TenantID:      m.TenantID,
		Topic:         m.Topic,
		MaxSize:       m.MaxSize,
		TTLMs:         m.TTLMs,
		DedupEnabled:  m.DedupEnabled,
		DedupFields:   m.DedupFields,
		DedupWindowMs: m.DedupWindowMs,
	}
}
