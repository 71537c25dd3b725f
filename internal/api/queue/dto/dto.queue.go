// Package queuedto chứa DTO cho domain queue.
// File: dto.queue.go - giữ tên cấu trúc cũ (dto.<entity>.go).
package queuedto

// QueueCreateInput là input để tạo/upsert cấu hình queue
type QueueCreateInput struct {
	TenantID      string   `json:"tenantId,omitempty"`                                  // Rỗng → lấy từ tenant context
	Name          string   `json:"name" validate:"required"`                            // Unique trong tenant
	Topic         string   `json:"topic" validate:"required"`                           // Topic mà queue phục vụ
	MaxSize       int      `json:"maxSize,omitempty" validate:"omitempty,min=1"`        // 0 → default
	TTLMs         int64    `json:"ttlMs,omitempty" validate:"omitempty,min=0"`          // 0 → default
	DedupEnabled  bool     `json:"dedupEnabled"`                                        //
	DedupFields   []string `json:"dedupFields,omitempty"`                               // Bắt buộc khi dedupEnabled
	DedupWindowMs int64    `json:"dedupWindowMs,omitempty" validate:"omitempty,min=0"`  //
	IsActive      bool     `json:"isActive"`                                            //
}

// QueueUpdateInput là input để cập nhật cấu hình queue (partial update)
type QueueUpdateInput struct {
	Topic         string   `json:"topic,omitempty"`
	MaxSize       int      `json:"maxSize,omitempty" validate:"omitempty,min=1"`
	TTLMs         int64    `json:"ttlMs,omitempty" validate:"omitempty,min=0"`
	DedupEnabled  bool     `json:"dedupEnabled,omitempty"`
	DedupFields   []string `json:"dedupFields,omitempty"`
	DedupWindowMs int64    `json:"dedupWindowMs,omitempty" validate:"omitempty,min=0"`
	IsActive      bool     `json:"isActive,omitempty"`
}
