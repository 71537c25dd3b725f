// Package notifdto chứa DTO cho domain notification.
// File: dto.notification.go - giữ tên cấu trúc cũ (dto.<entity>.go).
package notifdto

import (
	"port_stream/internal/api/notification/models"
)

// NotificationCreateInput là input để tạo notification (CRUD lẫn POST /dispatch)
type NotificationCreateInput struct {
	TenantID       string                    `json:"tenantId,omitempty"`                                                    // Rỗng → lấy từ tenant context
	SubscriptionID string                    `json:"subscriptionId,omitempty"`                                              // Subscription sinh ra notification
	Type           string                    `json:"type,omitempty"`                                                        // vessel_eta, crane_fault...
	Severity       string                    `json:"severity,omitempty" validate:"omitempty,oneof=critical high medium low info"`
	Priority       int                       `json:"priority,omitempty" validate:"omitempty,min=0,max=9"`                   // 0 → suy ra từ severity
	Title          string                    `json:"title" validate:"required"`                                             //
	Message        string                    `json:"message" validate:"required"`                                           //
	Target         models.NotificationTarget `json:"target" validate:"required"`                                            //
	Channels       []string                  `json:"channels,omitempty" validate:"omitempty,dive,oneof=email telegram webhook"`
	Rules          models.DeliveryRules      `json:"rules"`                                                                 //
	ExpiresAt      int64                     `json:"expiresAt,omitempty" validate:"omitempty,min=0"`                        // unix milli
}

// NotificationUpdateInput là input để cập nhật notification (partial update).
// Vòng đời giao do dispatcher ghi; API chỉ sửa nội dung/trạng thái đọc.
type NotificationUpdateInput struct {
	Status  string `json:"status,omitempty" validate:"omitempty,oneof=pending sent delivered read failed expired"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}
