package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trạng thái notification
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
)

// Loại target nhận notification
const (
	TargetUser  = "user"
	TargetRole  = "role"
	TargetGroup = "group"
	TargetZone  = "zone"
)

// NotificationTarget đích nhận notification
type NotificationTarget struct {
	Kind string `json:"kind" bson:"kind" validate:"required,oneof=user role group zone"` // Loại đích nhận
	ID   string `json:"id" bson:"id" validate:"required"`                                // Định danh đích nhận (userId, roleId, zoneId...)
}

// EscalationConfig cấu hình escalation khi giao thất bại
type EscalationConfig struct {
	Enabled   bool               `json:"enabled" bson:"enabled"`
	Threshold int                `json:"threshold" bson:"threshold" validate:"omitempty,min=1"` // Số lần thất bại trước khi escalate
	Target    NotificationTarget `json:"target" bson:"target"`                                  // Đích nhận bản escalation
}

// DeliveryWindow khung giờ được phép giao (HH:MM, giờ local của server)
type DeliveryWindow struct {
	From string `json:"from" bson:"from" validate:"omitempty,len=5"`
	To   string `json:"to" bson:"to" validate:"omitempty,len=5"`
}

// DeliveryRules quy tắc giao của một notification
type DeliveryRules struct {
	Immediate       bool             `json:"immediate" bson:"immediate"`                                          // Giao ngay, bỏ qua delivery window
	MaxRetries      int              `json:"maxRetries" bson:"maxRetries" validate:"omitempty,min=0,max=20"`      // Số lần retry mỗi channel
	RetryIntervalMs int64            `json:"retryIntervalMs" bson:"retryIntervalMs" validate:"omitempty,min=100"` // Khoảng cách giữa các lần retry
	Escalation      EscalationConfig `json:"escalation" bson:"escalation"`
	Window          *DeliveryWindow  `json:"window,omitempty" bson:"window,omitempty"`
}

// DeliveryAttempt một lần thử giao trên một channel — mọi kết quả đều được ghi lại
type DeliveryAttempt struct {
	Channel string `json:"channel" bson:"channel"`
	Outcome string `json:"outcome" bson:"outcome"` // success | failure | expired
	Error   string `json:"error,omitempty" bson:"error,omitempty"`
	At      int64  `json:"at" bson:"at"` // unix milli
}

// Kết quả attempt
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeExpired = "expired"
)

// Notification là một thông báo cần giao tới người/nhóm vận hành qua các channel cấu hình.
// Bản ghi được cập nhật xuyên suốt vòng đời giao: pending → sent/delivered/failed/expired.
type Notification struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID       string             `json:"tenantId" bson:"tenantId" index:"single:1"`
	SubscriptionID string             `json:"subscriptionId,omitempty" bson:"subscriptionId,omitempty"` // Subscription sinh ra notification (nếu có)
	Type           string             `json:"type" bson:"type"`                                         // vessel_eta, crane_fault, gate_congestion...
	Severity       string             `json:"severity" bson:"severity"`                                 // critical | high | medium | low | info
	Priority       int                `json:"priority" bson:"priority"`                                 // Suy ra từ severity nếu không set
	Status         string             `json:"status" bson:"status" index:"single:1"`
	Title          string             `json:"title" bson:"title"`
	Message        string             `json:"message" bson:"message"`
	Target         NotificationTarget `json:"target" bson:"target"`
	Channels       []string           `json:"channels" bson:"channels"` // email | telegram | webhook; rỗng ⇒ chỉ đánh dấu sent
	Rules          DeliveryRules      `json:"rules" bson:"rules"`

	DeliveryHistory []DeliveryAttempt `json:"deliveryHistory,omitempty" bson:"deliveryHistory,omitempty"`

	// EscalatedFrom đánh dấu bản escalation: ID của notification gốc
	EscalatedFrom string `json:"escalatedFrom,omitempty" bson:"escalatedFrom,omitempty"`

	ExpiresAt int64 `json:"expiresAt,omitempty" bson:"expiresAt,omitempty"` // unix milli; 0 = không hết hạn
	CreatedAt int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`
}
