// Package integrationdto chứa DTO cho domain integration.
// File: dto.integration.go - giữ tên cấu trúc cũ (dto.<entity>.go).
package integrationdto

import (
	"port_stream/internal/api/integration/models"
)

// IntegrationCreateInput là input để tạo integration
type IntegrationCreateInput struct {
	TenantID string `json:"tenantId,omitempty"`                                              // Rỗng → lấy từ tenant context
	Name     string `json:"name" validate:"required"`                                        //
	Type     string `json:"type" validate:"required,oneof=email telegram webhook"`           //
	Email    *models.EmailConfig    `json:"email,omitempty"`                                 // Bắt buộc khi type=email
	Telegram *models.TelegramConfig `json:"telegram,omitempty"`                              // Bắt buộc khi type=telegram
	Webhook  *models.WebhookConfig  `json:"webhook,omitempty"`                               // Bắt buộc khi type=webhook
	TimeoutMs int64 `json:"timeoutMs,omitempty" validate:"omitempty,min=100,max=60000"`      //
	IsActive  bool  `json:"isActive"`                                                        //
}

// IntegrationUpdateInput là input để cập nhật integration (partial update)
type IntegrationUpdateInput struct {
	Name      string                 `json:"name,omitempty"`
	Email     *models.EmailConfig    `json:"email,omitempty"`
	Telegram  *models.TelegramConfig `json:"telegram,omitempty"`
	Webhook   *models.WebhookConfig  `json:"webhook,omitempty"`
	TimeoutMs int64                  `json:"timeoutMs,omitempty" validate:"omitempty,min=100,max=60000"`
	IsActive  bool                   `json:"isActive,omitempty"`
}
