package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Loại integration được hỗ trợ
const (
	IntegrationEmail    = "email"
	IntegrationTelegram = "telegram"
	IntegrationWebhook  = "webhook"
)

// EmailConfig cấu hình SMTP cho integration email
type EmailConfig struct {
	SMTPHost     string `json:"smtpHost" bson:"smtpHost" validate:"required"`
	SMTPPort     int    `json:"smtpPort" bson:"smtpPort" validate:"required,min=1,max=65535"`
	SMTPUsername string `json:"smtpUsername" bson:"smtpUsername"`
	SMTPPassword string `json:"smtpPassword" bson:"smtpPassword"`
	FromEmail    string `json:"fromEmail" bson:"fromEmail" validate:"required,email"`
	FromName     string `json:"fromName" bson:"fromName"`
	ToEmail      string `json:"toEmail" bson:"toEmail" validate:"required,email"` // Hộp thư vận hành nhận notification
}

// TelegramConfig cấu hình bot telegram
type TelegramConfig struct {
	BotToken string `json:"botToken" bson:"botToken" validate:"required"`
	ChatID   string `json:"chatId" bson:"chatId" validate:"required"`
}

// WebhookConfig cấu hình webhook outbound
type WebhookConfig struct {
	URL     string            `json:"url" bson:"url" validate:"required,url"`
	Headers map[string]string `json:"headers,omitempty" bson:"headers,omitempty"` // Header tùy biến gắn vào mỗi request
	Secret  string            `json:"secret,omitempty" bson:"secret,omitempty"`   // Khóa ký HMAC-SHA256 cho header chữ ký
}

// Integration là một kênh giao outbound của tenant (email, telegram, webhook).
// Dispatcher và queue-consumer worker tra integration active theo (tenantId, type).
type Integration struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TenantID string             `json:"tenantId" bson:"tenantId" index:"single:1"`
	Name     string             `json:"name" bson:"name" validate:"required"`
	Type     string             `json:"type" bson:"type" validate:"required,oneof=email telegram webhook"`

	Email    *EmailConfig    `json:"email,omitempty" bson:"email,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty" bson:"telegram,omitempty"`
	Webhook  *WebhookConfig  `json:"webhook,omitempty" bson:"webhook,omitempty"`

	TimeoutMs int64 `json:"timeoutMs" bson:"timeoutMs" validate:"omitempty,min=100,max=60000"` // Timeout mỗi lần gọi channel
	IsActive  bool  `json:"isActive" bson:"isActive"`

	CreatedAt int64 `json:"createdAt" bson:"createdAt"`
	UpdatedAt int64 `json:"updatedAt" bson:"updatedAt"`
}
