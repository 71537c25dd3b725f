package dispatch

import (
	"context"
	"encoding/json"
	"time"

	intmodels "port_stream/internal/api/integration/models"
	notifmodels "port_stream/internal/api/notification/models"
	"port_stream/internal/dispatch/channels"
)

// IntegrationResolver tra integration active theo (tenantId, loại channel).
// Integration service của control plane thỏa interface này.
type IntegrationResolver interface {
	ResolveActive(ctx context.Context, tenantID, channelType string) (*intmodels.Integration, error)
}

// DefaultSenders dựng bộ sender chuẩn: email qua SMTP, telegram qua Bot API,
// webhook qua fasthttp có ký HMAC. Mỗi sender tự tra integration của tenant.
func DefaultSenders(resolver IntegrationResolver) map[string]SendFunc {
	return map[string]SendFunc{
		intmodels.IntegrationEmail: func(ctx context.Context, n *notifmodels.Notification) error {
			integ, err := resolver.ResolveActive(ctx, n.TenantID, intmodels.IntegrationEmail)
			if err != nil {
				return err
			}
			return channels.SendEmail(ctx, integ.Email, n.Title, n.Message)
		},
		intmodels.IntegrationTelegram: func(ctx context.Context, n *notifmodels.Notification) error {
			integ, err := resolver.ResolveActive(ctx, n.TenantID, intmodels.IntegrationTelegram)
			if err != nil {
				return err
			}
			return channels.SendTelegram(ctx, integ.Telegram, n.Title, n.Message)
		},
		intmodels.IntegrationWebhook: func(ctx context.Context, n *notifmodels.Notification) error {
			integ, err := resolver.ResolveActive(ctx, n.TenantID, intmodels.IntegrationWebhook)
			if err != nil {
				return err
			}
			payload, err := json.Marshal(webhookBody(n))
			if err != nil {
				return err
			}
			timeout := time.Duration(integ.TimeoutMs) * time.Millisecond
			return channels.SendWebhook(ctx, integ.Webhook, payload, timeout)
		},
	}
}

// webhookBody phần notification đưa ra ngoài qua webhook (không kèm rules/history)
func webhookBody(n *notifmodels.Notification) map[string]interface{} {
	return map[string]interface{}{
		"id":        n.ID.Hex(),
		"tenantId":  n.TenantID,
		"type":      n.Type,
		"severity":  n.Severity,
		"priority":  n.Priority,
		"title":     n.Title,
		"message":   n.Message,
		"target":    n.Target,
		"createdAt": n.CreatedAt,
	}
}
