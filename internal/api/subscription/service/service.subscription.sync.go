package subscriptionsvc

import (
	"context"

	"port_stream/internal/api/events"
	"port_stream/internal/api/subscription/models"
	"port_stream/internal/global"
	"port_stream/internal/logger"
	"port_stream/internal/stream"
)

// RegisterRouterSync đồng bộ CRUD trên stream_subscriptions vào router runtime:
// insert/update/upsert nạp lại subscription, delete gỡ khỏi router.
// Gọi một lần khi init, sau khi ColNames đã được gán.
func RegisterRouterSync(rt *stream.Router) {
	events.OnDataChanged(func(ctx context.Context, e events.DataChangeEvent) {
		if e.CollectionName != global.MongoDB_ColNames.StreamSubscriptions {
			return
		}

		doc, ok := e.Document.(models.StreamSubscription)
		if !ok {
			return
		}
		id := doc.ID.Hex()

		switch e.Operation {
		case events.OpDelete:
			rt.RemoveSubscription(id)
		case events.OpInsert, events.OpUpdate, events.OpUpsert:
			// Nạp lại từ đầu: remove + add để pipeline dựng lại theo config mới
			rt.RemoveSubscription(id)
			if doc.Routable() {
				rt.AddSubscription(doc.ToRuntime())
			}
		}

		logger.GetAppLogger().WithFields(map[string]interface{}{
			"subscriptionId": id,
			"tenantId":       doc.TenantID,
			"operation":      e.Operation,
		}).Debug("📡 [ROUTER] Đồng bộ subscription persist vào router")
	})
}

// RestoreSubscriptions nạp toàn bộ subscription routable từ DB vào router.
// Gọi khi server khởi động để router tiếp tục phục vụ các đăng ký đã có.
func RestoreSubscriptions(ctx context.Context, s *SubscriptionService, rt *stream.Router) (int, error) {
	subs, err := s.FindRoutable(ctx)
	if err != nil {
		return 0, err
	}
	for i := range subs {
		rt.AddSubscription(subs[i].ToRuntime())
	}
	logger.GetAppLogger().WithFields(map[string]interface{}{
		"count": len(subs),
	}).Info("📡 [ROUTER] Khôi phục subscription từ MongoDB")
	return len(subs), nil
}
