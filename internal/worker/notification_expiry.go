package worker

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	notifmodels "port_stream/internal/api/notification/models"
	notifsvc "port_stream/internal/api/notification/service"
	submodels "port_stream/internal/api/subscription/models"
	subscriptionsvc "port_stream/internal/api/subscription/service"
	"port_stream/internal/dispatch"
	"port_stream/internal/logger"
	"port_stream/internal/stream"
)

// ExpiryWorker quét định kỳ:
//   - notification pending quá expiresAt → đánh dấu expired (không giao nữa)
//   - subscription quá expiresAt → gỡ khỏi router runtime rồi đánh dấu expired
//   - số liệu tích lũy của subscription runtime → flush vào bản persist
type ExpiryWorker struct {
	notifications *notifsvc.NotificationService
	subscriptions *subscriptionsvc.SubscriptionService
	runtime       *stream.Router
	stats         dispatch.Stats
	interval      time.Duration // Khoảng thời gian giữa các lần quét

	lastFlushed map[string]int64 // subID → LastActivityAt đã flush lần trước
}

// NewExpiryWorker tạo mới ExpiryWorker
func NewExpiryWorker(ns *notifsvc.NotificationService, ss *subscriptionsvc.SubscriptionService, rt *stream.Router, stats dispatch.Stats, interval time.Duration) *ExpiryWorker {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	return &ExpiryWorker{
		notifications: ns,
		subscriptions: ss,
		runtime:       rt,
		stats:         stats,
		interval:      interval,
		lastFlushed:   make(map[string]int64),
	}
}

// Start chạy worker cho đến khi ctx bị cancel
func (w *ExpiryWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithFields(map[string]interface{}{
		"interval": w.interval.String(),
	}).Info("🔄 [EXPIRY] Starting Expiry Worker...")

	for {
		select {
		case <-ctx.Done():
			log.Info("🔄 [EXPIRY] Expiry Worker stopped")
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithFields(map[string]interface{}{
							"panic": r,
						}).Error("🔄 [EXPIRY] Panic khi quét hết hạn, sẽ tiếp tục ở lần chạy tiếp theo")
					}
				}()
				w.sweep(ctx)
			}()
		}
	}
}

// sweep một vòng quét cả notification lẫn subscription, rồi flush metrics
func (w *ExpiryWorker) sweep(ctx context.Context) {
	nowMs := time.Now().UnixMilli()
	w.sweepNotifications(ctx, nowMs)
	w.sweepSubscriptions(ctx, nowMs)
	w.flushMetrics(ctx)
}

// flushMetrics persist số liệu tích lũy của các subscription có hoạt động mới.
// Subscription tạo qua WebSocket (id không phải ObjectID) sống theo connection, bỏ qua.
func (w *ExpiryWorker) flushMetrics(ctx context.Context) {
	snapshot := w.runtime.ActivitySnapshot()

	// Dọn các entry của subscription đã gỡ khỏi router
	current := make(map[string]bool, len(snapshot))
	for _, act := range snapshot {
		current[act.ID] = true
	}
	for id := range w.lastFlushed {
		if !current[id] {
			delete(w.lastFlushed, id)
		}
	}

	for _, act := range snapshot {
		if act.LastActivityAt == 0 || act.LastActivityAt <= w.lastFlushed[act.ID] {
			continue
		}
		id, err := primitive.ObjectIDFromHex(act.ID)
		if err != nil {
			continue
		}
		err = w.subscriptions.FlushMetrics(ctx, id, submodels.SubscriptionMetrics{
			EventsMatched:   act.EventsMatched,
			EventsDelivered: act.EventsDelivered,
			LastEventAt:     act.LastActivityAt,
		})
		if err != nil {
			logger.GetErrorLogger().WithError(err).WithFields(map[string]interface{}{
				"subscriptionId": act.ID,
			}).Error("🔄 [EXPIRY] Lỗi khi flush metrics subscription")
			continue
		}
		w.lastFlushed[act.ID] = act.LastActivityAt
	}
}

// sweepNotifications đọc trước các bản ghi sắp bị đánh dấu để báo số liệu theo tenant
func (w *ExpiryWorker) sweepNotifications(ctx context.Context, nowMs int64) {
	log := logger.GetAppLogger()

	due, err := w.notifications.Find(ctx, bson.M{
		"status":    notifmodels.StatusPending,
		"expiresAt": bson.M{"$gt": 0, "$lte": nowMs},
	}, nil)
	if err != nil {
		logger.GetErrorLogger().WithError(err).Error("🔄 [EXPIRY] Lỗi khi tìm notification hết hạn")
		return
	}
	if len(due) == 0 {
		return
	}

	byTenant := make(map[string]int)
	for _, n := range due {
		byTenant[n.TenantID]++
	}

	count, err := w.notifications.SweepExpired(ctx, nowMs)
	if err != nil {
		logger.GetErrorLogger().WithError(err).Error("🔄 [EXPIRY] Lỗi khi đánh dấu notification hết hạn")
		return
	}

	if w.stats != nil {
		for tenantID, n := range byTenant {
			w.stats.Expired(tenantID, n)
		}
	}

	log.WithFields(map[string]interface{}{
		"count": count,
	}).Info("🔄 [EXPIRY] Đánh dấu expired các notification quá hạn")
}

// sweepSubscriptions gỡ subscription hết hạn khỏi router trước khi đánh dấu trong MongoDB,
// để event mới không còn match trong lúc chờ update lan truyền
func (w *ExpiryWorker) sweepSubscriptions(ctx context.Context, nowMs int64) {
	log := logger.GetAppLogger()

	due, err := w.subscriptions.Find(ctx, bson.M{
		"status":    bson.M{"$in": []string{submodels.StatusActive, submodels.StatusPaused}},
		"expiresAt": bson.M{"$gt": 0, "$lte": nowMs},
	}, nil)
	if err != nil {
		logger.GetErrorLogger().WithError(err).Error("🔄 [EXPIRY] Lỗi khi tìm subscription hết hạn")
		return
	}
	if len(due) == 0 {
		return
	}

	for _, sub := range due {
		w.runtime.RemoveSubscription(sub.ID.Hex())
	}

	count, err := w.subscriptions.MarkExpired(ctx, nowMs)
	if err != nil {
		logger.GetErrorLogger().WithError(err).Error("🔄 [EXPIRY] Lỗi khi đánh dấu subscription hết hạn")
		return
	}

	log.WithFields(map[string]interface{}{
		"count": count,
	}).Info("🔄 [EXPIRY] Gỡ và đánh dấu expired các subscription quá hạn")
}
