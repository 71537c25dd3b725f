package worker

import (
	"context"
	"time"

	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	notifmodels "port_stream/internal/api/notification/models"
	"port_stream/internal/dispatch"
	"port_stream/internal/logger"
	"port_stream/internal/stream"
)

// QueueConsumerWorker tiêu thụ các priority queue: dequeue theo batch,
// chuyển mỗi event thành notification và đưa vào vòng giao của dispatcher.
// Cũng là nơi flush các notification bị hoãn vì delivery window.
type QueueConsumerWorker struct {
	manager    *stream.QueueManager
	dispatcher *dispatch.Dispatcher
	interval   time.Duration // Khoảng thời gian giữa các lần drain
	batchSize  int           // Số event tối đa dequeue mỗi queue mỗi lần
}

// NewQueueConsumerWorker tạo mới QueueConsumerWorker
func NewQueueConsumerWorker(qm *stream.QueueManager, d *dispatch.Dispatcher, interval time.Duration, batchSize int) *QueueConsumerWorker {
	if interval < 100*time.Millisecond {
		interval = 1 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &QueueConsumerWorker{
		manager:    qm,
		dispatcher: d,
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Start chạy worker cho đến khi ctx bị cancel
func (w *QueueConsumerWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithFields(map[string]interface{}{
		"interval":  w.interval.String(),
		"batchSize": w.batchSize,
	}).Info("📦 [QUEUE_CONSUMER] Starting Queue Consumer Worker...")

	for {
		select {
		case <-ctx.Done():
			log.Info("📦 [QUEUE_CONSUMER] Queue Consumer Worker stopped")
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithFields(map[string]interface{}{
							"panic": r,
						}).Error("📦 [QUEUE_CONSUMER] Panic khi drain queue, sẽ tiếp tục ở lần chạy tiếp theo")
					}
				}()
				w.drain(ctx)
			}()
		}
	}
}

// drain một vòng: dequeue mọi queue, dispatch notification, flush deferred
func (w *QueueConsumerWorker) drain(ctx context.Context) {
	now := time.Now()

	for _, q := range w.manager.All() {
		q.Purge(now)
		for _, e := range q.Dequeue(w.batchSize, now) {
			n := w.toNotification(e, q.Config().Topic)
			go func(n *notifmodels.Notification) {
				if err := w.dispatcher.Dispatch(ctx, n); err != nil {
					logger.GetErrorLogger().WithError(err).WithFields(map[string]interface{}{
						"notificationId": n.ID.Hex(),
						"tenantId":       n.TenantID,
					}).Error("📦 [QUEUE_CONSUMER] Vòng giao notification lỗi")
				}
			}(n)
		}
	}

	if flushed := w.dispatcher.FlushDue(ctx); flushed > 0 {
		logger.GetAppLogger().WithFields(map[string]interface{}{
			"count": flushed,
		}).Info("📦 [QUEUE_CONSUMER] Giao các notification đến khung giờ cho phép")
	}
}

// toNotification dựng notification từ một event trong queue.
// Severity lấy từ payload nếu producer gắn; không có thì suy từ priority của event.
// Channels/priority/maxRetries còn thiếu do dispatcher điền theo severity.
func (w *QueueConsumerWorker) toNotification(e *stream.Event, queueTopic string) *notifmodels.Notification {
	severity := gjson.GetBytes(e.Payload, "severity").String()
	if severity == "" {
		severity = severityFromPriority(e.Metadata.Priority)
	}

	title := gjson.GetBytes(e.Payload, "title").String()
	if title == "" {
		title = e.Topic
	}
	message := gjson.GetBytes(e.Payload, "message").String()
	if message == "" {
		message = string(e.Payload)
	}

	now := time.Now().UnixMilli()
	return &notifmodels.Notification{
		ID:       primitive.NewObjectID(),
		TenantID: e.TenantID,
		Type:     e.Topic,
		Severity: severity,
		Priority: e.Metadata.Priority,
		Status:   notifmodels.StatusPending,
		Title:    title,
		Message:  message,
		Target: notifmodels.NotificationTarget{
			Kind: notifmodels.TargetZone,
			ID:   queueTopic,
		},
		Channels: dispatch.GetRecommendedChannels(severity),
		Rules: notifmodels.DeliveryRules{
			Immediate: e.Metadata.Priority <= 1,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// severityFromPriority ánh xạ ngược priority event (0 cao nhất) về severity
func severityFromPriority(priority int) string {
	switch {
	case priority <= 0:
		return dispatch.SeverityCritical
	case priority == 1:
		return dispatch.SeverityHigh
	case priority == 2:
		return dispatch.SeverityMedium
	case priority == 3:
		return dispatch.SeverityLow
	default:
		return dispatch.SeverityInfo
	}
}
