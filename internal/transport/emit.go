package transport

import (
	"encoding/json"
	"time"

	"port_stream/internal/logger"
	"port_stream/internal/stream"
)

// NewEmitter dựng EmitFunc giao shaped event theo binding của subscription:
// room/both broadcast vào room qua registry, queue/both enqueue vào priority queue.
// Chạy trên goroutine shard của router — chỉ làm việc non-blocking.
func NewEmitter(registry *stream.ConnectionRegistry, qm *stream.QueueManager, analytics *stream.Analytics) stream.EmitFunc {
	return func(sub *stream.Subscription, shaped []*stream.Event) {
		now := time.Now()

		for _, e := range shaped {
			if (sub.Binding == stream.BindingRoom || sub.Binding == stream.BindingBoth) && sub.Room != "" {
				payload, err := json.Marshal(ServerMessage{
					Type:           MsgEvent,
					SubscriptionID: sub.ID,
					Data:           e,
					ServerTS:       now.UnixMilli(),
				})
				if err == nil {
					delivered, dropped := registry.Broadcast(sub.Room, payload)
					analytics.Broadcast(sub.TenantID, delivered, dropped)
				}
			}

			if (sub.Binding == stream.BindingQueue || sub.Binding == stream.BindingBoth) && sub.QueueTopic != "" {
				q := qm.Get(stream.QueueConfig{TenantID: sub.TenantID, Topic: sub.QueueTopic})
				ok, err := q.Enqueue(e, now)
				if err != nil {
					logger.GetAppLogger().WithError(err).WithFields(map[string]interface{}{
						"subscriptionId": sub.ID,
						"topic":          sub.QueueTopic,
					}).Warn("📦 [QUEUE] Enqueue bị từ chối")
					continue
				}
				if ok {
					analytics.Enqueued(sub.TenantID, 1)
				}
			}
		}
	}
}
