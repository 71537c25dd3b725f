package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	notifmodels "port_stream/internal/api/notification/models"
	"port_stream/internal/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SendFunc giao một notification qua một channel cụ thể
type SendFunc func(ctx context.Context, n *notifmodels.Notification) error

// NotificationSaver persist trạng thái/lịch sử notification sau mỗi thay đổi
type NotificationSaver interface {
	Save(ctx context.Context, n *notifmodels.Notification) error
}

// Stats hook analytics cho kết quả giao. *stream.Analytics thỏa interface này.
type Stats interface {
	Dispatched(tenantID string, n int)
	DispatchFailed(tenantID string, n int)
	Expired(tenantID string, n int)
}

const (
	defaultRetryIntervalMs = int64(5_000)
	defaultChannelTimeout  = 10 * time.Second
)

// Dispatcher giao notification qua các channel cấu hình với retry, escalation,
// delivery window và expiry. Mọi kết quả attempt đều vào deliveryHistory —
// không bao giờ drop im lặng.
type Dispatcher struct {
	senders        map[string]SendFunc
	saver          NotificationSaver
	stats          Stats
	channelTimeout time.Duration

	// now/sleep tách ra để test điều khiển thời gian
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	deferred []*notifmodels.Notification // chờ delivery window mở
}

// NewDispatcher tạo dispatcher với bộ sender theo tên channel.
// saver và stats có thể nil (bỏ qua persist/analytics).
func NewDispatcher(senders map[string]SendFunc, saver NotificationSaver, stats Stats) *Dispatcher {
	return &Dispatcher{
		senders:        senders,
		saver:          saver,
		stats:          stats,
		channelTimeout: defaultChannelTimeout,
		now:            time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// SetChannelTimeout đặt timeout gửi một channel. Gọi khi init; <=0 giữ default.
func (d *Dispatcher) SetChannelTimeout(t time.Duration) {
	if t > 0 {
		d.channelTimeout = t
	}
}

// Dispatch giao một notification. Trả lỗi chỉ khi không thể bắt đầu
// (context hủy); kết quả giao nằm ở n.Status và n.DeliveryHistory.
func (d *Dispatcher) Dispatch(ctx context.Context, n *notifmodels.Notification) error {
	d.applyDefaults(n)
	log := logger.GetAppLogger()

	// Không có channel nào ⇒ chỉ đánh dấu sent (notification in-app thuần)
	if len(n.Channels) == 0 {
		n.Status = notifmodels.StatusSent
		d.save(ctx, n)
		log.WithFields(map[string]interface{}{
			"notificationId": n.ID.Hex(),
			"tenantId":       n.TenantID,
		}).Info("🔔 [DISPATCH] Notification không có channel, đánh dấu sent")
		return nil
	}

	now := d.now()
	if d.expired(n, now) {
		d.markExpired(ctx, n, now)
		return nil
	}

	// Notification không immediate chờ đến khung giờ giao hợp lệ
	if !n.Rules.Immediate && !windowOpen(n.Rules.Window, now) {
		d.defer_(n)
		log.WithFields(map[string]interface{}{
			"notificationId": n.ID.Hex(),
			"tenantId":       n.TenantID,
			"window":         n.Rules.Window,
		}).Info("🔔 [DISPATCH] Ngoài delivery window, giữ lại chờ khung giờ mở")
		return nil
	}

	return d.deliver(ctx, n)
}

// deliver chạy vòng attempt: mỗi round thử các channel chưa thành công,
// hết round chờ retryInterval. Channel đã thành công không thử lại.
func (d *Dispatcher) deliver(ctx context.Context, n *notifmodels.Notification) error {
	log := logger.GetAppLogger()
	remaining := map[string]bool{}
	for _, ch := range n.Channels {
		remaining[ch] = true
	}

	failures := 0
	maxAttempts := n.Rules.MaxRetries + 1
	retryInterval := time.Duration(n.Rules.RetryIntervalMs) * time.Millisecond

	for attempt := 1; attempt <= maxAttempts && len(remaining) > 0; attempt++ {
		now := d.now()
		if d.expired(n, now) {
			d.markExpired(ctx, n, now)
			return nil
		}

		for ch := range remaining {
			err := d.sendOne(ctx, ch, n)
			at := d.now().UnixMilli()
			if err != nil {
				failures++
				n.DeliveryHistory = append(n.DeliveryHistory, notifmodels.DeliveryAttempt{
					Channel: ch,
					Outcome: notifmodels.OutcomeFailure,
					Error:   err.Error(),
					At:      at,
				})
				log.WithError(err).WithFields(map[string]interface{}{
					"notificationId": n.ID.Hex(),
					"channel":        ch,
					"attempt":        attempt,
				}).Warn("🔔 [DISPATCH] Giao thất bại trên channel")
				continue
			}
			n.DeliveryHistory = append(n.DeliveryHistory, notifmodels.DeliveryAttempt{
				Channel: ch,
				Outcome: notifmodels.OutcomeSuccess,
				At:      at,
			})
			delete(remaining, ch)
		}

		if len(remaining) > 0 && attempt < maxAttempts {
			if err := d.sleep(ctx, retryInterval); err != nil {
				return err
			}
		}
	}

	now := d.now()
	if len(remaining) == 0 {
		// Mọi channel đều có ít nhất một lần thành công
		n.Status = notifmodels.StatusDelivered
		n.UpdatedAt = now.UnixMilli()
		d.save(ctx, n)
		if d.stats != nil {
			d.stats.Dispatched(n.TenantID, 1)
		}
		log.WithFields(map[string]interface{}{
			"notificationId": n.ID.Hex(),
			"tenantId":       n.TenantID,
			"channels":       n.Channels,
		}).Info("🔔 [DISPATCH] Notification đã giao đủ mọi channel")
		return nil
	}

	n.Status = notifmodels.StatusFailed
	n.UpdatedAt = now.UnixMilli()
	d.save(ctx, n)
	if d.stats != nil {
		d.stats.DispatchFailed(n.TenantID, 1)
	}
	log.WithFields(map[string]interface{}{
		"notificationId": n.ID.Hex(),
		"tenantId":       n.TenantID,
		"failedChannels": keys(remaining),
		"failures":       failures,
	}).Error("🔔 [DISPATCH] Notification thất bại sau khi hết retry")

	if n.Rules.Escalation.Enabled && failures >= n.Rules.Escalation.Threshold {
		return d.escalate(ctx, n)
	}
	return nil
}

// escalate tạo bản sao notification gửi tới escalation target.
// Bản escalation giao ngay và KHÔNG escalate tiếp (tránh vòng lặp).
func (d *Dispatcher) escalate(ctx context.Context, n *notifmodels.Notification) error {
	esc := *n
	esc.ID = primitive.NewObjectID()
	esc.EscalatedFrom = n.ID.Hex()
	esc.Target = n.Rules.Escalation.Target
	esc.Title = "[ESCALATION] " + n.Title
	esc.Status = notifmodels.StatusPending
	esc.DeliveryHistory = nil
	esc.Rules.Immediate = true
	esc.Rules.Escalation = notifmodels.EscalationConfig{}
	esc.CreatedAt = d.now().UnixMilli()
	esc.UpdatedAt = esc.CreatedAt

	logger.GetAppLogger().WithFields(map[string]interface{}{
		"sourceNotificationId": n.ID.Hex(),
		"escalationTarget":     esc.Target,
	}).Warn("🔔 [DISPATCH] Escalate notification sau khi giao thất bại")

	return d.Dispatch(ctx, &esc)
}

// FlushDue duyệt các notification đang chờ delivery window: window đã mở thì
// giao, đã hết hạn thì đánh dấu expired. Worker gọi định kỳ.
func (d *Dispatcher) FlushDue(ctx context.Context) int {
	now := d.now()

	d.mu.Lock()
	var due []*notifmodels.Notification
	kept := d.deferred[:0]
	for _, n := range d.deferred {
		if d.expired(n, now) || windowOpen(n.Rules.Window, now) {
			due = append(due, n)
		} else {
			kept = append(kept, n)
		}
	}
	d.deferred = kept
	d.mu.Unlock()

	for _, n := range due {
		if d.expired(n, now) {
			d.markExpired(ctx, n, now)
			continue
		}
		_ = d.deliver(ctx, n)
	}
	return len(due)
}

// PendingWindow số notification đang chờ window mở
func (d *Dispatcher) PendingWindow() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.deferred)
}

// sendOne gọi sender của channel với timeout riêng
func (d *Dispatcher) sendOne(ctx context.Context, channel string, n *notifmodels.Notification) error {
	sender, ok := d.senders[channel]
	if !ok {
		return fmt.Errorf("channel không được hỗ trợ: %s", channel)
	}
	cctx, cancel := context.WithTimeout(ctx, d.channelTimeout)
	defer cancel()
	return sender(cctx, n)
}

func (d *Dispatcher) applyDefaults(n *notifmodels.Notification) {
	if n.Status == "" {
		n.Status = notifmodels.StatusPending
	}
	if n.Severity != "" {
		if n.Priority == 0 {
			n.Priority = GetPriorityFromSeverity(n.Severity)
		}
		if n.Rules.MaxRetries == 0 {
			n.Rules.MaxRetries = GetMaxRetriesFromSeverity(n.Severity)
		}
	}
	if n.Rules.RetryIntervalMs <= 0 {
		n.Rules.RetryIntervalMs = defaultRetryIntervalMs
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = d.now().UnixMilli()
	}
}

func (d *Dispatcher) expired(n *notifmodels.Notification, now time.Time) bool {
	return n.ExpiresAt > 0 && now.UnixMilli() > n.ExpiresAt
}

// markExpired hết hạn trước khi giao xong: hủy retry, ghi outcome expired
func (d *Dispatcher) markExpired(ctx context.Context, n *notifmodels.Notification, now time.Time) {
	n.Status = notifmodels.StatusExpired
	n.UpdatedAt = now.UnixMilli()
	n.DeliveryHistory = append(n.DeliveryHistory, notifmodels.DeliveryAttempt{
		Channel: "-",
		Outcome: notifmodels.OutcomeExpired,
		Error:   "notification hết hạn trước khi giao thành công",
		At:      now.UnixMilli(),
	})
	d.save(ctx, n)
	if d.stats != nil {
		d.stats.Expired(n.TenantID, 1)
	}
	logger.GetAppLogger().WithFields(map[string]interface{}{
		"notificationId": n.ID.Hex(),
		"tenantId":       n.TenantID,
		"expiresAt":      n.ExpiresAt,
	}).Warn("🔔 [DISPATCH] Notification hết hạn, hủy các retry còn lại")
}

func (d *Dispatcher) defer_(n *notifmodels.Notification) {
	d.mu.Lock()
	d.deferred = append(d.deferred, n)
	d.mu.Unlock()
}

func (d *Dispatcher) save(ctx context.Context, n *notifmodels.Notification) {
	if d.saver == nil {
		return
	}
	if err := d.saver.Save(ctx, n); err != nil {
		logger.GetErrorLogger().WithError(err).WithFields(map[string]interface{}{
			"notificationId": n.ID.Hex(),
		}).Error("🔔 [DISPATCH] Lỗi persist trạng thái notification")
	}
}

// windowOpen kiểm tra now có nằm trong khung giờ giao không.
// Window nil hoặc thiếu from/to ⇒ luôn mở. Hỗ trợ khung qua đêm (from > to).
func windowOpen(w *notifmodels.DeliveryWindow, now time.Time) bool {
	if w == nil || w.From == "" || w.To == "" {
		return true
	}
	from, okFrom := parseHHMM(w.From)
	to, okTo := parseHHMM(w.To)
	if !okFrom || !okTo {
		return true
	}
	cur := now.Hour()*60 + now.Minute()
	if from <= to {
		return cur >= from && cur < to
	}
	return cur >= from || cur < to // khung qua đêm, ví dụ 22:00–06:00
}

func parseHHMM(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
