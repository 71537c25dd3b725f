package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	notifmodels "port_stream/internal/api/notification/models"
)

// fakeSender đếm số lần gọi và fail theo kịch bản
type fakeSender struct {
	mu       sync.Mutex
	calls    int
	failTill int // fail cho đến lần gọi thứ N (0 = luôn thành công)
	always   bool
}

func (f *fakeSender) send(ctx context.Context, n *notifmodels.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.always || f.calls <= f.failTill {
		return errors.New("kênh giao lỗi")
	}
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memSaver lưu bản ghi cuối cùng của mỗi notification
type memSaver struct {
	mu    sync.Mutex
	saved []notifmodels.Notification
}

func (s *memSaver) Save(ctx context.Context, n *notifmodels.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, *n)
	return nil
}

func newTestDispatcher(senders map[string]SendFunc, saver NotificationSaver) *Dispatcher {
	d := NewDispatcher(senders, saver, nil)
	// Không ngủ thật trong test
	d.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return d
}

func baseNotification(channels ...string) *notifmodels.Notification {
	return &notifmodels.Notification{
		ID:       primitive.NewObjectID(),
		TenantID: "tenant-a",
		Type:     "crane_fault",
		Severity: SeverityHigh,
		Title:    "Cẩu STS-03 lỗi",
		Message:  "Mất tín hiệu PLC",
		Target:   notifmodels.NotificationTarget{Kind: notifmodels.TargetRole, ID: "shift-lead"},
		Channels: channels,
		Rules:    notifmodels.DeliveryRules{Immediate: true, MaxRetries: 1, RetryIntervalMs: 100},
	}
}

func TestDispatcherChannelTimeoutConfigurable(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	assert.Equal(t, defaultChannelTimeout, d.channelTimeout)

	d.SetChannelTimeout(3 * time.Second)
	assert.Equal(t, 3*time.Second, d.channelTimeout)

	// Giá trị không hợp lệ giữ nguyên timeout hiện tại
	d.SetChannelTimeout(0)
	assert.Equal(t, 3*time.Second, d.channelTimeout)
}

func TestDispatchNoChannelsMarksSent(t *testing.T) {
	saver := &memSaver{}
	d := newTestDispatcher(nil, saver)

	n := baseNotification()
	require.NoError(t, d.Dispatch(context.Background(), n))
	assert.Equal(t, notifmodels.StatusSent, n.Status)
	assert.Empty(t, n.DeliveryHistory)
	require.NotEmpty(t, saver.saved)
}

func TestDispatchAllChannelsSucceedDelivered(t *testing.T) {
	email := &fakeSender{}
	webhook := &fakeSender{}
	d := newTestDispatcher(map[string]SendFunc{
		"email":   email.send,
		"webhook": webhook.send,
	}, nil)

	n := baseNotification("email", "webhook")
	require.NoError(t, d.Dispatch(context.Background(), n))

	assert.Equal(t, notifmodels.StatusDelivered, n.Status)
	assert.Equal(t, 1, email.count())
	assert.Equal(t, 1, webhook.count())
	assert.Len(t, n.DeliveryHistory, 2)
	for _, a := range n.DeliveryHistory {
		assert.Equal(t, notifmodels.OutcomeSuccess, a.Outcome)
	}
}

func TestDispatchRetrySucceedsOnSecondAttempt(t *testing.T) {
	flaky := &fakeSender{failTill: 1}
	d := newTestDispatcher(map[string]SendFunc{"email": flaky.send}, nil)

	n := baseNotification("email")
	n.Rules.MaxRetries = 2
	require.NoError(t, d.Dispatch(context.Background(), n))

	assert.Equal(t, notifmodels.StatusDelivered, n.Status)
	assert.Equal(t, 2, flaky.count())
	require.Len(t, n.DeliveryHistory, 2)
	assert.Equal(t, notifmodels.OutcomeFailure, n.DeliveryHistory[0].Outcome)
	assert.Equal(t, notifmodels.OutcomeSuccess, n.DeliveryHistory[1].Outcome)
}

func TestDispatchTwoChannelsRetryThenEscalation(t *testing.T) {
	// email thành công ngay, webhook thất bại mọi lần ⇒ sau khi hết retry:
	// status failed + một notification escalation được giao tới escalation target
	email := &fakeSender{}
	webhook := &fakeSender{always: true}
	saver := &memSaver{}
	d := newTestDispatcher(map[string]SendFunc{
		"email":   email.send,
		"webhook": webhook.send,
	}, saver)

	n := baseNotification("email", "webhook")
	n.Rules.MaxRetries = 2
	n.Rules.Escalation = notifmodels.EscalationConfig{
		Enabled:   true,
		Threshold: 2,
		Target:    notifmodels.NotificationTarget{Kind: notifmodels.TargetRole, ID: "terminal-manager"},
	}

	require.NoError(t, d.Dispatch(context.Background(), n))

	assert.Equal(t, notifmodels.StatusFailed, n.Status)
	// Bản gốc: email 1 lần (thành công thì không thử lại), webhook 1 + 2 retry.
	// Bản escalation giao lại trên cùng bộ channel nên mỗi sender cộng thêm tương ứng.
	assert.Equal(t, 2, email.count())
	assert.Equal(t, 6, webhook.count())

	// History gốc: 1 success (email) + 3 failure (webhook)
	var successes, failures int
	for _, a := range n.DeliveryHistory {
		switch a.Outcome {
		case notifmodels.OutcomeSuccess:
			successes++
		case notifmodels.OutcomeFailure:
			failures++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 3, failures)

	// Bản escalation: đã lưu với target mới, đánh dấu nguồn gốc, không escalate tiếp
	var esc *notifmodels.Notification
	for i := range saver.saved {
		if saver.saved[i].EscalatedFrom == n.ID.Hex() {
			esc = &saver.saved[i]
		}
	}
	require.NotNil(t, esc, "phải sinh notification escalation")
	assert.Equal(t, "terminal-manager", esc.Target.ID)
	assert.False(t, esc.Rules.Escalation.Enabled)
	assert.Contains(t, esc.Title, "[ESCALATION]")
	// Email của bản escalation thành công, webhook vẫn lỗi ⇒ failed nhưng không escalate nữa
	assert.Equal(t, notifmodels.StatusFailed, esc.Status)
}

func TestDispatchEscalationBelowThresholdSkipped(t *testing.T) {
	failing := &fakeSender{always: true}
	saver := &memSaver{}
	d := newTestDispatcher(map[string]SendFunc{"email": failing.send}, saver)

	n := baseNotification("email")
	n.Severity = "" // không suy maxRetries từ severity
	n.Rules.MaxRetries = 0 // chỉ 1 attempt ⇒ 1 failure < threshold 5
	n.Rules.Escalation = notifmodels.EscalationConfig{
		Enabled:   true,
		Threshold: 5,
		Target:    notifmodels.NotificationTarget{Kind: notifmodels.TargetRole, ID: "terminal-manager"},
	}

	require.NoError(t, d.Dispatch(context.Background(), n))
	assert.Equal(t, notifmodels.StatusFailed, n.Status)
	for _, s := range saver.saved {
		assert.Empty(t, s.EscalatedFrom, "chưa chạm threshold thì không escalate")
	}
}

func TestDispatchExpiredBeforeStart(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(map[string]SendFunc{"email": sender.send}, nil)

	n := baseNotification("email")
	n.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()

	require.NoError(t, d.Dispatch(context.Background(), n))
	assert.Equal(t, notifmodels.StatusExpired, n.Status)
	assert.Equal(t, 0, sender.count(), "hết hạn thì không thử channel nào")
	require.Len(t, n.DeliveryHistory, 1)
	assert.Equal(t, notifmodels.OutcomeExpired, n.DeliveryHistory[0].Outcome)
}

func TestDispatchExpiryCancelsRetries(t *testing.T) {
	failing := &fakeSender{always: true}
	d := newTestDispatcher(map[string]SendFunc{"email": failing.send}, nil)

	// Hết hạn ngay sau attempt đầu tiên
	base := time.Now()
	calls := 0
	d.now = func() time.Time {
		calls++
		if calls <= 3 {
			return base
		}
		return base.Add(time.Hour)
	}

	n := baseNotification("email")
	n.Rules.MaxRetries = 5
	n.ExpiresAt = base.Add(time.Minute).UnixMilli()

	require.NoError(t, d.Dispatch(context.Background(), n))
	assert.Equal(t, notifmodels.StatusExpired, n.Status)
	assert.Less(t, failing.count(), 6, "retry bị hủy khi notification hết hạn")
	assert.Equal(t, notifmodels.OutcomeExpired, n.DeliveryHistory[len(n.DeliveryHistory)-1].Outcome)
}

func TestDispatchDeliveryWindowDefersAndFlushes(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(map[string]SendFunc{"email": sender.send}, nil)

	// now cố định 03:00 — ngoài window 08:00–18:00
	night := time.Date(2026, 8, 29, 3, 0, 0, 0, time.Local)
	d.now = func() time.Time { return night }

	n := baseNotification("email")
	n.Rules.Immediate = false
	n.Rules.Window = &notifmodels.DeliveryWindow{From: "08:00", To: "18:00"}

	require.NoError(t, d.Dispatch(context.Background(), n))
	assert.Equal(t, notifmodels.StatusPending, n.Status)
	assert.Equal(t, 0, sender.count())
	assert.Equal(t, 1, d.PendingWindow())

	// Window chưa mở ⇒ flush không giao gì
	assert.Equal(t, 0, d.FlushDue(context.Background()))

	// Đến 09:00 ⇒ flush giao notification
	d.now = func() time.Time { return time.Date(2026, 8, 29, 9, 0, 0, 0, time.Local) }
	assert.Equal(t, 1, d.FlushDue(context.Background()))
	assert.Equal(t, notifmodels.StatusDelivered, n.Status)
	assert.Equal(t, 1, sender.count())
	assert.Equal(t, 0, d.PendingWindow())
}

func TestDispatchImmediateBypassesWindow(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(map[string]SendFunc{"email": sender.send}, nil)
	d.now = func() time.Time { return time.Date(2026, 8, 29, 3, 0, 0, 0, time.Local) }

	n := baseNotification("email")
	n.Rules.Immediate = true
	n.Rules.Window = &notifmodels.DeliveryWindow{From: "08:00", To: "18:00"}

	require.NoError(t, d.Dispatch(context.Background(), n))
	assert.Equal(t, notifmodels.StatusDelivered, n.Status, "immediate bỏ qua delivery window")
}

func TestDispatchUnknownChannelFails(t *testing.T) {
	d := newTestDispatcher(map[string]SendFunc{}, nil)

	n := baseNotification("pager")
	n.Rules.MaxRetries = 0
	require.NoError(t, d.Dispatch(context.Background(), n))
	assert.Equal(t, notifmodels.StatusFailed, n.Status)
	require.NotEmpty(t, n.DeliveryHistory)
	assert.Contains(t, n.DeliveryHistory[0].Error, "không được hỗ trợ")
}

func TestApplyDefaultsFromSeverity(t *testing.T) {
	d := newTestDispatcher(nil, nil)

	n := &notifmodels.Notification{Severity: SeverityCritical}
	d.applyDefaults(n)
	assert.Equal(t, 0, n.Priority)
	assert.Equal(t, 10, n.Rules.MaxRetries)
	assert.Equal(t, defaultRetryIntervalMs, n.Rules.RetryIntervalMs)
	assert.Equal(t, notifmodels.StatusPending, n.Status)

	n2 := &notifmodels.Notification{Severity: SeverityInfo}
	d.applyDefaults(n2)
	assert.Equal(t, 4, n2.Priority)
	assert.Equal(t, 1, n2.Rules.MaxRetries)
}

func TestWindowOpen(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 8, 29, h, m, 0, 0, time.Local) }

	day := &notifmodels.DeliveryWindow{From: "08:00", To: "18:00"}
	assert.True(t, windowOpen(day, at(8, 0)))
	assert.True(t, windowOpen(day, at(12, 30)))
	assert.False(t, windowOpen(day, at(18, 0)))
	assert.False(t, windowOpen(day, at(3, 0)))

	// Khung qua đêm
	night := &notifmodels.DeliveryWindow{From: "22:00", To: "06:00"}
	assert.True(t, windowOpen(night, at(23, 0)))
	assert.True(t, windowOpen(night, at(2, 0)))
	assert.False(t, windowOpen(night, at(12, 0)))

	assert.True(t, windowOpen(nil, at(3, 0)))
	assert.True(t, windowOpen(&notifmodels.DeliveryWindow{}, at(3, 0)))
}
