package stream

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func queueCfg(maxSize int) QueueConfig {
	return ResolveQueueConfig(QueueConfig{
		TenantID: "tenant-a",
		Topic:    "berth.window.alert",
		MaxSize:  maxSize,
	})
}

func priorityEvent(priority int, seq int) *Event {
	e := NewEvent("tenant-a", "berth.window.alert", json.RawMessage(fmt.Sprintf(`{"seq":%d}`, seq)))
	e.Metadata.Priority = priority
	return e
}

func TestQueuePriorityOrder(t *testing.T) {
	q := NewPriorityQueue(queueCfg(10))
	now := time.Now()

	// Enqueue xen kẽ priority, dequeue phải ra mức 0 trước, FIFO trong mức
	_, _ = q.Enqueue(priorityEvent(2, 1), now)
	_, _ = q.Enqueue(priorityEvent(0, 2), now)
	_, _ = q.Enqueue(priorityEvent(2, 3), now)
	_, _ = q.Enqueue(priorityEvent(1, 4), now)

	out := q.Dequeue(10, now)
	require.Len(t, out, 4)
	seqs := make([]int64, len(out))
	for i, e := range out {
		seqs[i] = gjson.GetBytes(e.Payload, "seq").Int()
	}
	assert.Equal(t, []int64{2, 4, 1, 3}, seqs)
}

func TestQueueEvictionWhenFull(t *testing.T) {
	q := NewPriorityQueue(queueCfg(2))
	now := time.Now()

	_, _ = q.Enqueue(priorityEvent(3, 1), now)
	_, _ = q.Enqueue(priorityEvent(3, 2), now)

	// Event priority cao hơn ⇒ evict entry CŨ NHẤT của mức THẤP NHẤT (seq=1)
	ok, err := q.Enqueue(priorityEvent(0, 3), now)
	assert.True(t, ok)
	assert.NoError(t, err)

	out := q.Dequeue(10, now)
	require.Len(t, out, 2)
	assert.Equal(t, int64(3), gjson.GetBytes(out[0].Payload, "seq").Int())
	assert.Equal(t, int64(2), gjson.GetBytes(out[1].Payload, "seq").Int())
}

func TestQueueRejectionWhenFullOfHigherPriority(t *testing.T) {
	q := NewPriorityQueue(queueCfg(2))
	now := time.Now()

	_, _ = q.Enqueue(priorityEvent(0, 1), now)
	_, _ = q.Enqueue(priorityEvent(0, 2), now)

	// Event priority thấp hơn mọi entry hiện có ⇒ từ chối
	ok, err := q.Enqueue(priorityEvent(5, 3), now)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.Equal(t, 2, q.Len())
}

func TestQueueEqualPriorityEvicts(t *testing.T) {
	q := NewPriorityQueue(queueCfg(2))
	now := time.Now()

	_, _ = q.Enqueue(priorityEvent(2, 1), now)
	_, _ = q.Enqueue(priorityEvent(2, 2), now)

	// Priority BẰNG mức thấp nhất vẫn evict (ưu tiên dữ liệu mới)
	ok, err := q.Enqueue(priorityEvent(2, 3), now)
	assert.True(t, ok)
	assert.NoError(t, err)

	out := q.Dequeue(10, now)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), gjson.GetBytes(out[0].Payload, "seq").Int())
	assert.Equal(t, int64(3), gjson.GetBytes(out[1].Payload, "seq").Int())
}

func TestQueueDedupWithinWindow(t *testing.T) {
	cfg := ResolveQueueConfig(QueueConfig{
		TenantID:      "tenant-a",
		Topic:         "crane.fault.raised",
		MaxSize:       10,
		DedupEnabled:  true,
		DedupFields:   []string{"craneId", "faultCode"},
		DedupWindowMs: 60_000,
	})
	q := NewPriorityQueue(cfg)
	now := time.Now()

	mk := func(crane, code string) *Event {
		return NewEvent("tenant-a", "crane.fault.raised",
			json.RawMessage(fmt.Sprintf(`{"craneId":%q,"faultCode":%q}`, crane, code)))
	}

	ok, _ := q.Enqueue(mk("crane-01", "E42"), now)
	assert.True(t, ok)

	// Cùng dedup key trong window ⇒ bỏ qua im lặng, không lỗi
	ok, err := q.Enqueue(mk("crane-01", "E42"), now.Add(time.Second))
	assert.False(t, ok)
	assert.NoError(t, err)

	// Khác key ⇒ vào bình thường
	ok, _ = q.Enqueue(mk("crane-02", "E42"), now.Add(time.Second))
	assert.True(t, ok)

	// Hết window ⇒ key cũ enqueue lại được
	ok, _ = q.Enqueue(mk("crane-01", "E42"), now.Add(61*time.Second))
	assert.True(t, ok)

	assert.Equal(t, 3, q.Len())
}

func TestQueueDedupNotRecordedOnCapacityReject(t *testing.T) {
	cfg := ResolveQueueConfig(QueueConfig{
		TenantID:      "tenant-a",
		Topic:         "crane.fault.raised",
		MaxSize:       1,
		DedupEnabled:  true,
		DedupFields:   []string{"craneId"},
		DedupWindowMs: 60_000,
	})
	q := NewPriorityQueue(cfg)
	now := time.Now()

	mk := func(crane string, priority int) *Event {
		e := NewEvent("tenant-a", "crane.fault.raised",
			json.RawMessage(fmt.Sprintf(`{"craneId":%q}`, crane)))
		e.Metadata.Priority = priority
		return e
	}

	ok, _ := q.Enqueue(mk("crane-01", 0), now)
	require.True(t, ok)

	// Queue đầy, priority thấp hơn mọi entry ⇒ từ chối
	ok, err := q.Enqueue(mk("crane-02", 5), now)
	require.False(t, ok)
	require.Error(t, err)

	// Sau khi drain, event bị từ chối phải enqueue lại được ngay —
	// lần từ chối không được tính vào dedup window
	q.Dequeue(10, now)
	ok, err = q.Enqueue(mk("crane-02", 5), now.Add(time.Second))
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestQueueDedupDisabledAllowsDuplicates(t *testing.T) {
	q := NewPriorityQueue(queueCfg(10))
	now := time.Now()

	for i := 0; i < 3; i++ {
		ok, err := q.Enqueue(priorityEvent(1, 7), now)
		assert.True(t, ok)
		assert.NoError(t, err)
	}
	assert.Equal(t, 3, q.Len())
}

func TestQueueTTLPurgeOnDequeue(t *testing.T) {
	cfg := queueCfg(10)
	cfg.TTLMs = 1000
	q := NewPriorityQueue(cfg)
	now := time.Now()

	_, _ = q.Enqueue(priorityEvent(1, 1), now)
	_, _ = q.Enqueue(priorityEvent(1, 2), now.Add(2*time.Second))

	// Entry đầu đã hết TTL tại thời điểm dequeue ⇒ bị purge, không trả về
	out := q.Dequeue(10, now.Add(2500*time.Millisecond))
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), gjson.GetBytes(out[0].Payload, "seq").Int())
}

func TestQueueManagerLifecycle(t *testing.T) {
	m := NewQueueManager()
	cfg := QueueConfig{TenantID: "tenant-a", Topic: "gate.truck.arrived"}

	q1 := m.Get(cfg)
	q2 := m.Get(cfg)
	assert.Same(t, q1, q2, "cùng (tenant, topic) phải trả về cùng queue")

	_, ok := m.Lookup("tenant-a", "gate.truck.arrived")
	assert.True(t, ok)
	_, ok = m.Lookup("tenant-b", "gate.truck.arrived")
	assert.False(t, ok, "queue tách theo tenant")

	q3 := m.Replace(cfg)
	assert.NotSame(t, q1, q3)

	m.Remove("tenant-a", "gate.truck.arrived")
	_, ok = m.Lookup("tenant-a", "gate.truck.arrived")
	assert.False(t, ok)
}

func TestQueueManagerServerDefaults(t *testing.T) {
	m := NewQueueManager()
	m.SetDefaults(500, 120_000)

	// Config không set MaxSize/TTL ⇒ nhận default server-wide
	q := m.Get(QueueConfig{TenantID: "tenant-a", Topic: "gate.truck.arrived"})
	assert.Equal(t, 500, q.Config().MaxSize)
	assert.Equal(t, int64(120_000), q.Config().TTLMs)

	// Config set tường minh ⇒ giữ nguyên giá trị của config
	q = m.Get(QueueConfig{TenantID: "tenant-a", Topic: "berth.window.alert", MaxSize: 20, TTLMs: 5000})
	assert.Equal(t, 20, q.Config().MaxSize)
	assert.Equal(t, int64(5000), q.Config().TTLMs)
}
