package stream

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emitCollector gom shaped event theo subscription để assert
type emitCollector struct {
	mu     sync.Mutex
	bySubs map[string][]*Event
}

func newEmitCollector() *emitCollector {
	return &emitCollector{bySubs: map[string][]*Event{}}
}

func (c *emitCollector) emit(sub *Subscription, shaped []*Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySubs[sub.ID] = append(c.bySubs[sub.ID], shaped...)
}

func (c *emitCollector) count(subID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bySubs[subID])
}

func startRouter(t *testing.T, emit EmitFunc) *Router {
	t.Helper()
	r := NewRouter(4, 0, emit)
	r.Start(context.Background())
	t.Cleanup(r.Stop)
	return r
}

func simpleSub(id, tenantID, topic string) *Subscription {
	return &Subscription{
		ID:       id,
		TenantID: tenantID,
		Topic:    topic,
		Binding:  BindingRoom,
		Room:     "room:" + id,
	}
}

func TestRouterPublishMatchesSubscriptions(t *testing.T) {
	col := newEmitCollector()
	r := startRouter(t, col.emit)

	r.AddSubscription(simpleSub("sub-exact", "tenant-a", "vessel.eta.updated"))
	r.AddSubscription(simpleSub("sub-wild", "tenant-a", "vessel.*.updated"))
	r.AddSubscription(simpleSub("sub-other-topic", "tenant-a", "crane.status.changed"))
	r.AddSubscription(simpleSub("sub-other-tenant", "tenant-b", "vessel.eta.updated"))

	e := NewEvent("tenant-a", "vessel.eta.updated", json.RawMessage(`{"delayMinutes":12}`))
	n, err := r.Publish(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "chỉ subscription cùng tenant và khớp topic được nhận")

	assert.Equal(t, 1, col.count("sub-exact"))
	assert.Equal(t, 1, col.count("sub-wild"))
	assert.Equal(t, 0, col.count("sub-other-topic"))
	assert.Equal(t, 0, col.count("sub-other-tenant"))
}

func TestRouterWildcardFirstSegment(t *testing.T) {
	col := newEmitCollector()
	r := startRouter(t, col.emit)

	r.AddSubscription(simpleSub("sub-star", "tenant-a", "*.fault.raised"))

	n, err := r.Publish(context.Background(),
		NewEvent("tenant-a", "crane.fault.raised", json.RawMessage(`{}`)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = r.Publish(context.Background(),
		NewEvent("tenant-a", "reefer.fault.raised", json.RawMessage(`{}`)))
	require.NoError(t, err)
	assert.Equal(t, 1, n, "pattern wildcard segment đầu nhận event từ mọi nhánh topic")
	assert.Equal(t, 2, col.count("sub-star"))
}

func TestRouterPublishInvalidEvent(t *testing.T) {
	r := startRouter(t, nil)

	_, err := r.Publish(context.Background(), NewEvent("tenant-a", "", json.RawMessage(`{}`)))
	assert.Error(t, err)

	_, err = r.Publish(context.Background(), NewEvent("tenant-a", "a.b", nil))
	assert.Error(t, err)
}

func TestRouterFiltersApplied(t *testing.T) {
	col := newEmitCollector()
	r := startRouter(t, col.emit)

	sub := simpleSub("sub-filtered", "tenant-a", "vessel.eta.updated")
	sub.Filters = []Filter{{Field: "delayMinutes", Operator: OpGt, Value: 30}}
	r.AddSubscription(sub)

	n, _ := r.Publish(context.Background(),
		NewEvent("tenant-a", "vessel.eta.updated", json.RawMessage(`{"delayMinutes":10}`)))
	assert.Equal(t, 0, n)

	n, _ = r.Publish(context.Background(),
		NewEvent("tenant-a", "vessel.eta.updated", json.RawMessage(`{"delayMinutes":45}`)))
	assert.Equal(t, 1, n)
}

func TestRouterThrottledEventNotCounted(t *testing.T) {
	col := newEmitCollector()
	r := startRouter(t, col.emit)

	sub := simpleSub("sub-throttled", "tenant-a", "crane.position.changed")
	sub.Shaping.Throttle = ThrottleConfig{Enabled: true, MaxPerSecond: 1, Strategy: ThrottleDrop}
	r.AddSubscription(sub)

	e1 := NewEvent("tenant-a", "crane.position.changed", json.RawMessage(`{"x":1}`))
	e2 := NewEvent("tenant-a", "crane.position.changed", json.RawMessage(`{"x":2}`))

	n, _ := r.Publish(context.Background(), e1)
	assert.Equal(t, 1, n)
	n, _ = r.Publish(context.Background(), e2)
	assert.Equal(t, 0, n, "event bị throttle không tính vào số subscriber đã nhận")
}

func TestRouterPauseResume(t *testing.T) {
	col := newEmitCollector()
	r := startRouter(t, col.emit)

	r.AddSubscription(simpleSub("sub-pr", "tenant-a", "gate.truck.arrived"))
	mk := func() *Event {
		return NewEvent("tenant-a", "gate.truck.arrived", json.RawMessage(`{"gate":"G1"}`))
	}

	r.PauseSubscription("sub-pr")
	n, _ := r.Publish(context.Background(), mk())
	assert.Equal(t, 0, n, "subscription pause không nhận event")

	r.ResumeSubscription("sub-pr")
	n, _ = r.Publish(context.Background(), mk())
	assert.Equal(t, 1, n)
}

func TestRouterRemoveSubscription(t *testing.T) {
	col := newEmitCollector()
	r := startRouter(t, col.emit)

	r.AddSubscription(simpleSub("sub-rm", "tenant-a", "yard.container.moved"))
	r.RemoveSubscription("sub-rm")

	_, ok := r.Get("sub-rm")
	assert.False(t, ok)

	n, _ := r.Publish(context.Background(),
		NewEvent("tenant-a", "yard.container.moved", json.RawMessage(`{}`)))
	assert.Equal(t, 0, n)
}

func TestRouterDisconnectCascadeCancelsSubscriptions(t *testing.T) {
	col := newEmitCollector()
	r := startRouter(t, col.emit)

	reg := NewConnectionRegistry()
	reg.OnDisconnect(func(connID string) { r.CancelByConnection(connID) })
	reg.Register("conn-1", "tenant-a", "", "operations", 8)
	reg.Register("conn-2", "tenant-a", "", "operations", 8)

	for _, id := range []string{"sub-c1", "sub-c2", "sub-c3"} {
		sub := simpleSub(id, "tenant-a", "vessel.eta.updated")
		sub.ConnectionID = "conn-1"
		r.AddSubscription(sub)
	}
	other := simpleSub("sub-keep", "tenant-a", "vessel.eta.updated")
	other.ConnectionID = "conn-2"
	r.AddSubscription(other)

	reg.Disconnect("conn-1")

	// Khi Disconnect trả về, cả 3 subscription của connection đã bị hủy
	for _, id := range []string{"sub-c1", "sub-c2", "sub-c3"} {
		_, ok := r.Get(id)
		assert.False(t, ok, "subscription %s phải bị hủy theo connection", id)
	}
	_, ok := r.Get("sub-keep")
	assert.True(t, ok, "subscription của connection khác không bị ảnh hưởng")

	n, _ := r.Publish(context.Background(),
		NewEvent("tenant-a", "vessel.eta.updated", json.RawMessage(`{}`)))
	assert.Equal(t, 1, n)
}

func TestRouterActivitySnapshotAccumulates(t *testing.T) {
	col := newEmitCollector()
	r := startRouter(t, col.emit)

	sub := simpleSub("sub-act", "tenant-a", "vessel.eta.updated")
	sub.Filters = []Filter{{Field: "delayMinutes", Operator: OpGt, Value: 30}}
	r.AddSubscription(sub)

	// 2 event khớp filter, 1 event không
	for _, delay := range []string{`{"delayMinutes":45}`, `{"delayMinutes":50}`, `{"delayMinutes":5}`} {
		_, err := r.Publish(context.Background(),
			NewEvent("tenant-a", "vessel.eta.updated", json.RawMessage(delay)))
		require.NoError(t, err)
	}

	snap := r.ActivitySnapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "sub-act", snap[0].ID)
	assert.Equal(t, int64(2), snap[0].EventsMatched, "chỉ event qua filter mới tính matched")
	assert.Equal(t, int64(2), snap[0].EventsDelivered)
	assert.NotZero(t, snap[0].LastActivityAt)
}

func TestRouterCountByTenant(t *testing.T) {
	r := startRouter(t, nil)

	r.AddSubscription(simpleSub("s1", "tenant-a", "a.b"))
	r.AddSubscription(simpleSub("s2", "tenant-a", "c.d"))
	r.AddSubscription(simpleSub("s3", "tenant-b", "a.b"))

	assert.Equal(t, 2, r.CountByTenant("tenant-a"))
	assert.Equal(t, 1, r.CountByTenant("tenant-b"))
	assert.Equal(t, 0, r.CountByTenant("tenant-c"))
}
