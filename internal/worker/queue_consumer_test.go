package worker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	notifmodels "port_stream/internal/api/notification/models"
	"port_stream/internal/stream"
)

func TestQueueConsumerDefaultsClamped(t *testing.T) {
	w := NewQueueConsumerWorker(nil, nil, 0, 0)
	assert.Equal(t, 1*time.Second, w.interval)
	assert.Equal(t, 50, w.batchSize)

	w = NewQueueConsumerWorker(nil, nil, 5*time.Second, 10)
	assert.Equal(t, 5*time.Second, w.interval)
	assert.Equal(t, 10, w.batchSize)
}

func TestToNotificationSeverityFromPayload(t *testing.T) {
	w := NewQueueConsumerWorker(nil, nil, time.Second, 10)

	e := stream.NewEvent("tenant-a", "crane.fault.raised",
		json.RawMessage(`{"severity":"critical","title":"Crane QC-03 fault","message":"Hoist motor overheat"}`))
	e.Metadata.Priority = 3 // payload severity thắng priority

	n := w.toNotification(e, "crane.fault.raised")
	require.NotNil(t, n)
	assert.Equal(t, "tenant-a", n.TenantID)
	assert.Equal(t, "crane.fault.raised", n.Type)
	assert.Equal(t, "critical", n.Severity)
	assert.Equal(t, "Crane QC-03 fault", n.Title)
	assert.Equal(t, "Hoist motor overheat", n.Message)
	assert.Equal(t, notifmodels.StatusPending, n.Status)
	assert.Equal(t, []string{"email", "telegram", "webhook"}, n.Channels)
	assert.False(t, n.ID.IsZero())
	assert.NotZero(t, n.CreatedAt)
}

func TestToNotificationSeverityFromPriority(t *testing.T) {
	w := NewQueueConsumerWorker(nil, nil, time.Second, 10)

	cases := []struct {
		priority int
		severity string
	}{
		{0, "critical"},
		{1, "high"},
		{2, "medium"},
		{3, "low"},
		{7, "info"},
	}
	for _, tc := range cases {
		e := stream.NewEvent("tenant-a", "vessel.eta.updated", json.RawMessage(`{"delayMinutes":40}`))
		e.Metadata.Priority = tc.priority

		n := w.toNotification(e, "vessel.eta.updated")
		assert.Equal(t, tc.severity, n.Severity, "priority %d", tc.priority)
	}
}

func TestToNotificationFallbackTitleAndMessage(t *testing.T) {
	w := NewQueueConsumerWorker(nil, nil, time.Second, 10)

	e := stream.NewEvent("tenant-a", "gate.truck.arrived", json.RawMessage(`{"gate":"G2"}`))
	n := w.toNotification(e, "gate.truck.arrived")

	// Không có title/message trong payload: topic làm title, payload thô làm message
	assert.Equal(t, "gate.truck.arrived", n.Title)
	assert.Equal(t, `{"gate":"G2"}`, n.Message)
}

func TestToNotificationImmediateForHighPriority(t *testing.T) {
	w := NewQueueConsumerWorker(nil, nil, time.Second, 10)

	urgent := stream.NewEvent("tenant-a", "crane.fault.raised", json.RawMessage(`{}`))
	urgent.Metadata.Priority = 1
	assert.True(t, w.toNotification(urgent, "crane.fault.raised").Rules.Immediate)

	routine := stream.NewEvent("tenant-a", "yard.container.moved", json.RawMessage(`{}`))
	routine.Metadata.Priority = 4
	assert.False(t, w.toNotification(routine, "yard.container.moved").Rules.Immediate)
}
