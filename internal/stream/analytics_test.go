package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsTotalsAndSeries(t *testing.T) {
	a := NewAnalytics()

	a.EventPublished("tenant-a", "vessel.eta.updated")
	a.EventPublished("tenant-b", "crane.status.changed")
	a.EventMatched("tenant-a", "vessel.eta.updated", 3)
	a.EventShaped("tenant-a", "vessel.eta.updated", 2)
	a.Broadcast("tenant-a", 5, 1)
	a.Enqueued("tenant-a", 4)
	a.Dispatched("tenant-a", 2)
	a.DispatchFailed("tenant-a", 1)
	a.Expired("tenant-a", 1)
	a.RouteLatency(2 * time.Millisecond)
	a.RouteLatency(4 * time.Millisecond)

	now := time.Now()
	snap := a.TakeSnapshot(now.Add(-time.Hour), now, GranularityMinute, "")

	assert.Equal(t, int64(2), snap.Totals[MetricPublished])
	assert.Equal(t, int64(3), snap.Totals[MetricMatched])
	assert.Equal(t, int64(2), snap.Totals[MetricShaped])
	assert.Equal(t, int64(5), snap.Totals[MetricBroadcast])
	assert.Equal(t, int64(1), snap.Totals[MetricDropped])
	assert.Equal(t, int64(4), snap.Totals[MetricEnqueued])
	assert.Equal(t, int64(2), snap.Totals[MetricDispatched])
	assert.Equal(t, int64(1), snap.Totals[MetricFailed])
	assert.Equal(t, int64(1), snap.Totals[MetricExpired])

	assert.InDelta(t, 3.0, snap.AvgRouteLatencyMs, 0.01)
	assert.InDelta(t, 4.0, snap.MaxRouteLatencyMs, 0.01)

	require.NotEmpty(t, snap.Series)
	var published int64
	for _, p := range snap.Series {
		published += p.Counts[MetricPublished]
	}
	assert.Equal(t, int64(2), published)
}

func TestAnalyticsSnapshotTenantFilter(t *testing.T) {
	a := NewAnalytics()
	a.EventPublished("tenant-a", "vessel.eta.updated")
	a.EventPublished("tenant-b", "vessel.eta.updated")
	a.EventPublished("tenant-b", "vessel.eta.updated")

	now := time.Now()
	snap := a.TakeSnapshot(now.Add(-time.Minute), now, GranularityMinute, "tenant-b")

	var published int64
	for _, p := range snap.Series {
		published += p.Counts[MetricPublished]
	}
	assert.Equal(t, int64(2), published, "series lọc theo tenant")
	assert.Equal(t, int64(3), snap.Totals[MetricPublished], "totals vẫn là toàn hệ thống")
}

func TestAnalyticsSnapshotRangeExcludesOutside(t *testing.T) {
	a := NewAnalytics()
	a.EventPublished("tenant-a", "vessel.eta.updated")

	// Khoảng thời gian trong quá khứ xa ⇒ series rỗng, totals vẫn đủ
	past := time.Now().Add(-48 * time.Hour)
	snap := a.TakeSnapshot(past, past.Add(time.Hour), GranularityMinute, "")
	assert.Empty(t, snap.Series)
	assert.Equal(t, int64(1), snap.Totals[MetricPublished])
}

func TestAnalyticsGranularityFallback(t *testing.T) {
	a := NewAnalytics()
	snap := a.TakeSnapshot(time.Now().Add(-time.Hour), time.Now(), "bogus", "")
	assert.Equal(t, GranularityMinute, snap.Granularity)

	snap = a.TakeSnapshot(time.Now().Add(-time.Hour), time.Now(), GranularityHour, "")
	assert.Equal(t, GranularityHour, snap.Granularity)
}
