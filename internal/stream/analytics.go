package stream

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Tên metric của analytics
const (
	MetricPublished  = "published"
	MetricMatched    = "matched"
	MetricShaped     = "shaped"
	MetricBroadcast  = "broadcast"
	MetricDropped    = "dropped"
	MetricEnqueued   = "enqueued"
	MetricDispatched = "dispatched"
	MetricFailed     = "failed"
	MetricExpired    = "expired"
)

const (
	analyticsBucketSize = time.Minute
	analyticsBuckets    = 24 * 60 // giữ 24 giờ, mỗi bucket 1 phút
)

// analyticsBucket đếm theo một phút, tách theo tenant
type analyticsBucket struct {
	minute   int64 // unix minute
	counts   map[string]int64
	byTenant map[string]map[string]int64
}

// Analytics gom số liệu vận hành của toàn pipeline: tổng lũy kế (atomic,
// hot path không lock) và ring bucket theo phút cho truy vấn theo khoảng
// thời gian. Analytics là best-effort — không được chặn đường phân phối.
type Analytics struct {
	published  atomic.Int64
	matched    atomic.Int64
	shaped     atomic.Int64
	broadcast  atomic.Int64
	dropped    atomic.Int64
	enqueued   atomic.Int64
	dispatched atomic.Int64
	failed     atomic.Int64
	expired    atomic.Int64

	latencyTotalUs atomic.Int64
	latencyCount   atomic.Int64
	latencyMaxUs   atomic.Int64

	mu      sync.Mutex
	ring    [analyticsBuckets]*analyticsBucket
	started time.Time
}

func NewAnalytics() *Analytics {
	return &Analytics{started: time.Now()}
}

// bucket trả về bucket của thời điểm now, tái sử dụng slot ring theo modulo
func (a *Analytics) bucket(now time.Time) *analyticsBucket {
	minute := now.Unix() / 60
	slot := int(minute % analyticsBuckets)
	b := a.ring[slot]
	if b == nil || b.minute != minute {
		b = &analyticsBucket{
			minute:   minute,
			counts:   map[string]int64{},
			byTenant: map[string]map[string]int64{},
		}
		a.ring[slot] = b
	}
	return b
}

// record cộng n vào metric ở bucket hiện tại
func (a *Analytics) record(metric, tenantID string, n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b := a.bucket(time.Now())
	b.counts[metric] += n
	if tenantID != "" {
		if b.byTenant[tenantID] == nil {
			b.byTenant[tenantID] = map[string]int64{}
		}
		b.byTenant[tenantID][metric] += n
	}
}

// EventPublished một event vào router
func (a *Analytics) EventPublished(tenantID, topic string) {
	a.published.Add(1)
	a.record(MetricPublished, tenantID, 1)
}

// EventMatched event khớp n subscription
func (a *Analytics) EventMatched(tenantID, topic string, n int) {
	a.matched.Add(int64(n))
	a.record(MetricMatched, tenantID, int64(n))
}

// EventShaped n shaped event ra khỏi pipeline
func (a *Analytics) EventShaped(tenantID, topic string, n int) {
	a.shaped.Add(int64(n))
	a.record(MetricShaped, tenantID, int64(n))
}

// RouteLatency thời gian một lần Publish đi hết đường match+shape
func (a *Analytics) RouteLatency(d time.Duration) {
	us := d.Microseconds()
	a.latencyTotalUs.Add(us)
	a.latencyCount.Add(1)
	for {
		cur := a.latencyMaxUs.Load()
		if us <= cur || a.latencyMaxUs.CompareAndSwap(cur, us) {
			return
		}
	}
}

// Broadcast kết quả một lần broadcast room: delivered + dropped
func (a *Analytics) Broadcast(tenantID string, delivered, dropped int) {
	a.broadcast.Add(int64(delivered))
	a.dropped.Add(int64(dropped))
	a.record(MetricBroadcast, tenantID, int64(delivered))
	if dropped > 0 {
		a.record(MetricDropped, tenantID, int64(dropped))
	}
}

// Enqueued n event vào priority queue
func (a *Analytics) Enqueued(tenantID string, n int) {
	a.enqueued.Add(int64(n))
	a.record(MetricEnqueued, tenantID, int64(n))
}

// Dispatched n notification giao thành công
func (a *Analytics) Dispatched(tenantID string, n int) {
	a.dispatched.Add(int64(n))
	a.record(MetricDispatched, tenantID, int64(n))
}

// DispatchFailed n notification thất bại sau hết retry
func (a *Analytics) DispatchFailed(tenantID string, n int) {
	a.failed.Add(int64(n))
	a.record(MetricFailed, tenantID, int64(n))
}

// Expired n notification hết hạn trước khi giao
func (a *Analytics) Expired(tenantID string, n int) {
	a.expired.Add(int64(n))
	a.record(MetricExpired, tenantID, int64(n))
}

// SeriesPoint một điểm dữ liệu trong chuỗi thời gian trả về
type SeriesPoint struct {
	Timestamp int64            `json:"timestamp"` // unix milli, đầu bucket
	Counts    map[string]int64 `json:"counts"`
}

// Snapshot ảnh chụp số liệu trả về cho API analytics
type Snapshot struct {
	SinceMs           int64            `json:"sinceMs"`
	UntilMs           int64            `json:"untilMs"`
	Granularity       string           `json:"granularity"`
	Totals            map[string]int64 `json:"totals"`
	AvgRouteLatencyMs float64          `json:"avgRouteLatencyMs"`
	MaxRouteLatencyMs float64          `json:"maxRouteLatencyMs"`
	Series            []SeriesPoint    `json:"series"`
}

// Granularity hợp lệ cho Snapshot
const (
	GranularityMinute = "minute"
	GranularityHour   = "hour"
)

// TakeSnapshot trả về tổng lũy kế + chuỗi thời gian trong [since, until].
// tenantID khác rỗng lọc chuỗi theo tenant (totals vẫn là toàn hệ thống).
// granularity "hour" gộp 60 bucket phút thành một điểm.
func (a *Analytics) TakeSnapshot(since, until time.Time, granularity, tenantID string) Snapshot {
	if granularity != GranularityHour {
		granularity = GranularityMinute
	}

	snap := Snapshot{
		SinceMs:     since.UnixMilli(),
		UntilMs:     until.UnixMilli(),
		Granularity: granularity,
		Totals: map[string]int64{
			MetricPublished:  a.published.Load(),
			MetricMatched:    a.matched.Load(),
			MetricShaped:     a.shaped.Load(),
			MetricBroadcast:  a.broadcast.Load(),
			MetricDropped:    a.dropped.Load(),
			MetricEnqueued:   a.enqueued.Load(),
			MetricDispatched: a.dispatched.Load(),
			MetricFailed:     a.failed.Load(),
			MetricExpired:    a.expired.Load(),
		},
	}
	if n := a.latencyCount.Load(); n > 0 {
		snap.AvgRouteLatencyMs = float64(a.latencyTotalUs.Load()) / float64(n) / 1000
	}
	snap.MaxRouteLatencyMs = float64(a.latencyMaxUs.Load()) / 1000

	fromMin := since.Unix() / 60
	toMin := until.Unix() / 60

	a.mu.Lock()
	points := map[int64]map[string]int64{}
	for _, b := range a.ring {
		if b == nil || b.minute < fromMin || b.minute > toMin {
			continue
		}
		src := b.counts
		if tenantID != "" {
			src = b.byTenant[tenantID]
			if src == nil {
				continue
			}
		}
		key := b.minute
		if granularity == GranularityHour {
			key = b.minute / 60 * 60
		}
		if points[key] == nil {
			points[key] = map[string]int64{}
		}
		for m, v := range src {
			points[key][m] += v
		}
	}
	a.mu.Unlock()

	keys := make([]int64, 0, len(points))
	for k := range points {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		snap.Series = append(snap.Series, SeriesPoint{Timestamp: k * 60 * 1000, Counts: points[k]})
	}
	return snap
}
