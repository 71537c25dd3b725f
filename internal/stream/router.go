package stream

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"port_stream/internal/logger"
)

// Trạng thái subscription
const (
	SubStatusActive    = "active"
	SubStatusPaused    = "paused"
	SubStatusCancelled = "cancelled"
)

// Binding nơi shaped event được giao tới
const (
	BindingRoom  = "room"
	BindingQueue = "queue"
	BindingBoth  = "both"
)

// Subscription là bản ghi runtime của một đăng ký nhận sự kiện.
// Bản persist nằm ở collection stream_subscriptions; router chỉ giữ bản này.
// Mutable field (status, lastActivityAt, lastError) chỉ được goroutine shard sửa.
type Subscription struct {
	ID           string
	TenantID     string
	OwnerID      string
	ConnectionID string // rỗng nếu không gắn connection (binding queue thuần)
	Topic        string // topic pattern, hỗ trợ "*" theo segment
	Status       string
	Filters      []Filter
	Shaping      ShapingConfig // ĐÃ resolve default
	Binding      string
	Room         string // binding room/both: room nhận broadcast
	QueueTopic   string // binding queue/both: topic của priority queue

	CreatedAt      int64
	LastActivityAt int64 // unix milli, truy cập qua atomic
	LastError      string

	// Số liệu tích lũy — shard goroutine tăng qua atomic, worker đọc để persist
	EventsMatched   int64
	EventsDelivered int64

	pipeline *Pipeline
}

// EmitFunc nhận shaped event của một subscription để giao đi (room/queue).
// Được gọi từ goroutine shard — phải non-blocking.
type EmitFunc func(sub *Subscription, shaped []*Event)

// RouterStats là hook đếm của analytics — router gọi tại các điểm đo
type RouterStats interface {
	EventPublished(tenantID, topic string)
	EventMatched(tenantID, topic string, n int)
	EventShaped(tenantID, topic string, n int)
	RouteLatency(d time.Duration)
}

const (
	defaultNumShards    = 8
	defaultTickInterval = 50 * time.Millisecond
	shardCmdBuffer      = 256
)

// Router phân phối event đã publish tới các subscription khớp.
// Subscription được chia shard theo segment đầu của topic pattern; pattern
// có segment đầu là "*" nằm trong một shard wildcard riêng. Mỗi event đi qua
// shard hash của nó VÀ shard wildcard, nên mỗi pipeline chỉ thuộc đúng một
// goroutine shard — không lock trên hot path, không giao trùng.
type Router struct {
	shards []*shard
	emit   EmitFunc
	stats  RouterStats

	mu    sync.RWMutex
	index map[string]*Subscription // subID → bản ghi runtime (đọc cho control plane)

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type shard struct {
	id   int
	cmds chan func(now time.Time)
	subs map[string]*Subscription
	tick time.Duration
}

// NewRouter tạo router với numShards shard và queueSize buffer lệnh
// mỗi shard (<=0 dùng default)
func NewRouter(numShards, queueSize int, emit EmitFunc) *Router {
	if numShards <= 0 {
		numShards = defaultNumShards
	}
	if queueSize <= 0 {
		queueSize = shardCmdBuffer
	}
	if emit == nil {
		emit = func(*Subscription, []*Event) {}
	}
	r := &Router{
		emit:  emit,
		index: map[string]*Subscription{},
		// shard cuối là shard wildcard cho pattern có segment đầu "*"
		shards: make([]*shard, numShards+1),
	}
	for i := range r.shards {
		r.shards[i] = &shard{
			id:   i,
			cmds: make(chan func(now time.Time), queueSize),
			subs: map[string]*Subscription{},
			tick: defaultTickInterval,
		}
	}
	return r
}

// SetStats gắn hook analytics. Gọi khi init, trước Start.
func (r *Router) SetStats(stats RouterStats) {
	r.stats = stats
}

// Start chạy goroutine cho từng shard. Dừng bằng Stop.
func (r *Router) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	for _, s := range r.shards {
		r.wg.Add(1)
		go r.runShard(ctx, s)
	}
	logger.GetAppLogger().WithFields(map[string]interface{}{
		"shards": len(r.shards),
	}).Info("📡 [ROUTER] Event router đã khởi động")
}

// Stop dừng mọi shard và chờ thoát
func (r *Router) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	logger.GetAppLogger().Info("📡 [ROUTER] Event router đã dừng")
}

// runShard là vòng lặp chính của một shard: lệnh control plane + publish
// đến qua cmds, ticker đẩy pipeline theo thời gian. Recover để một
// subscription lỗi không kéo sập shard.
func (r *Router) runShard(ctx context.Context, s *shard) {
	defer r.wg.Done()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.cmds:
			r.safeRun(s, fn, time.Now())
		case now := <-ticker.C:
			r.safeRun(s, func(now time.Time) { r.tickShard(s, now) }, now)
		}
	}
}

func (r *Router) safeRun(s *shard, fn func(now time.Time), now time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.GetErrorLogger().WithFields(map[string]interface{}{
				"shard": s.id,
				"panic": rec,
			}).Error("📡 [ROUTER] Panic trong shard, đã recover")
		}
	}()
	fn(now)
}

// tickShard đẩy pipeline của mọi subscription active theo thời gian
func (r *Router) tickShard(s *shard, now time.Time) {
	for _, sub := range s.subs {
		if sub.Status != SubStatusActive {
			continue
		}
		shaped := sub.pipeline.Tick(now)
		if len(shaped) > 0 {
			r.deliver(sub, shaped, now)
		}
	}
}

// Publish đưa event vào router. Trả về số subscription đã nhận shaped event
// NGAY trong lần gọi này (event đang bị buffer/gộp không tính — chúng sẽ
// được giao ở tick sau). Chỉ fail khi event sai cấu trúc.
func (r *Router) Publish(ctx context.Context, e *Event) (int, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	start := time.Now()
	if r.stats != nil {
		r.stats.EventPublished(e.TenantID, e.Topic)
	}

	targets := []*shard{r.shardFor(e.Topic), r.wildcardShard()}
	reply := make(chan int, len(targets))
	for _, s := range targets {
		s := s
		select {
		case s.cmds <- func(now time.Time) { reply <- r.routeEvent(s, e, now) }:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	total := 0
	for range targets {
		select {
		case n := <-reply:
			total += n
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if r.stats != nil {
		r.stats.RouteLatency(time.Since(start))
	}
	return total, nil
}

// routeEvent chạy trong goroutine shard: match topic + filter từng subscription,
// đưa qua pipeline, giao shaped event. Lỗi một subscription không chặn các
// subscription còn lại.
func (r *Router) routeEvent(s *shard, e *Event, now time.Time) int {
	matched, notified := 0, 0
	for _, sub := range s.subs {
		if sub.Status != SubStatusActive || sub.TenantID != e.TenantID {
			continue
		}
		if !TopicMatches(sub.Topic, e.Topic) {
			continue
		}
		if !r.safeMatch(sub, e) {
			continue
		}
		matched++
		atomic.StoreInt64(&sub.LastActivityAt, now.UnixMilli())
		atomic.AddInt64(&sub.EventsMatched, 1)

		shaped := sub.pipeline.Offer(e, now)
		if len(shaped) > 0 {
			r.deliver(sub, shaped, now)
			atomic.AddInt64(&sub.EventsDelivered, int64(len(shaped)))
			notified++
		}
	}
	if r.stats != nil && matched > 0 {
		r.stats.EventMatched(e.TenantID, e.Topic, matched)
	}
	return notified
}

// safeMatch đánh giá filter với recover — filter hỏng chỉ loại subscription đó
func (r *Router) safeMatch(sub *Subscription, e *Event) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			sub.LastError = fmt.Sprintf("filter panic: %v", rec)
			ok = false
		}
	}()
	return Matches(e, sub.Filters)
}

// deliver giao shaped event qua emit callback, ghi nhận analytics
func (r *Router) deliver(sub *Subscription, shaped []*Event, now time.Time) {
	if r.stats != nil {
		r.stats.EventShaped(sub.TenantID, sub.Topic, len(shaped))
	}
	r.emit(sub, shaped)
}

// shardFor chọn shard theo segment đầu của topic (FNV-1a, trừ shard wildcard)
func (r *Router) shardFor(topic string) *shard {
	seg := topic
	if i := strings.IndexByte(topic, '.'); i >= 0 {
		seg = topic[:i]
	}
	h := fnv.New32a()
	h.Write([]byte(seg))
	return r.shards[int(h.Sum32())%(len(r.shards)-1)]
}

func (r *Router) wildcardShard() *shard {
	return r.shards[len(r.shards)-1]
}

// homeShard shard sở hữu một pattern: segment đầu "*" ⇒ shard wildcard
func (r *Router) homeShard(pattern string) *shard {
	seg := pattern
	if i := strings.IndexByte(pattern, '.'); i >= 0 {
		seg = pattern[:i]
	}
	if seg == "*" {
		return r.wildcardShard()
	}
	return r.shardFor(pattern)
}

// AddSubscription đăng ký subscription vào router. Shaping được resolve
// default tại đây — control plane không cần làm trước.
// Pattern đăng ký nhiều shard dùng CHUNG một bản ghi + pipeline; an toàn vì
// mỗi event chỉ đi qua đúng một shard theo segment đầu cụ thể của topic.
func (r *Router) AddSubscription(sub *Subscription) {
	sub.Shaping = ResolveShapingConfig(sub.Shaping)
	sub.pipeline = NewPipeline(sub.Shaping, func(err error) {
		sub.LastError = err.Error()
		logger.GetAppLogger().WithFields(map[string]interface{}{
			"subscriptionId": sub.ID,
			"tenantId":       sub.TenantID,
		}).WithError(err).Warn("📡 [ROUTER] Lỗi transform trong subscription")
	})
	if sub.Status == "" {
		sub.Status = SubStatusActive
	}
	if sub.CreatedAt == 0 {
		sub.CreatedAt = time.Now().UnixMilli()
	}

	r.mu.Lock()
	r.index[sub.ID] = sub
	r.mu.Unlock()

	s := r.homeShard(sub.Topic)
	s.cmds <- func(now time.Time) { s.subs[sub.ID] = sub }
	logger.GetAppLogger().WithFields(map[string]interface{}{
		"subscriptionId": sub.ID,
		"tenantId":       sub.TenantID,
		"topic":          sub.Topic,
		"binding":        sub.Binding,
	}).Info("📡 [ROUTER] Đăng ký subscription")
}

// RemoveSubscription hủy subscription: trạng thái chờ trong pipeline bị bỏ,
// KHÔNG flush nốt.
func (r *Router) RemoveSubscription(id string) {
	r.mu.Lock()
	sub, ok := r.index[id]
	if ok {
		delete(r.index, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	s := r.homeShard(sub.Topic)
	s.cmds <- func(now time.Time) {
		if cur, ok := s.subs[id]; ok {
			cur.Status = SubStatusCancelled
			cur.pipeline.Reset()
			delete(s.subs, id)
		}
	}
}

// PauseSubscription tạm dừng: không nhận event mới, trạng thái chờ bị bỏ
func (r *Router) PauseSubscription(id string) {
	r.withSub(id, func(sub *Subscription) {
		sub.Status = SubStatusPaused
		sub.pipeline.Reset()
	})
}

// ResumeSubscription kích hoạt lại subscription đã pause
func (r *Router) ResumeSubscription(id string) {
	r.withSub(id, func(sub *Subscription) {
		if sub.Status == SubStatusPaused {
			sub.Status = SubStatusActive
		}
	})
}

// withSub chạy fn trên subscription trong goroutine shard sở hữu
func (r *Router) withSub(id string, fn func(sub *Subscription)) {
	r.mu.RLock()
	sub, ok := r.index[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	s := r.homeShard(sub.Topic)
	s.cmds <- func(now time.Time) {
		if cur, ok := s.subs[id]; ok {
			fn(cur)
		}
	}
}

// Get trả về bản ghi runtime của subscription (đọc cho control plane)
func (r *Router) Get(id string) (*Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.index[id]
	return sub, ok
}

// CancelByConnection hủy mọi subscription thuộc một connection —
// cascade gọi từ ConnectionRegistry.Disconnect. Trả về số subscription đã hủy.
func (r *Router) CancelByConnection(connID string) int {
	r.mu.RLock()
	ids := []string{}
	for id, sub := range r.index {
		if sub.ConnectionID == connID {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.RemoveSubscription(id)
	}
	if len(ids) > 0 {
		logger.GetAppLogger().WithFields(map[string]interface{}{
			"connectionId": connID,
			"cancelled":    len(ids),
		}).Info("📡 [ROUTER] Hủy subscription theo connection đóng")
	}
	return len(ids)
}

// SubscriptionActivity bản sao số liệu tích lũy của một subscription runtime
type SubscriptionActivity struct {
	ID              string
	EventsMatched   int64
	EventsDelivered int64
	LastActivityAt  int64
}

// ActivitySnapshot sao chép số liệu tích lũy của mọi subscription đang đăng ký.
// Worker dùng để persist metrics định kỳ.
func (r *Router) ActivitySnapshot() []SubscriptionActivity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SubscriptionActivity, 0, len(r.index))
	for _, sub := range r.index {
		out = append(out, SubscriptionActivity{
			ID:              sub.ID,
			EventsMatched:   atomic.LoadInt64(&sub.EventsMatched),
			EventsDelivered: atomic.LoadInt64(&sub.EventsDelivered),
			LastActivityAt:  atomic.LoadInt64(&sub.LastActivityAt),
		})
	}
	return out
}

// CountByTenant số subscription đang đăng ký của một tenant
func (r *Router) CountByTenant(tenantID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sub := range r.index {
		if sub.TenantID == tenantID {
			n++
		}
	}
	return n
}
