package stream

import (
	"strings"
	"sync"
	"time"

	"port_stream/internal/common"
	"port_stream/internal/logger"
)

// QueueConfig cấu hình một priority queue gắn với một topic pattern.
// Một queue cho mỗi (tenantId, topic) — cấu hình lưu ở collection stream_queues.
type QueueConfig struct {
	TenantID      string   `json:"tenantId" bson:"tenantId"`
	Topic         string   `json:"topic" bson:"topic"`
	MaxSize       int      `json:"maxSize" bson:"maxSize" validate:"omitempty,min=1"`
	TTLMs         int64    `json:"ttlMs" bson:"ttlMs" validate:"omitempty,min=0"`
	DedupEnabled  bool     `json:"dedupEnabled" bson:"dedupEnabled"`
	DedupFields   []string `json:"dedupFields" bson:"dedupFields"`
	DedupWindowMs int64    `json:"dedupWindowMs" bson:"dedupWindowMs" validate:"omitempty,min=0"`
}

const (
	defaultQueueMaxSize  = 1000
	defaultQueueTTLMs    = int64(5 * 60 * 1000)
	defaultDedupWindowMs = int64(60 * 1000)
	maxPriorityLevels    = 10 // priority 0..9, 0 cao nhất
)

// ResolveQueueConfig điền default cho queue config — điểm duy nhất, như shaping
func ResolveQueueConfig(cfg QueueConfig) QueueConfig {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultQueueMaxSize
	}
	if cfg.TTLMs <= 0 {
		cfg.TTLMs = defaultQueueTTLMs
	}
	if cfg.DedupEnabled && cfg.DedupWindowMs <= 0 {
		cfg.DedupWindowMs = defaultDedupWindowMs
	}
	if cfg.DedupEnabled && len(cfg.DedupFields) == 0 {
		cfg.DedupEnabled = false
	}
	return cfg
}

// queueEntry một mục trong queue
type queueEntry struct {
	event      *Event
	priority   int
	enqueuedAt time.Time
	expiresAt  time.Time
	dedupKey   string
}

// PriorityQueue là hàng đợi ưu tiên có dedup và TTL cho một topic.
// Mỗi mức ưu tiên là một FIFO riêng; dequeue lấy từ mức cao nhất (0) trước.
// Entry hết TTL được purge lazy tại thời điểm dequeue.
type PriorityQueue struct {
	mu     sync.Mutex
	cfg    QueueConfig
	levels [maxPriorityLevels][]*queueEntry
	size   int
	dedup  map[string]time.Time // dedupKey → thời điểm enqueue gần nhất
}

// NewPriorityQueue tạo queue từ config đã resolve default
func NewPriorityQueue(cfg QueueConfig) *PriorityQueue {
	return &PriorityQueue{
		cfg:   cfg,
		dedup: map[string]time.Time{},
	}
}

// Enqueue đưa event vào queue theo priority của metadata.
//   - Trùng dedup key trong dedup window ⇒ bỏ qua im lặng (trả về false, nil).
//   - Queue đầy: event mới có priority cao hơn HOẶC BẰNG entry thấp nhất
//     ⇒ evict entry CŨ NHẤT của mức THẤP NHẤT; ngược lại từ chối.
func (q *PriorityQueue) Enqueue(e *Event, now time.Time) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	prio := clampPriority(e.Metadata.Priority)

	var key string
	if q.cfg.DedupEnabled {
		key = q.dedupKey(e)
		if last, ok := q.dedup[key]; ok && now.Sub(last) < time.Duration(q.cfg.DedupWindowMs)*time.Millisecond {
			return false, nil
		}
	}

	if q.size >= q.cfg.MaxSize {
		lowest := q.lowestOccupiedLevel()
		if lowest < 0 || prio > lowest {
			// Mức của event mới thấp hơn mọi entry hiện có ⇒ từ chối
			logger.GetAppLogger().WithFields(map[string]interface{}{
				"topic":    q.cfg.Topic,
				"tenantId": q.cfg.TenantID,
				"priority": prio,
				"size":     q.size,
			}).Warn("📦 [QUEUE] Queue đầy, từ chối event priority thấp")
			return false, common.ErrQueueRejected
		}
		q.evictOldestLowest(lowest)
	}

	entry := &queueEntry{
		event:      e,
		priority:   prio,
		enqueuedAt: now,
		expiresAt:  now.Add(time.Duration(q.cfg.TTLMs) * time.Millisecond),
	}
	if q.cfg.DedupEnabled {
		// Chỉ ghi dedup window khi event thật sự được nhận vào queue.
		// Event bị từ chối vì đầy không được chặn lần enqueue lại sau đó.
		entry.dedupKey = key
		q.dedup[key] = now
	}
	q.levels[prio] = append(q.levels[prio], entry)
	q.size++
	return true, nil
}

// Dequeue lấy tối đa limit event theo thứ tự ưu tiên, FIFO trong từng mức.
// Entry hết TTL gặp trên đường đi bị purge, không trả về.
func (q *PriorityQueue) Dequeue(limit int, now time.Time) []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Event, 0, limit)
	for level := 0; level < maxPriorityLevels && len(out) < limit; level++ {
		entries := q.levels[level]
		i := 0
		for ; i < len(entries) && len(out) < limit; i++ {
			entry := entries[i]
			q.size--
			if now.After(entry.expiresAt) {
				continue // hết TTL — purge lazy
			}
			out = append(out, entry.event)
		}
		q.levels[level] = entries[i:]
	}
	return out
}

// Len số entry hiện có (kể cả entry đã hết TTL chưa purge)
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Purge quét và loại entry hết TTL cùng dedup key cũ. Worker gọi định kỳ.
func (q *PriorityQueue) Purge(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for level := range q.levels {
		kept := q.levels[level][:0]
		for _, entry := range q.levels[level] {
			if now.After(entry.expiresAt) {
				removed++
				q.size--
				continue
			}
			kept = append(kept, entry)
		}
		q.levels[level] = kept
	}

	window := time.Duration(q.cfg.DedupWindowMs) * time.Millisecond
	for key, last := range q.dedup {
		if now.Sub(last) >= window {
			delete(q.dedup, key)
		}
	}
	return removed
}

// dedupKey nối giá trị các dedup field theo thứ tự cấu hình
func (q *PriorityQueue) dedupKey(e *Event) string {
	parts := make([]string, 0, len(q.cfg.DedupFields))
	for _, f := range q.cfg.DedupFields {
		v, _ := lookupField(e, f)
		parts = append(parts, v.String())
	}
	return strings.Join(parts, "\x00")
}

// lowestOccupiedLevel mức ưu tiên THẤP nhất (số lớn nhất) còn entry; -1 nếu rỗng
func (q *PriorityQueue) lowestOccupiedLevel() int {
	for level := maxPriorityLevels - 1; level >= 0; level-- {
		if len(q.levels[level]) > 0 {
			return level
		}
	}
	return -1
}

// evictOldestLowest bỏ entry cũ nhất của mức thấp nhất để nhường chỗ
func (q *PriorityQueue) evictOldestLowest(level int) {
	entries := q.levels[level]
	evicted := entries[0]
	q.levels[level] = entries[1:]
	q.size--
	logger.GetAppLogger().WithFields(map[string]interface{}{
		"topic":        q.cfg.Topic,
		"tenantId":     q.cfg.TenantID,
		"evictedId":    evicted.event.ID,
		"evictedLevel": level,
	}).Debug("📦 [QUEUE] Evict entry cũ nhất mức thấp nhất do queue đầy")
}

func clampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p >= maxPriorityLevels {
		return maxPriorityLevels - 1
	}
	return p
}

// QueueManager quản lý các priority queue theo khóa (tenantId, topic).
// Queue được tạo lười từ config khi event đầu tiên tới; cập nhật config
// thay queue mới (entry cũ bỏ).
type QueueManager struct {
	mu     sync.RWMutex
	queues map[string]*PriorityQueue

	// Default server-wide cho config không set MaxSize/TTLMs,
	// ưu tiên trước default cứng của ResolveQueueConfig. 0 = không dùng.
	defaultMaxSize int
	defaultTTLMs   int64
}

func NewQueueManager() *QueueManager {
	return &QueueManager{queues: map[string]*PriorityQueue{}}
}

// SetDefaults đặt default server-wide cho MaxSize và TTL. Gọi khi init.
func (m *QueueManager) SetDefaults(maxSize int, ttlMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultMaxSize = maxSize
	m.defaultTTLMs = ttlMs
}

// applyDefaults điền default server-wide vào field chưa set của config
func (m *QueueManager) applyDefaults(cfg QueueConfig) QueueConfig {
	if cfg.MaxSize <= 0 && m.defaultMaxSize > 0 {
		cfg.MaxSize = m.defaultMaxSize
	}
	if cfg.TTLMs <= 0 && m.defaultTTLMs > 0 {
		cfg.TTLMs = m.defaultTTLMs
	}
	return cfg
}

func queueKey(tenantID, topic string) string {
	return tenantID + "\x00" + topic
}

// Get trả về queue cho (tenantId, topic), tạo mới với cfg nếu chưa có
func (m *QueueManager) Get(cfg QueueConfig) *PriorityQueue {
	key := queueKey(cfg.TenantID, cfg.Topic)

	m.mu.RLock()
	q, ok := m.queues[key]
	m.mu.RUnlock()
	if ok {
		return q
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[key]; ok {
		return q
	}
	q = NewPriorityQueue(ResolveQueueConfig(m.applyDefaults(cfg)))
	m.queues[key] = q
	return q
}

// Lookup trả về queue nếu đã tồn tại
func (m *QueueManager) Lookup(tenantID, topic string) (*PriorityQueue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[queueKey(tenantID, topic)]
	return q, ok
}

// Replace thay queue bằng config mới (admin cập nhật stream_queues)
func (m *QueueManager) Replace(cfg QueueConfig) *PriorityQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := NewPriorityQueue(ResolveQueueConfig(m.applyDefaults(cfg)))
	m.queues[queueKey(cfg.TenantID, cfg.Topic)] = q
	return q
}

// Remove gỡ queue (admin xóa config)
func (m *QueueManager) Remove(tenantID, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, queueKey(tenantID, topic))
}

// All snapshot danh sách queue hiện có (worker drain dùng)
func (m *QueueManager) All() []*PriorityQueue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*PriorityQueue, 0, len(m.queues))
	for _, q := range m.queues {
		out = append(out, q)
	}
	return out
}

// Config trả về config của queue (worker cần topic/tenant khi drain)
func (q *PriorityQueue) Config() QueueConfig {
	return q.cfg
}
