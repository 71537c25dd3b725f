package stream

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// aggGroup buffer sự kiện của MỘT nhóm group-by trong cửa sổ hiện tại
type aggGroup struct {
	key    string
	keyVal map[string]string // giá trị group-by field → hiển thị lại trong aggregate record
	events []*Event          // theo thứ tự đến (cần cho last/first)
}

// aggregationState giữ trạng thái cửa sổ gộp của MỘT subscription.
// Cửa sổ wall-clock: bucket = publishedAt chia theo windowMs.
// Chỉ truy cập từ goroutine shard sở hữu — không cần lock.
type aggregationState struct {
	cfg         AggregationConfig
	bufferSize  int // số event tối đa buffer mỗi nhóm trong một cửa sổ, <=0 là không giới hạn
	windowStart time.Time
	groups      map[string]*aggGroup
	order       []string // thứ tự nhóm xuất hiện, để output ổn định
}

func newAggregationState(cfg AggregationConfig, bufferSize int) *aggregationState {
	return &aggregationState{cfg: cfg, bufferSize: bufferSize, groups: map[string]*aggGroup{}}
}

// window trả về duration cửa sổ
func (a *aggregationState) window() time.Duration {
	return time.Duration(a.cfg.WindowMs) * time.Millisecond
}

// offer thêm event vào cửa sổ hiện tại. Nếu event rơi vào bucket mới,
// cửa sổ cũ được đóng trước và các aggregate record được trả về.
func (a *aggregationState) offer(e *Event, now time.Time) []*Event {
	if !a.cfg.Enabled {
		return []*Event{e}
	}

	var flushed []*Event
	bucket := now.Truncate(a.window())
	if !a.windowStart.IsZero() && bucket.After(a.windowStart) {
		flushed = a.flush()
	}
	if a.windowStart.IsZero() || bucket.After(a.windowStart) {
		a.windowStart = bucket
	}

	key, keyVal := a.groupKey(e)
	g, ok := a.groups[key]
	if !ok {
		g = &aggGroup{key: key, keyVal: keyVal}
		a.groups[key] = g
		a.order = append(a.order, key)
	}
	g.events = append(g.events, e)
	if a.bufferSize > 0 && len(g.events) > a.bufferSize {
		// Buffer nhóm đầy: bỏ event cũ nhất, giữ các event mới
		g.events = g.events[1:]
	}

	return flushed
}

// tick đóng cửa sổ nếu now đã vượt qua ranh giới cửa sổ hiện tại
func (a *aggregationState) tick(now time.Time) []*Event {
	if !a.cfg.Enabled || a.windowStart.IsZero() || len(a.groups) == 0 {
		return nil
	}
	if now.Before(a.windowStart.Add(a.window())) {
		return nil
	}
	out := a.flush()
	a.windowStart = now.Truncate(a.window())
	return out
}

// flush tính aggregate cho từng nhóm và trả về một record mỗi nhóm
func (a *aggregationState) flush() []*Event {
	if len(a.groups) == 0 {
		return nil
	}

	out := make([]*Event, 0, len(a.groups))
	for _, key := range a.order {
		g := a.groups[key]
		if g == nil || len(g.events) == 0 {
			continue
		}
		out = append(out, a.aggregateGroup(g))
	}

	a.groups = map[string]*aggGroup{}
	a.order = nil
	return out
}

// discard bỏ cửa sổ đang mở KHÔNG flush (pause/cancel subscription)
func (a *aggregationState) discard() {
	a.groups = map[string]*aggGroup{}
	a.order = nil
	a.windowStart = time.Time{}
}

// groupKey dựng khóa nhóm từ các group-by field. GroupBy rỗng ⇒ một nhóm toàn cục.
func (a *aggregationState) groupKey(e *Event) (string, map[string]string) {
	if len(a.cfg.GroupBy) == 0 {
		return "_global", nil
	}
	parts := make([]string, 0, len(a.cfg.GroupBy))
	keyVal := make(map[string]string, len(a.cfg.GroupBy))
	for _, f := range a.cfg.GroupBy {
		v, _ := lookupField(e, f)
		parts = append(parts, v.String())
		keyVal[f] = v.String()
	}
	return strings.Join(parts, "\x00"), keyVal
}

// aggregateGroup tính các hàm gộp cấu hình trên buffer của nhóm.
// sum/avg/min/max đếm trên giá trị numeric; count đếm số event có field;
// last/first lấy theo thứ tự đến. Kết quả gắn theo alias.
func (a *aggregationState) aggregateGroup(g *aggGroup) *Event {
	result := make(map[string]interface{}, len(a.cfg.Fields)+len(g.keyVal)+1)
	for f, v := range g.keyVal {
		result[f] = v
	}
	result["eventCount"] = len(g.events)

	for _, af := range a.cfg.Fields {
		result[af.Alias] = computeAgg(g.events, af)
	}

	payload, _ := json.Marshal(result)

	first := g.events[0]
	last := g.events[len(g.events)-1]
	return &Event{
		ID:          last.ID,
		TenantID:    last.TenantID,
		Topic:       last.Topic,
		Payload:     payload,
		Source:      last.Source,
		Metadata:    first.Metadata,
		PublishedAt: last.PublishedAt,
	}
}

func computeAgg(events []*Event, af AggField) interface{} {
	switch af.Op {
	case AggCount:
		n := 0
		for _, e := range events {
			if _, ok := lookupField(e, af.Field); ok {
				n++
			}
		}
		return n
	case AggFirst:
		for _, e := range events {
			if v, ok := lookupField(e, af.Field); ok {
				return v.Value()
			}
		}
		return nil
	case AggLast:
		for i := len(events) - 1; i >= 0; i-- {
			if v, ok := lookupField(events[i], af.Field); ok {
				return v.Value()
			}
		}
		return nil
	}

	// sum/avg/min/max trên giá trị numeric
	nums := make([]float64, 0, len(events))
	for _, e := range events {
		if v, ok := lookupField(e, af.Field); ok && v.Type == gjson.Number {
			nums = append(nums, v.Num)
		}
	}
	if len(nums) == 0 {
		return nil
	}

	switch af.Op {
	case AggSum:
		s := 0.0
		for _, n := range nums {
			s += n
		}
		return s
	case AggAvg:
		s := 0.0
		for _, n := range nums {
			s += n
		}
		return s / float64(len(nums))
	case AggMin:
		sort.Float64s(nums)
		return nums[0]
	case AggMax:
		sort.Float64s(nums)
		return nums[len(nums)-1]
	}
	return nil
}
