package stream

import "time"

// Pipeline là shaping pipeline của MỘT subscription: throttle → aggregation → transforms.
// Thứ tự cố định; stage tắt thì pass-through. Chỉ được gọi từ goroutine shard
// sở hữu subscription — không cần lock.
type Pipeline struct {
	cfg       ShapingConfig
	throttle  *throttleState
	aggregate *aggregationState
	errFn     func(error) // ghi nhận lỗi transform per-subscription

	// refreshIntervalMs: khoảng cách tối thiểu giữa hai lần emit của cả pipeline.
	// Output đến sớm hơn được giữ trong held và flush ở Tick khi đến hạn.
	refresh  time.Duration
	lastEmit time.Time
	held     []*Event
}

// NewPipeline dựng pipeline từ shaping config ĐÃ resolve default.
// errFn nil được thay bằng no-op.
func NewPipeline(cfg ShapingConfig, errFn func(error)) *Pipeline {
	if errFn == nil {
		errFn = func(error) {}
	}
	return &Pipeline{
		cfg:       cfg,
		throttle:  newThrottleState(cfg.Throttle),
		aggregate: newAggregationState(cfg.Aggregation, cfg.BufferSize),
		errFn:     errFn,
		refresh:   time.Duration(cfg.RefreshIntervalMs) * time.Millisecond,
	}
}

// Offer đưa một event (đã khớp topic + filter) vào pipeline.
// Trả về các shaped event sẵn sàng giao NGAY trong lần gọi này —
// event bị throttle giữ lại hoặc đang gộp trong cửa sổ sẽ ra ở Tick sau.
func (p *Pipeline) Offer(e *Event, now time.Time) []*Event {
	emitted := p.throttle.offer(e, now)
	if emitted == nil {
		return nil
	}

	batch := p.aggregate.offer(emitted, now)
	if p.aggregate.cfg.Enabled && len(batch) == 0 {
		return nil // event đã vào cửa sổ, chờ đóng
	}

	return p.gate(applyTransforms(batch, p.cfg.Transforms, p.errFn), now)
}

// Tick đẩy pipeline theo thời gian: flush throttle pending đến hạn,
// đóng cửa sổ aggregation đã hết hạn. Shard gọi định kỳ theo ticker.
func (p *Pipeline) Tick(now time.Time) []*Event {
	var batch []*Event

	if flushed := p.throttle.tick(now); flushed != nil {
		batch = append(batch, p.aggregate.offer(flushed, now)...)
	}
	batch = append(batch, p.aggregate.tick(now)...)

	if len(batch) > 0 {
		batch = applyTransforms(batch, p.cfg.Transforms, p.errFn)
	}
	// Gate vẫn phải chạy khi batch rỗng để flush held đến hạn
	return p.gate(batch, now)
}

// gate áp refreshIntervalMs: batch đến sớm hơn interval kể từ lần emit
// trước bị giữ lại, flush gộp ở lần gọi tiếp theo đã đến hạn. Held buffer
// giới hạn theo bufferSize, đầy thì bỏ event cũ nhất.
func (p *Pipeline) gate(batch []*Event, now time.Time) []*Event {
	if p.refresh <= 0 {
		if len(batch) == 0 {
			return nil
		}
		return batch
	}

	p.held = append(p.held, batch...)
	if max := p.cfg.BufferSize; max > 0 && len(p.held) > max {
		p.held = p.held[len(p.held)-max:]
	}
	if len(p.held) == 0 {
		return nil
	}
	if !p.lastEmit.IsZero() && now.Sub(p.lastEmit) < p.refresh {
		return nil
	}

	out := p.held
	p.held = nil
	p.lastEmit = now
	return out
}

// Reset xóa mọi trạng thái đang chờ KHÔNG flush — dùng khi subscription
// pause hoặc cancel: dữ liệu buffer/cửa sổ dở bị bỏ, không giao nốt.
func (p *Pipeline) Reset() {
	p.throttle.reset()
	p.aggregate.discard()
	p.held = nil
	p.lastEmit = time.Time{}
}
