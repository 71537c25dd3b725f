package stream

import "time"

// throttleState giữ trạng thái throttle của MỘT subscription.
// Chỉ được truy cập từ goroutine của shard sở hữu subscription — không cần lock.
type throttleState struct {
	cfg       ThrottleConfig
	lastEmit  time.Time
	pending   *Event    // buffer/debounce: event mới nhất đang chờ (ghi đè event cũ)
	debounceT time.Time // debounce: thời điểm được phép flush (reset mỗi lần có event mới)
}

func newThrottleState(cfg ThrottleConfig) *throttleState {
	return &throttleState{cfg: cfg}
}

// offer đưa một event vào throttle. Trả về event được emit ngay (nil nếu bị giữ lại/drop).
//   - drop: event đến trước khi đủ 1/maxPerSecond kể từ lần emit trước ⇒ bỏ.
//   - buffer: giữ event mới nhất, flush ở tick hợp lệ tiếp theo.
//   - debounce: reset timer mỗi lần có event, chỉ flush khi hết interval mà không có event mới.
func (t *throttleState) offer(e *Event, now time.Time) *Event {
	if !t.cfg.Enabled {
		return e
	}

	interval := t.cfg.throttleInterval()

	switch t.cfg.Strategy {
	case ThrottleBuffer:
		if t.lastEmit.IsZero() || now.Sub(t.lastEmit) >= interval {
			t.lastEmit = now
			return e
		}
		t.pending = e // ghi đè pending cũ — chỉ giữ bản mới nhất
		return nil

	case ThrottleDebounce:
		t.pending = e
		t.debounceT = now.Add(interval)
		return nil

	default: // drop
		if t.lastEmit.IsZero() || now.Sub(t.lastEmit) >= interval {
			t.lastEmit = now
			return e
		}
		return nil
	}
}

// tick flush pending event nếu đã đến hạn. Shard gọi định kỳ.
func (t *throttleState) tick(now time.Time) *Event {
	if !t.cfg.Enabled || t.pending == nil {
		return nil
	}

	switch t.cfg.Strategy {
	case ThrottleBuffer:
		if now.Sub(t.lastEmit) >= t.cfg.throttleInterval() {
			e := t.pending
			t.pending = nil
			t.lastEmit = now
			return e
		}
	case ThrottleDebounce:
		if !now.Before(t.debounceT) {
			e := t.pending
			t.pending = nil
			t.lastEmit = now
			return e
		}
	}
	return nil
}

// reset xóa trạng thái chờ (dùng khi pause/cancel — discard, không flush)
func (t *throttleState) reset() {
	t.pending = nil
	t.debounceT = time.Time{}
}
