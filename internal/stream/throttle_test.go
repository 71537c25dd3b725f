package stream

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func throttleCfg(strategy string, maxPerSecond int) ThrottleConfig {
	return ThrottleConfig{Enabled: true, MaxPerSecond: maxPerSecond, Strategy: strategy}
}

func numberedEvent(i int) *Event {
	return NewEvent("tenant-a", "crane.position.changed", json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i)))
}

func TestThrottleDisabledPassThrough(t *testing.T) {
	ts := newThrottleState(ThrottleConfig{})
	now := time.Now()
	for i := 0; i < 5; i++ {
		e := numberedEvent(i)
		assert.Same(t, e, ts.offer(e, now))
	}
}

func TestThrottleDropStrategy(t *testing.T) {
	// 1/giây ⇒ trong cùng một giây chỉ event đầu được emit, phần còn lại bị bỏ
	ts := newThrottleState(throttleCfg(ThrottleDrop, 1))
	base := time.Unix(1000, 0)

	emitted := 0
	for i := 0; i < 10; i++ {
		if ts.offer(numberedEvent(i), base.Add(time.Duration(i)*50*time.Millisecond)) != nil {
			emitted++
		}
	}
	assert.Equal(t, 1, emitted)

	// Hết interval ⇒ event tiếp theo được emit
	assert.NotNil(t, ts.offer(numberedEvent(10), base.Add(time.Second)))

	// Drop không giữ pending — tick không flush gì
	assert.Nil(t, ts.tick(base.Add(2*time.Second)))
}

func TestThrottleBufferKeepsLatest(t *testing.T) {
	ts := newThrottleState(throttleCfg(ThrottleBuffer, 1))
	base := time.Unix(1000, 0)

	first := numberedEvent(0)
	assert.Same(t, first, ts.offer(first, base))

	// Trong interval: giữ lại, chỉ bản MỚI NHẤT sống sót
	assert.Nil(t, ts.offer(numberedEvent(1), base.Add(100*time.Millisecond)))
	latest := numberedEvent(2)
	assert.Nil(t, ts.offer(latest, base.Add(200*time.Millisecond)))

	// Chưa đến hạn
	assert.Nil(t, ts.tick(base.Add(500*time.Millisecond)))
	// Đến hạn ⇒ flush bản mới nhất
	assert.Same(t, latest, ts.tick(base.Add(time.Second)))
	// Flush xong thì hết pending
	assert.Nil(t, ts.tick(base.Add(2*time.Second)))
}

func TestThrottleDebounceResetsOnEachEvent(t *testing.T) {
	ts := newThrottleState(throttleCfg(ThrottleDebounce, 1))
	base := time.Unix(1000, 0)

	// Event đến liên tục cách nhau 800ms, interval 1s ⇒ timer reset mãi, KHÔNG flush
	var last *Event
	for i := 0; i < 5; i++ {
		last = numberedEvent(i)
		at := base.Add(time.Duration(i) * 800 * time.Millisecond)
		assert.Nil(t, ts.offer(last, at))
		assert.Nil(t, ts.tick(at.Add(500*time.Millisecond)), "chưa im lặng đủ lâu thì không flush")
	}

	// Im lặng đủ 1s sau event cuối ⇒ flush đúng bản cuối
	lastAt := base.Add(4 * 800 * time.Millisecond)
	assert.Same(t, last, ts.tick(lastAt.Add(time.Second)))
}

func TestThrottleResetDiscardsPending(t *testing.T) {
	ts := newThrottleState(throttleCfg(ThrottleDebounce, 1))
	base := time.Unix(1000, 0)

	assert.Nil(t, ts.offer(numberedEvent(0), base))
	ts.reset()
	// Pending đã bị bỏ — không flush kể cả khi đến hạn
	assert.Nil(t, ts.tick(base.Add(5*time.Second)))
}
