package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestPipelinePassThroughWhenAllDisabled(t *testing.T) {
	p := NewPipeline(ResolveShapingConfig(ShapingConfig{}), nil)
	now := time.Now()

	e := weightEvent(12, "crane-01")
	out := p.Offer(e, now)
	require.Len(t, out, 1)
	assert.Same(t, e, out[0])
	assert.Empty(t, p.Tick(now.Add(time.Second)))
}

func TestPipelineThrottleThenAggregate(t *testing.T) {
	cfg := ResolveShapingConfig(ShapingConfig{
		Throttle: ThrottleConfig{Enabled: true, MaxPerSecond: 1, Strategy: ThrottleDrop},
		Aggregation: AggregationConfig{
			Enabled:  true,
			WindowMs: 10_000,
			Fields:   []AggField{{Field: "weight", Op: AggSum, Alias: "total"}},
		},
	})
	p := NewPipeline(cfg, nil)
	base := time.Unix(10_000, 0)

	// 4 event trong cùng 1 giây — throttle drop chỉ cho event đầu vào aggregation
	for i, w := range []float64{1, 10, 100, 1000} {
		out := p.Offer(weightEvent(w, "crane-01"), base.Add(time.Duration(i)*100*time.Millisecond))
		assert.Empty(t, out, "cửa sổ chưa đóng")
	}

	out := p.Tick(base.Add(10 * time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, float64(1), gjson.GetBytes(out[0].Payload, "total").Num,
		"chỉ event sống sót qua throttle được gộp")
}

func TestPipelineAggregateThenTransform(t *testing.T) {
	cfg := ResolveShapingConfig(ShapingConfig{
		Aggregation: AggregationConfig{
			Enabled:  true,
			WindowMs: 5_000,
			Fields:   []AggField{{Field: "weight", Op: AggSum, Alias: "total"}},
		},
		Transforms: []TransformConfig{{
			Type:   TransformMap,
			Params: map[string]interface{}{"set": map[string]interface{}{"shaped": true}},
		}},
	})
	p := NewPipeline(cfg, nil)
	base := time.Unix(10_000, 0)

	p.Offer(weightEvent(3, "crane-01"), base)
	p.Offer(weightEvent(4, "crane-01"), base.Add(time.Second))

	out := p.Tick(base.Add(5 * time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, float64(7), gjson.GetBytes(out[0].Payload, "total").Num)
	assert.True(t, gjson.GetBytes(out[0].Payload, "shaped").Bool(),
		"transform chạy SAU aggregation")
}

func TestPipelineThrottleBufferFlushFeedsAggregation(t *testing.T) {
	cfg := ResolveShapingConfig(ShapingConfig{
		Throttle: ThrottleConfig{Enabled: true, MaxPerSecond: 1, Strategy: ThrottleBuffer},
		Aggregation: AggregationConfig{
			Enabled:  true,
			WindowMs: 10_000,
			Fields:   []AggField{{Field: "weight", Op: AggCount, Alias: "n"}},
		},
	})
	p := NewPipeline(cfg, nil)
	base := time.Unix(10_000, 0)

	p.Offer(weightEvent(1, "crane-01"), base)
	p.Offer(weightEvent(2, "crane-01"), base.Add(100*time.Millisecond)) // giữ ở buffer

	// Tick giữa chừng flush buffer vào cửa sổ, chưa ra output
	assert.Empty(t, p.Tick(base.Add(2*time.Second)))

	out := p.Tick(base.Add(10 * time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, int64(2), gjson.GetBytes(out[0].Payload, "n").Int())
}

func TestPipelineRefreshIntervalGatesEmission(t *testing.T) {
	cfg := ResolveShapingConfig(ShapingConfig{RefreshIntervalMs: 1000})
	p := NewPipeline(cfg, nil)
	base := time.Unix(10_000, 0)

	// Lần emit đầu đi ngay
	out := p.Offer(weightEvent(1, "crane-01"), base)
	require.Len(t, out, 1)

	// Event đến sớm hơn refreshIntervalMs kể từ lần emit trước ⇒ giữ lại
	assert.Empty(t, p.Offer(weightEvent(2, "crane-01"), base.Add(200*time.Millisecond)))
	assert.Empty(t, p.Tick(base.Add(500*time.Millisecond)), "chưa đến hạn thì tick không flush")

	// Đến hạn ⇒ tick flush phần đang giữ
	out = p.Tick(base.Add(time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, float64(2), gjson.GetBytes(out[0].Payload, "weight").Num)
}

func TestPipelineRefreshBufferCapDropsOldest(t *testing.T) {
	cfg := ResolveShapingConfig(ShapingConfig{RefreshIntervalMs: 1000, BufferSize: 2})
	p := NewPipeline(cfg, nil)
	base := time.Unix(10_000, 0)

	out := p.Offer(weightEvent(1, "crane-01"), base)
	require.Len(t, out, 1)

	// 3 event trong cùng interval, buffer 2 ⇒ event cũ nhất bị bỏ
	for i, w := range []float64{2, 3, 4} {
		assert.Empty(t, p.Offer(weightEvent(w, "crane-01"), base.Add(time.Duration(i+1)*100*time.Millisecond)))
	}

	out = p.Tick(base.Add(time.Second))
	require.Len(t, out, 2)
	assert.Equal(t, float64(3), gjson.GetBytes(out[0].Payload, "weight").Num)
	assert.Equal(t, float64(4), gjson.GetBytes(out[1].Payload, "weight").Num)
}

func TestPipelineAggregationBufferCapped(t *testing.T) {
	cfg := ResolveShapingConfig(ShapingConfig{
		BufferSize: 2,
		Aggregation: AggregationConfig{
			Enabled:  true,
			WindowMs: 5_000,
			Fields:   []AggField{{Field: "weight", Op: AggSum, Alias: "total"}},
		},
	})
	p := NewPipeline(cfg, nil)
	base := time.Unix(10_000, 0)

	// 3 event vào cửa sổ, buffer nhóm giữ tối đa 2 ⇒ event cũ nhất (weight=1) bị bỏ
	for i, w := range []float64{1, 10, 100} {
		p.Offer(weightEvent(w, "crane-01"), base.Add(time.Duration(i)*100*time.Millisecond))
	}

	out := p.Tick(base.Add(5 * time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, float64(110), gjson.GetBytes(out[0].Payload, "total").Num)
	assert.Equal(t, int64(2), gjson.GetBytes(out[0].Payload, "eventCount").Int())
}

func TestPipelineResetDiscardsEverything(t *testing.T) {
	cfg := ResolveShapingConfig(ShapingConfig{
		Throttle: ThrottleConfig{Enabled: true, MaxPerSecond: 1, Strategy: ThrottleBuffer},
		Aggregation: AggregationConfig{
			Enabled:  true,
			WindowMs: 5_000,
			Fields:   []AggField{{Field: "weight", Op: AggSum, Alias: "total"}},
		},
	})
	p := NewPipeline(cfg, nil)
	base := time.Unix(10_000, 0)

	p.Offer(weightEvent(1, "crane-01"), base)
	p.Offer(weightEvent(2, "crane-01"), base.Add(100*time.Millisecond))
	p.Reset()

	assert.Empty(t, p.Tick(base.Add(time.Minute)), "pause/cancel bỏ trạng thái chờ, không flush")
}

func TestResolveShapingConfigDefaults(t *testing.T) {
	cfg := ResolveShapingConfig(ShapingConfig{
		Throttle:    ThrottleConfig{Enabled: true, Strategy: "bogus"},
		Aggregation: AggregationConfig{Enabled: true},
	})

	assert.Equal(t, defaultBufferSize, cfg.BufferSize)
	assert.Equal(t, defaultMaxPerSecond, cfg.Throttle.MaxPerSecond)
	assert.Equal(t, ThrottleDrop, cfg.Throttle.Strategy, "strategy lạ rơi về drop")
	assert.False(t, cfg.Aggregation.Enabled, "aggregation bật mà không có field thì tắt")

	cfg = ResolveShapingConfig(ShapingConfig{
		Aggregation: AggregationConfig{Enabled: true, Fields: []AggField{{Field: "x", Op: AggSum, Alias: "x"}}},
	})
	assert.Equal(t, defaultAggWindowMs, cfg.Aggregation.WindowMs)
	assert.True(t, cfg.Aggregation.Enabled)
}
