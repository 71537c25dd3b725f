package stream

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func aggCfg(windowMs int64, fields []AggField, groupBy ...string) AggregationConfig {
	return AggregationConfig{Enabled: true, WindowMs: windowMs, Fields: fields, GroupBy: groupBy}
}

func weightEvent(weight float64, crane string) *Event {
	payload := fmt.Sprintf(`{"weight":%v,"crane":%q}`, weight, crane)
	return NewEvent("tenant-a", "container.lifted", json.RawMessage(payload))
}

func TestAggregationSumAndAvg(t *testing.T) {
	cfg := aggCfg(10_000, []AggField{
		{Field: "weight", Op: AggSum, Alias: "totalWeight"},
		{Field: "weight", Op: AggAvg, Alias: "avgWeight"},
		{Field: "weight", Op: AggCount, Alias: "lifts"},
	})
	st := newAggregationState(cfg, 0)
	base := time.Unix(10_000, 0) // thẳng hàng ranh giới cửa sổ

	for i, w := range []float64{1, 3, 5} {
		out := st.offer(weightEvent(w, "crane-01"), base.Add(time.Duration(i)*time.Second))
		assert.Empty(t, out, "cửa sổ chưa đóng thì không có output")
	}

	// Chưa hết cửa sổ
	assert.Empty(t, st.tick(base.Add(9*time.Second)))

	out := st.tick(base.Add(10 * time.Second))
	require.Len(t, out, 1)

	p := out[0].Payload
	assert.Equal(t, float64(9), gjson.GetBytes(p, "totalWeight").Num)
	assert.Equal(t, float64(3), gjson.GetBytes(p, "avgWeight").Num)
	assert.Equal(t, int64(3), gjson.GetBytes(p, "lifts").Int())
	assert.Equal(t, int64(3), gjson.GetBytes(p, "eventCount").Int())
}

func TestAggregationMinMaxFirstLast(t *testing.T) {
	cfg := aggCfg(5_000, []AggField{
		{Field: "weight", Op: AggMin, Alias: "min"},
		{Field: "weight", Op: AggMax, Alias: "max"},
		{Field: "weight", Op: AggFirst, Alias: "first"},
		{Field: "weight", Op: AggLast, Alias: "last"},
	})
	st := newAggregationState(cfg, 0)
	base := time.Unix(10_000, 0)

	for i, w := range []float64{7, 2, 9, 4} {
		st.offer(weightEvent(w, "crane-01"), base.Add(time.Duration(i)*500*time.Millisecond))
	}
	out := st.tick(base.Add(5 * time.Second))
	require.Len(t, out, 1)

	p := out[0].Payload
	assert.Equal(t, float64(2), gjson.GetBytes(p, "min").Num)
	assert.Equal(t, float64(9), gjson.GetBytes(p, "max").Num)
	assert.Equal(t, float64(7), gjson.GetBytes(p, "first").Num)
	assert.Equal(t, float64(4), gjson.GetBytes(p, "last").Num)
}

func TestAggregationGroupBy(t *testing.T) {
	cfg := aggCfg(5_000, []AggField{{Field: "weight", Op: AggSum, Alias: "total"}}, "crane")
	st := newAggregationState(cfg, 0)
	base := time.Unix(10_000, 0)

	st.offer(weightEvent(10, "crane-01"), base)
	st.offer(weightEvent(20, "crane-02"), base.Add(time.Second))
	st.offer(weightEvent(5, "crane-01"), base.Add(2*time.Second))

	out := st.tick(base.Add(5 * time.Second))
	require.Len(t, out, 2, "một aggregate record cho mỗi nhóm")

	// Thứ tự theo lần xuất hiện đầu tiên của nhóm
	assert.Equal(t, "crane-01", gjson.GetBytes(out[0].Payload, "crane").Str)
	assert.Equal(t, float64(15), gjson.GetBytes(out[0].Payload, "total").Num)
	assert.Equal(t, "crane-02", gjson.GetBytes(out[1].Payload, "crane").Str)
	assert.Equal(t, float64(20), gjson.GetBytes(out[1].Payload, "total").Num)
}

func TestAggregationWindowRollover(t *testing.T) {
	cfg := aggCfg(5_000, []AggField{{Field: "weight", Op: AggSum, Alias: "total"}})
	st := newAggregationState(cfg, 0)
	base := time.Unix(10_000, 0)

	st.offer(weightEvent(1, "crane-01"), base)
	// Event rơi vào cửa sổ sau ⇒ cửa sổ cũ đóng ngay trong offer
	out := st.offer(weightEvent(2, "crane-01"), base.Add(6*time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, float64(1), gjson.GetBytes(out[0].Payload, "total").Num)

	out = st.tick(base.Add(10 * time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, float64(2), gjson.GetBytes(out[0].Payload, "total").Num)
}

func TestAggregationDiscard(t *testing.T) {
	cfg := aggCfg(5_000, []AggField{{Field: "weight", Op: AggSum, Alias: "total"}})
	st := newAggregationState(cfg, 0)
	base := time.Unix(10_000, 0)

	st.offer(weightEvent(1, "crane-01"), base)
	st.discard()
	assert.Empty(t, st.tick(base.Add(time.Minute)), "discard bỏ cửa sổ dở, không flush")
}

func TestAggregationNonNumericIgnored(t *testing.T) {
	cfg := aggCfg(5_000, []AggField{{Field: "crane", Op: AggSum, Alias: "total"}})
	st := newAggregationState(cfg, 0)
	base := time.Unix(10_000, 0)

	st.offer(weightEvent(1, "crane-01"), base)
	out := st.tick(base.Add(5 * time.Second))
	require.Len(t, out, 1)
	assert.Equal(t, gjson.Null, gjson.GetBytes(out[0].Payload, "total").Type)
}
