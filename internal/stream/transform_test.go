package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func rawEvent(payload string) *Event {
	return NewEvent("tenant-a", "yard.container.moved", json.RawMessage(payload))
}

func noErr(t *testing.T) func(error) {
	return func(err error) { t.Fatalf("không mong đợi lỗi transform: %v", err) }
}

func TestTransformFilter(t *testing.T) {
	batch := []*Event{
		rawEvent(`{"zone":"north","weight":10}`),
		rawEvent(`{"zone":"south","weight":20}`),
		rawEvent(`{"zone":"north","weight":30}`),
	}
	out := applyTransforms(batch, []TransformConfig{{
		Type:   TransformFilter,
		Params: map[string]interface{}{"field": "zone", "operator": "eq", "value": "north"},
	}}, noErr(t))

	require.Len(t, out, 2)
	for _, e := range out {
		assert.Equal(t, "north", gjson.GetBytes(e.Payload, "zone").Str)
	}
}

func TestTransformMapSetRenamePick(t *testing.T) {
	batch := []*Event{rawEvent(`{"containerId":"MSKU123","weight":24.5,"internal":"x"}`)}
	out := applyTransforms(batch, []TransformConfig{{
		Type: TransformMap,
		Params: map[string]interface{}{
			"set":    map[string]interface{}{"unit": "ton"},
			"rename": map[string]interface{}{"containerId": "container"},
			"pick":   []interface{}{"container", "weight", "unit"},
		},
	}}, noErr(t))

	require.Len(t, out, 1)
	p := out[0].Payload
	assert.Equal(t, "MSKU123", gjson.GetBytes(p, "container").Str)
	assert.Equal(t, 24.5, gjson.GetBytes(p, "weight").Num)
	assert.Equal(t, "ton", gjson.GetBytes(p, "unit").Str)
	assert.False(t, gjson.GetBytes(p, "internal").Exists(), "field không pick phải bị loại")
	assert.False(t, gjson.GetBytes(p, "containerId").Exists(), "field đã rename phải mất tên cũ")
}

func TestTransformMapDoesNotMutateOriginal(t *testing.T) {
	original := rawEvent(`{"weight":10}`)
	out := applyTransforms([]*Event{original}, []TransformConfig{{
		Type:   TransformMap,
		Params: map[string]interface{}{"set": map[string]interface{}{"extra": true}},
	}}, noErr(t))

	require.Len(t, out, 1)
	assert.False(t, gjson.GetBytes(original.Payload, "extra").Exists(), "payload gốc phải bất biến")
	assert.True(t, gjson.GetBytes(out[0].Payload, "extra").Exists())
}

func TestTransformReduce(t *testing.T) {
	batch := []*Event{
		rawEvent(`{"weight":1}`),
		rawEvent(`{"weight":3}`),
		rawEvent(`{"weight":5}`),
	}
	out := applyTransforms(batch, []TransformConfig{{
		Type:   TransformReduce,
		Params: map[string]interface{}{"field": "weight", "op": "sum", "alias": "totalWeight"},
	}}, noErr(t))

	require.Len(t, out, 1)
	assert.Equal(t, float64(9), gjson.GetBytes(out[0].Payload, "totalWeight").Num)
	assert.Equal(t, int64(3), gjson.GetBytes(out[0].Payload, "eventCount").Int())
}

func TestTransformSort(t *testing.T) {
	batch := []*Event{
		rawEvent(`{"weight":30}`),
		rawEvent(`{"weight":10}`),
		rawEvent(`{"weight":20}`),
	}
	out := applyTransforms(batch, []TransformConfig{{
		Type:   TransformSort,
		Params: map[string]interface{}{"field": "weight", "desc": true},
	}}, noErr(t))

	require.Len(t, out, 3)
	weights := make([]float64, 3)
	for i, e := range out {
		weights[i] = gjson.GetBytes(e.Payload, "weight").Num
	}
	assert.Equal(t, []float64{30, 20, 10}, weights)
}

func TestTransformGroup(t *testing.T) {
	batch := []*Event{
		rawEvent(`{"zone":"north","id":1}`),
		rawEvent(`{"zone":"south","id":2}`),
		rawEvent(`{"zone":"north","id":3}`),
	}
	out := applyTransforms(batch, []TransformConfig{{
		Type:   TransformGroup,
		Params: map[string]interface{}{"field": "zone"},
	}}, noErr(t))

	require.Len(t, out, 1)
	p := out[0].Payload
	assert.Equal(t, 2, len(gjson.GetBytes(p, "north").Array()))
	assert.Equal(t, 1, len(gjson.GetBytes(p, "south").Array()))
}

func TestTransformCustom(t *testing.T) {
	RegisterTransform("tag-terminal", func(e *Event, params map[string]interface{}) (*Event, error) {
		doc, _ := json.Marshal(map[string]interface{}{"terminal": params["terminal"]})
		ne := *e
		ne.Payload = doc
		return &ne, nil
	})

	out := applyTransforms([]*Event{rawEvent(`{}`)}, []TransformConfig{{
		Type:       TransformCustom,
		Expression: "tag-terminal",
		Params:     map[string]interface{}{"terminal": "T1"},
	}}, noErr(t))

	require.Len(t, out, 1)
	assert.Equal(t, "T1", gjson.GetBytes(out[0].Payload, "terminal").Str)
}

func TestTransformErrorDropsOnlyFailingEvent(t *testing.T) {
	RegisterTransform("fail-odd", func(e *Event, params map[string]interface{}) (*Event, error) {
		if gjson.GetBytes(e.Payload, "seq").Int()%2 == 1 {
			return nil, errors.New("seq lẻ")
		}
		return e, nil
	})

	batch := make([]*Event, 4)
	for i := range batch {
		batch[i] = rawEvent(fmt.Sprintf(`{"seq":%d}`, i))
	}

	var errCount int
	out := applyTransforms(batch, []TransformConfig{{
		Type:       TransformCustom,
		Expression: "fail-odd",
	}}, func(error) { errCount++ })

	assert.Len(t, out, 2, "chỉ event lỗi bị loại")
	assert.Equal(t, 2, errCount)
}

func TestTransformChainOrder(t *testing.T) {
	batch := []*Event{
		rawEvent(`{"zone":"north","weight":2}`),
		rawEvent(`{"zone":"south","weight":100}`),
		rawEvent(`{"zone":"north","weight":4}`),
	}
	// filter trước, reduce sau — thứ tự khai báo quyết định kết quả
	out := applyTransforms(batch, []TransformConfig{
		{Type: TransformFilter, Params: map[string]interface{}{"field": "zone", "operator": "eq", "value": "north"}},
		{Type: TransformReduce, Params: map[string]interface{}{"field": "weight", "op": "sum", "alias": "total"}},
	}, noErr(t))

	require.Len(t, out, 1)
	assert.Equal(t, float64(6), gjson.GetBytes(out[0].Payload, "total").Num)
}
