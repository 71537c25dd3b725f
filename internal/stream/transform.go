package stream

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// CustomTransformFunc là extension point cho transform type "custom".
// Collaborator đăng ký theo tên (expression của TransformConfig); pipeline chỉ
// đảm bảo áp dụng tuần tự theo thứ tự khai báo.
type CustomTransformFunc func(e *Event, params map[string]interface{}) (*Event, error)

var (
	customTransforms   = map[string]CustomTransformFunc{}
	customTransformsMu sync.RWMutex
)

// RegisterTransform đăng ký custom transform theo tên. Gọi khi init.
func RegisterTransform(name string, fn CustomTransformFunc) {
	customTransformsMu.Lock()
	defer customTransformsMu.Unlock()
	customTransforms[name] = fn
}

func getCustomTransform(name string) (CustomTransformFunc, bool) {
	customTransformsMu.RLock()
	defer customTransformsMu.RUnlock()
	fn, ok := customTransforms[name]
	return fn, ok
}

// applyTransforms áp dụng chuỗi transform theo thứ tự khai báo lên một batch event.
// filter loại event không thỏa điều kiện; map/reduce/sort/group reshape event hoặc batch;
// custom qua hàm đã đăng ký. Transform lỗi chỉ loại event đó (ghi nhận per-subscription
// qua errFn), không dừng pipeline.
func applyTransforms(batch []*Event, transforms []TransformConfig, errFn func(error)) []*Event {
	for _, t := range transforms {
		if len(batch) == 0 {
			return batch
		}
		switch t.Type {
		case TransformFilter:
			batch = transformFilter(batch, t)
		case TransformMap:
			batch = transformMap(batch, t, errFn)
		case TransformReduce:
			batch = transformReduce(batch, t, errFn)
		case TransformSort:
			batch = transformSort(batch, t)
		case TransformGroup:
			batch = transformGroup(batch, t, errFn)
		case TransformCustom:
			batch = transformCustom(batch, t, errFn)
		}
	}
	return batch
}

// transformFilter giữ lại event thỏa điều kiện trong params {field, operator, value}
func transformFilter(batch []*Event, t TransformConfig) []*Event {
	f := filterFromParams(t.Params)
	if f == nil {
		return batch
	}
	out := batch[:0]
	for _, e := range batch {
		if evalFilter(e, *f) {
			out = append(out, e)
		}
	}
	return out
}

// filterFromParams dựng Filter từ params của transform filter
func filterFromParams(params map[string]interface{}) *Filter {
	if params == nil {
		return nil
	}
	field, _ := params["field"].(string)
	op, _ := params["operator"].(string)
	if field == "" || op == "" {
		return nil
	}
	return &Filter{Field: field, Operator: op, Value: params["value"]}
}

// transformMap reshape payload từng event: set (ghi giá trị), rename (đổi tên field),
// pick (chỉ giữ các field liệt kê). Thao tác bằng sjson/gjson trên payload JSON.
func transformMap(batch []*Event, t TransformConfig, errFn func(error)) []*Event {
	out := batch[:0]
	for _, e := range batch {
		mapped, err := mapPayload(e.Payload, t.Params)
		if err != nil {
			errFn(fmt.Errorf("transform map: %w", err))
			continue // lỗi chỉ loại event này
		}
		ne := *e
		ne.Payload = mapped
		out = append(out, &ne)
	}
	return out
}

func mapPayload(payload json.RawMessage, params map[string]interface{}) (json.RawMessage, error) {
	doc := string(payload)

	if set, ok := params["set"].(map[string]interface{}); ok {
		for path, value := range set {
			next, err := sjson.Set(doc, path, value)
			if err != nil {
				return nil, err
			}
			doc = next
		}
	}

	if rename, ok := params["rename"].(map[string]interface{}); ok {
		for from, toRaw := range rename {
			to, ok := toRaw.(string)
			if !ok {
				continue
			}
			v := gjson.Get(doc, from)
			if !v.Exists() {
				continue
			}
			next, err := sjson.Set(doc, to, v.Value())
			if err != nil {
				return nil, err
			}
			if next, err = sjson.Delete(next, from); err != nil {
				return nil, err
			}
			doc = next
		}
	}

	if pickRaw, ok := params["pick"].([]interface{}); ok && len(pickRaw) > 0 {
		picked := "{}"
		for _, pRaw := range pickRaw {
			p, ok := pRaw.(string)
			if !ok {
				continue
			}
			v := gjson.Get(doc, p)
			if !v.Exists() {
				continue
			}
			next, err := sjson.Set(picked, p, v.Value())
			if err != nil {
				return nil, err
			}
			picked = next
		}
		doc = picked
	}

	return json.RawMessage(doc), nil
}

// transformReduce gộp cả batch thành MỘT event bằng một phép gộp trên một field
// (params: {field, op, alias}) — dùng sau aggregation hoặc trên batch map/filter.
func transformReduce(batch []*Event, t TransformConfig, errFn func(error)) []*Event {
	field, _ := t.Params["field"].(string)
	op, _ := t.Params["op"].(string)
	alias, _ := t.Params["alias"].(string)
	if field == "" || op == "" {
		return batch
	}
	if alias == "" {
		alias = field
	}

	value := computeAgg(batch, AggField{Field: field, Op: op, Alias: alias})
	payload, err := json.Marshal(map[string]interface{}{alias: value, "eventCount": len(batch)})
	if err != nil {
		errFn(fmt.Errorf("transform reduce: %w", err))
		return batch
	}

	last := batch[len(batch)-1]
	ne := *last
	ne.Payload = payload
	return []*Event{&ne}
}

// transformSort sắp xếp batch theo một field payload (params: {field, desc})
func transformSort(batch []*Event, t TransformConfig) []*Event {
	field, _ := t.Params["field"].(string)
	if field == "" {
		return batch
	}
	desc, _ := t.Params["desc"].(bool)

	sort.SliceStable(batch, func(i, j int) bool {
		vi, _ := lookupField(batch[i], field)
		vj, _ := lookupField(batch[j], field)
		var less bool
		if vi.Type == gjson.Number && vj.Type == gjson.Number {
			less = vi.Num < vj.Num
		} else {
			less = vi.String() < vj.String()
		}
		if desc {
			return !less
		}
		return less
	})
	return batch
}

// transformGroup gộp batch thành MỘT event có payload {groupValue: [payload...]}
// theo một field (params: {field})
func transformGroup(batch []*Event, t TransformConfig, errFn func(error)) []*Event {
	field, _ := t.Params["field"].(string)
	if field == "" {
		return batch
	}

	// json.Marshal sắp key map theo thứ tự từ điển nên output ổn định
	grouped := map[string][]json.RawMessage{}
	for _, e := range batch {
		v, _ := lookupField(e, field)
		grouped[v.String()] = append(grouped[v.String()], e.Payload)
	}

	payload, err := json.Marshal(grouped)
	if err != nil {
		errFn(fmt.Errorf("transform group: %w", err))
		return batch
	}

	last := batch[len(batch)-1]
	ne := *last
	ne.Payload = payload
	return []*Event{&ne}
}

// transformCustom áp dụng hàm đã đăng ký theo Expression. Chưa đăng ký ⇒ lỗi per-event.
func transformCustom(batch []*Event, t TransformConfig, errFn func(error)) []*Event {
	fn, ok := getCustomTransform(t.Expression)
	if !ok {
		errFn(fmt.Errorf("custom transform chưa đăng ký: %s", t.Expression))
		return nil
	}
	out := batch[:0]
	for _, e := range batch {
		ne, err := fn(e, t.Params)
		if err != nil {
			errFn(fmt.Errorf("custom transform %s: %w", t.Expression, err))
			continue
		}
		if ne != nil {
			out = append(out, ne)
		}
	}
	return out
}
