package stream

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// jsonMarshal wrapper để các file trong package dùng chung (tránh import json rải rác)
func jsonMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// toFloat ép giá trị filter/payload về float64. Hỗ trợ các kiểu số Go và json.Number.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// toSlice ép giá trị filter về slice (filter value đến từ JSON decode nên thường là []interface{})
func toSlice(v interface{}) ([]interface{}, bool) {
	if arr, ok := v.([]interface{}); ok {
		return arr, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// stringify biểu diễn giá trị dạng chuỗi cho contains/regex/so sánh fallback
func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
