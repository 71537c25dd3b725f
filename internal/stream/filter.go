package stream

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Các operator filter được hỗ trợ (closed set — dispatch qua một hàm duy nhất)
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpGt       = "gt"
	OpGte      = "gte"
	OpLt       = "lt"
	OpLte      = "lte"
	OpIn       = "in"
	OpNotIn    = "not_in"
	OpContains = "contains"
	OpRegex    = "regex"
)

// Các phép nối logic giữa filter liền kề
const (
	JoinAnd = "AND"
	JoinOr  = "OR"
)

// Filter là một điều kiện lọc trên payload sự kiện.
// Field là đường dẫn chấm (gjson path) vào payload; các path bắt đầu bằng
// "source." / "metadata." / "topic" được tra trên chính event thay vì payload.
type Filter struct {
	Field    string      `json:"field" bson:"field" validate:"required"`
	Operator string      `json:"operator" bson:"operator" validate:"required,oneof=eq ne gt gte lt lte in not_in contains regex"`
	Value    interface{} `json:"value" bson:"value"`
	Join     string      `json:"join,omitempty" bson:"join,omitempty" validate:"omitempty,oneof=AND OR"`
}

// Matches đánh giá danh sách filter trên một event.
// Danh sách rỗng khớp mọi event trên topic đó.
// Kết hợp bằng left fold chặt: join trên filter i quyết định cách kết quả i
// gộp với kết quả tích lũy của các filter 0..i-1 — KHÔNG có ưu tiên AND trên OR,
// vì subscriber cấu hình thứ tự filter một cách có chủ đích.
func Matches(e *Event, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}

	acc := evalFilter(e, filters[0])
	for i := 1; i < len(filters); i++ {
		r := evalFilter(e, filters[i])
		if filters[i].Join == JoinOr {
			acc = acc || r
		} else {
			acc = acc && r
		}
	}
	return acc
}

// evalFilter đánh giá một filter đơn lẻ.
// Field không tồn tại trong event ⇒ false với mọi operator,
// TRỪ ne/not_in ⇒ true (field vắng mặt nghĩa là "không bằng"/"không nằm trong").
func evalFilter(e *Event, f Filter) bool {
	value, exists := lookupField(e, f.Field)
	if !exists {
		return f.Operator == OpNe || f.Operator == OpNotIn
	}

	switch f.Operator {
	case OpEq:
		return equalValue(value, f.Value)
	case OpNe:
		return !equalValue(value, f.Value)
	case OpGt, OpGte, OpLt, OpLte:
		return compareNumeric(value, f.Value, f.Operator)
	case OpIn:
		return containedIn(value, f.Value)
	case OpNotIn:
		return !containedIn(value, f.Value)
	case OpContains:
		return containsValue(value, f.Value)
	case OpRegex:
		pattern, ok := f.Value.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(value.String())
	default:
		return false
	}
}

// lookupField tra giá trị theo đường dẫn chấm. Payload là nguồn chính;
// "topic", "source.*", "metadata.*" tra trên event (hỗ trợ filter theo nguồn phát).
func lookupField(e *Event, path string) (gjson.Result, bool) {
	switch {
	case path == "topic":
		return gjson.Parse(`"` + e.Topic + `"`), true
	case strings.HasPrefix(path, "source."):
		return lookupStruct(e.Source, strings.TrimPrefix(path, "source."))
	case strings.HasPrefix(path, "metadata."):
		return lookupStruct(e.Metadata, strings.TrimPrefix(path, "metadata."))
	}
	r := gjson.GetBytes(e.Payload, path)
	return r, r.Exists()
}

// lookupStruct marshal struct sang JSON rồi tra bằng gjson (source/metadata nhỏ, chấp nhận chi phí)
func lookupStruct(v interface{}, path string) (gjson.Result, bool) {
	b, err := jsonMarshal(v)
	if err != nil {
		return gjson.Result{}, false
	}
	r := gjson.GetBytes(b, path)
	return r, r.Exists()
}

// equalValue so sánh gjson.Result với giá trị filter (typed union: string, number, bool)
func equalValue(v gjson.Result, want interface{}) bool {
	switch w := want.(type) {
	case string:
		return v.Type == gjson.String && v.Str == w
	case bool:
		return v.IsBool() && v.Bool() == w
	case nil:
		return v.Type == gjson.Null
	default:
		if n, ok := toFloat(want); ok {
			return v.Type == gjson.Number && v.Num == n
		}
	}
	// Fallback: so sánh dạng chuỗi (giá trị phức tạp từ JSON decode)
	return v.String() == stringify(want)
}

// compareNumeric so sánh số học gt/gte/lt/lte. Cả hai vế phải là số.
func compareNumeric(v gjson.Result, want interface{}, op string) bool {
	if v.Type != gjson.Number {
		return false
	}
	n, ok := toFloat(want)
	if !ok {
		return false
	}
	switch op {
	case OpGt:
		return v.Num > n
	case OpGte:
		return v.Num >= n
	case OpLt:
		return v.Num < n
	case OpLte:
		return v.Num <= n
	}
	return false
}

// containedIn kiểm tra giá trị field có nằm trong mảng filter value không.
// in/not_in yêu cầu filter value là mảng; không phải mảng ⇒ không khớp.
func containedIn(v gjson.Result, want interface{}) bool {
	arr, ok := toSlice(want)
	if !ok {
		return false
	}
	for _, item := range arr {
		if equalValue(v, item) {
			return true
		}
	}
	return false
}

// containsValue: field là chuỗi ⇒ substring; field là mảng ⇒ phần tử bằng giá trị filter
func containsValue(v gjson.Result, want interface{}) bool {
	if v.Type == gjson.String {
		return strings.Contains(v.Str, stringify(want))
	}
	if v.IsArray() {
		for _, item := range v.Array() {
			if equalValue(item, want) {
				return true
			}
		}
	}
	return false
}
