package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testEvent(topic string, payload string) *Event {
	e := NewEvent("tenant-a", topic, json.RawMessage(payload))
	e.Source = EventSource{Kind: "crane", ID: "crane-07"}
	e.Metadata = EventMetadata{Priority: 2, Category: "equipment"}
	return e
}

func TestMatchesEmptyFilterList(t *testing.T) {
	e := testEvent("crane.status.changed", `{"status":"idle"}`)
	assert.True(t, Matches(e, nil), "danh sách filter rỗng phải khớp mọi event")
	assert.True(t, Matches(e, []Filter{}))
}

func TestMatchesBasicOperators(t *testing.T) {
	e := testEvent("vessel.eta.updated", `{"delayMinutes":45,"berth":"B3","flags":["late","priority"]}`)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"eq khớp", Filter{Field: "berth", Operator: OpEq, Value: "B3"}, true},
		{"eq không khớp", Filter{Field: "berth", Operator: OpEq, Value: "B4"}, false},
		{"ne", Filter{Field: "berth", Operator: OpNe, Value: "B4"}, true},
		{"gt", Filter{Field: "delayMinutes", Operator: OpGt, Value: 30}, true},
		{"gte biên", Filter{Field: "delayMinutes", Operator: OpGte, Value: 45}, true},
		{"lt", Filter{Field: "delayMinutes", Operator: OpLt, Value: 45}, false},
		{"lte biên", Filter{Field: "delayMinutes", Operator: OpLte, Value: 45}, true},
		{"in", Filter{Field: "berth", Operator: OpIn, Value: []interface{}{"B1", "B3"}}, true},
		{"not_in", Filter{Field: "berth", Operator: OpNotIn, Value: []interface{}{"B1", "B2"}}, true},
		{"contains chuỗi", Filter{Field: "berth", Operator: OpContains, Value: "B"}, true},
		{"contains mảng", Filter{Field: "flags", Operator: OpContains, Value: "late"}, true},
		{"regex", Filter{Field: "berth", Operator: OpRegex, Value: "^B[0-9]$"}, true},
		{"regex không khớp", Filter{Field: "berth", Operator: OpRegex, Value: "^C"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(e, []Filter{tt.filter}))
		})
	}
}

func TestMatchesMissingField(t *testing.T) {
	e := testEvent("gate.truck.arrived", `{"gate":"G1"}`)

	// Field vắng mặt: false với mọi operator, TRỪ ne và not_in
	assert.False(t, Matches(e, []Filter{{Field: "driver", Operator: OpEq, Value: "x"}}))
	assert.False(t, Matches(e, []Filter{{Field: "driver", Operator: OpGt, Value: 1}}))
	assert.False(t, Matches(e, []Filter{{Field: "driver", Operator: OpContains, Value: "x"}}))
	assert.True(t, Matches(e, []Filter{{Field: "driver", Operator: OpNe, Value: "x"}}))
	assert.True(t, Matches(e, []Filter{{Field: "driver", Operator: OpNotIn, Value: []interface{}{"x"}}}))
}

func TestMatchesJoinLeftFold(t *testing.T) {
	e := testEvent("crane.fault.raised", `{"severity":"high","zone":"north"}`)

	// (severity==low OR zone==north) AND severity==high — fold trái, không ưu tiên AND
	filters := []Filter{
		{Field: "severity", Operator: OpEq, Value: "low"},
		{Field: "zone", Operator: OpEq, Value: "north", Join: JoinOr},
		{Field: "severity", Operator: OpEq, Value: "high", Join: JoinAnd},
	}
	assert.True(t, Matches(e, filters))

	// (severity==high AND zone==south) OR severity==high
	filters = []Filter{
		{Field: "severity", Operator: OpEq, Value: "high"},
		{Field: "zone", Operator: OpEq, Value: "south", Join: JoinAnd},
		{Field: "severity", Operator: OpEq, Value: "high", Join: JoinOr},
	}
	assert.True(t, Matches(e, filters))
}

func TestMatchesEventFields(t *testing.T) {
	e := testEvent("crane.status.changed", `{"status":"fault"}`)

	assert.True(t, Matches(e, []Filter{{Field: "topic", Operator: OpEq, Value: "crane.status.changed"}}))
	assert.True(t, Matches(e, []Filter{{Field: "source.kind", Operator: OpEq, Value: "crane"}}))
	assert.True(t, Matches(e, []Filter{{Field: "metadata.priority", Operator: OpLte, Value: 2}}))
	assert.False(t, Matches(e, []Filter{{Field: "source.id", Operator: OpEq, Value: "crane-99"}}))
}

func TestMatchesInvalidRegex(t *testing.T) {
	e := testEvent("crane.status.changed", `{"status":"idle"}`)
	assert.False(t, Matches(e, []Filter{{Field: "status", Operator: OpRegex, Value: "("}}))
}
