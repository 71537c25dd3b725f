package stream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventValidate(t *testing.T) {
	valid := NewEvent("tenant-a", "vessel.eta.updated", json.RawMessage(`{"eta":"2026-08-29T10:00:00Z"}`))
	assert.NoError(t, valid.Validate())
	assert.NotEmpty(t, valid.ID)
	assert.NotZero(t, valid.PublishedAt)

	tests := []struct {
		name  string
		event *Event
	}{
		{"topic rỗng", NewEvent("tenant-a", "", json.RawMessage(`{}`))},
		{"topic có segment rỗng", NewEvent("tenant-a", "vessel..updated", json.RawMessage(`{}`))},
		{"payload nil", NewEvent("tenant-a", "vessel.eta.updated", nil)},
		{"payload không phải JSON", NewEvent("tenant-a", "vessel.eta.updated", json.RawMessage(`{`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.event.Validate())
		})
	}
}

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"vessel.eta.updated", "vessel.eta.updated", true},
		{"vessel.*.updated", "vessel.eta.updated", true},
		{"vessel.*.updated", "vessel.berth.updated", true},
		{"vessel.*.updated", "crane.eta.updated", false},
		{"*.eta.updated", "vessel.eta.updated", true},
		{"vessel.*", "vessel.eta.updated", false}, // số segment phải bằng nhau
		{"vessel.*.*", "vessel.eta.updated", true},
		{"vessel.eta", "vessel.eta.updated", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TopicMatches(tt.pattern, tt.topic),
			"pattern=%s topic=%s", tt.pattern, tt.topic)
	}
}
