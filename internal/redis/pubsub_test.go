package redis

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/models"
)

func TestDecodeEvent(t *testing.T) {
	ev := models.FanoutEvent{
		Origin:    "node-a",
		Exclude:   "session-1",
		Event:     models.EventMessage,
		Data:      json.RawMessage(`{"content":"hi"}`),
		Timestamp: 1700000000,
	}
	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	got, err := decodeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, ev.Origin, got.Origin)
	assert.Equal(t, ev.Exclude, got.Exclude)
	assert.Equal(t, ev.Event, got.Event)
	assert.JSONEq(t, string(ev.Data), string(got.Data))
}

func TestDecodeEvent_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "garbage"},
		{name: "no event", payload: `{"origin":"a","data":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeEvent([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not-a-redis-url", "")
	assert.Error(t, err)
}
