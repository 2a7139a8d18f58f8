package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListener_DispatchRoutesByEvent(t *testing.T) {
	l := NewListener(nil, "acks", zap.NewNop())

	var got json.RawMessage
	l.Handle("acknowledge", func(_ context.Context, data json.RawMessage) {
		got = data
	})

	l.dispatch(context.Background(), map[string]any{
		"event": "acknowledge",
		"data":  map[string]any{"entry_id": "entry-1"},
	})

	require.NotNil(t, got)
	var payload struct {
		EntryID string `json:"entry_id"`
	}
	require.NoError(t, json.Unmarshal(got, &payload))
	assert.Equal(t, "entry-1", payload.EntryID)
}

func TestListener_DispatchUnknownEvent(t *testing.T) {
	l := NewListener(nil, "acks", zap.NewNop())

	called := false
	l.Handle("acknowledge", func(context.Context, json.RawMessage) { called = true })

	l.dispatch(context.Background(), map[string]any{"event": "something_else"})
	assert.False(t, called)
}

func TestListener_DispatchMalformedMessage(t *testing.T) {
	l := NewListener(nil, "acks", zap.NewNop())

	// Non-object payloads must be dropped without panicking.
	l.dispatch(context.Background(), "just a string")
	l.dispatch(context.Background(), 42)
}

func TestMemoryTransport_RecordsDeliveries(t *testing.T) {
	transport := NewMemoryTransport()

	require.NoError(t, transport.Broadcast(context.Background(), "room-1", "test_event", "hello"))

	deliveries := transport.DeliveriesTo("room-1")
	require.Len(t, deliveries, 1)
	assert.Equal(t, "test_event", deliveries[0].Event)
	assert.Equal(t, "hello", deliveries[0].Payload)
	assert.Empty(t, transport.DeliveriesTo("room-2"))
}
