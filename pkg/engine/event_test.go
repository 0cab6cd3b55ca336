package engine

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/germanamz/tether/pkg/agent"
	"github.com/germanamz/tether/pkg/chats/message"
	"github.com/germanamz/tether/pkg/chats/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_SubscribePublish(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(8)
	defer bus.Unsubscribe(sub)

	e := Event{
		Kind:      EventState,
		SessionID: "s1",
		State:     agent.StateAwaitingModel,
		Timestamp: time.Now(),
	}

	bus.Publish(e)

	select {
	case got := <-sub.C:
		assert.Equal(t, EventState, got.Kind)
		assert.Equal(t, "s1", got.SessionID)
		assert.Equal(t, agent.StateAwaitingModel, got.State)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBus_FanOut(t *testing.T) {
	bus := NewEventBus()
	sub1 := bus.Subscribe(4)
	sub2 := bus.Subscribe(4)
	defer bus.Unsubscribe(sub1)
	defer bus.Unsubscribe(sub2)

	bus.Publish(Event{Kind: EventMessage})

	select {
	case <-sub1.C:
	case <-time.After(time.Second):
		t.Fatal("sub1 did not receive event")
	}

	select {
	case <-sub2.C:
	case <-time.After(time.Second):
		t.Fatal("sub2 did not receive event")
	}
}

func TestEventBus_NonBlockingDrop(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(1) // buffer of 1
	defer bus.Unsubscribe(sub)

	// Fill the buffer.
	bus.Publish(Event{Kind: EventState})
	// This should not block; the event is dropped.
	bus.Publish(Event{Kind: EventConnection})

	got := <-sub.C
	assert.Equal(t, EventState, got.Kind)

	select {
	case <-sub.C:
		t.Fatal("expected channel to be empty after drop")
	default:
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(4)

	bus.Unsubscribe(sub)

	// Channel should be closed.
	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// Double unsubscribe should not panic.
	bus.Unsubscribe(sub)
}

func TestEventBus_PublishNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic.
	bus.Publish(Event{Kind: EventConnection})
}

func TestEventBus_FullBufferDropsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	bus := NewEventBus()
	bus.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	slow := bus.Subscribe(1)
	fast := bus.Subscribe(4)

	first := message.New(role.User, "one")
	second := message.New(role.Assistant, "two")
	bus.Publish(Event{Kind: EventMessage, SessionID: "s-1", Message: first})
	bus.Publish(Event{Kind: EventMessage, SessionID: "s-1", Message: second})

	assert.Equal(t, int64(1), slow.Dropped())
	assert.Equal(t, int64(0), fast.Dropped())

	got := <-slow.C
	assert.Equal(t, first.ID, got.Message.ID)
	require.Len(t, fast.C, 2)

	out := buf.String()
	assert.Contains(t, out, "event dropped")
	assert.Contains(t, out, "session_id=s-1")
	assert.Contains(t, out, "message_id="+second.ID)
}
