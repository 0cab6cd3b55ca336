package main

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/tether/pkg/chats/message"
	"github.com/germanamz/tether/pkg/chats/role"
	"github.com/germanamz/tether/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeFiltersBySession(t *testing.T) {
	bus := engine.NewEventBus()
	got := make(chan tea.Msg, 8)

	stop := startBridge(context.Background(), func(msg tea.Msg) { got <- msg }, bus, "mine")
	defer stop()

	bus.Publish(engine.Event{Kind: engine.EventMessage, SessionID: "other", Message: message.New(role.User, "ignored")})
	bus.Publish(engine.Event{Kind: engine.EventMessage, SessionID: "mine", Message: message.New(role.User, "kept")})

	select {
	case msg := <-got:
		ev, ok := msg.(eventMsg)
		require.True(t, ok)
		assert.Equal(t, "mine", ev.ev.SessionID)
		assert.Equal(t, "kept", ev.ev.Message.Content)
	case <-time.After(time.Second):
		t.Fatal("event was not forwarded")
	}

	select {
	case msg := <-got:
		t.Fatalf("unexpected message %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBridgeStopUnsubscribes(t *testing.T) {
	bus := engine.NewEventBus()
	got := make(chan tea.Msg, 8)

	stop := startBridge(context.Background(), func(msg tea.Msg) { got <- msg }, bus, "s")
	stop()

	bus.Publish(engine.Event{Kind: engine.EventState, SessionID: "s"})

	select {
	case msg := <-got:
		t.Fatalf("unexpected message after stop: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
