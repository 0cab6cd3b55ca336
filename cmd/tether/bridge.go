package main

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/tether/pkg/engine"
)

// startBridge forwards engine events of one session to send, typically
// (*tea.Program).Send. The goroutine never touches model state directly.
// The returned function stops the bridge and waits for it to exit.
func startBridge(ctx context.Context, send func(tea.Msg), events *engine.EventBus, sessionID string) context.CancelFunc {
	bridgeCtx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	sub := events.Subscribe(256)

	wg.Go(func() {
		defer events.Unsubscribe(sub)
		for {
			select {
			case <-bridgeCtx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if ev.SessionID != sessionID {
					continue
				}
				send(eventMsg{ev: ev})
			}
		}
	})

	return func() {
		cancel()
		wg.Wait()
	}
}
