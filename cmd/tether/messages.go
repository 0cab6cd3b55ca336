package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/tether/pkg/engine"
)

// eventMsg delivers an engine event from the bridge goroutine.
type eventMsg struct {
	ev engine.Event
}

// inputSubmitMsg carries the text the user submitted from the input box.
type inputSubmitMsg struct {
	text string
}

// submitDoneMsg is returned by the tea.Cmd that runs a submission.
type submitDoneMsg struct {
	err      error
	duration time.Duration
}

// connectDoneMsg is returned by the tea.Cmd that connects the session.
type connectDoneMsg struct {
	err error
}

// programReadyMsg passes the *tea.Program to the model so it can start the
// bridge goroutine.
type programReadyMsg struct {
	program *tea.Program
}

// initDrainMsg fires after a short delay so that stale terminal responses
// (e.g. OSC 11 background-color replies) are discarded before focusing input.
type initDrainMsg struct{}
