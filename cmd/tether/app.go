package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/germanamz/tether/pkg/agent"
	"github.com/germanamz/tether/pkg/engine"
	"github.com/germanamz/tether/pkg/tools/mcpclient"
	"github.com/germanamz/tether/pkg/validate"
)

// appState represents the application state machine.
type appState int

const (
	stateIdle appState = iota
	stateBusy
)

// appModel is the root bubbletea model. Finished messages are printed above
// the program; the view only holds the spinner, the input and a status line.
type appModel struct {
	ctx          context.Context
	eng          *engine.Engine
	sess         *engine.Session
	input        inputModel
	spinner      spinner.Model
	state        appState
	phase        agent.State
	connected    bool
	connErr      error
	cancelBridge context.CancelFunc
	cancelSubmit context.CancelFunc
	width        int
	started      time.Time
	lastDuration time.Duration
}

func newAppModel(ctx context.Context, eng *engine.Engine, sess *engine.Session) appModel {
	return appModel{
		ctx:     ctx,
		eng:     eng,
		sess:    sess,
		input:   newInput(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		state:   stateIdle,
		phase:   agent.StateIdle,
	}
}

func (m appModel) Init() tea.Cmd {
	// Delay focusing the input so that stale terminal escape-sequence
	// responses (e.g. OSC 11 background-color) are drained first.
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg {
		return initDrainMsg{}
	})
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		initMarkdownRenderer(m.width - 4)
		m.input.setWidth(m.width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case initDrainMsg:
		if m.state != stateIdle {
			return m, nil
		}
		return m, m.input.enable()

	case programReadyMsg:
		m.cancelBridge = startBridge(m.ctx, msg.program.Send, m.eng.Events(), m.sess.ID())
		return m.startConnect()

	case inputSubmitMsg:
		return m.handleSubmit(msg.text)

	case eventMsg:
		return m.handleEvent(msg.ev)

	case submitDoneMsg:
		m.lastDuration = msg.duration
		cmd := m.finish()
		// Failures inside a submission arrive as error messages; only
		// rejections need printing here.
		if rejected(msg.err) {
			return m, tea.Batch(cmd, printError(msg.err))
		}
		return m, cmd

	case connectDoneMsg:
		return m, m.finish()

	case spinner.TickMsg:
		if m.state != stateBusy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.state == stateIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m appModel) View() string {
	var sections []string

	if !m.connected && m.connErr != nil {
		sections = append(sections, bannerStyle.Render(
			truncateWidth("Tool server unreachable: "+m.connErr.Error(), max(m.width-2, 20)),
		)+"\n"+dimStyle.Render("Submissions are disabled. Type /reconnect to retry."))
	}

	if m.state == stateBusy {
		sections = append(sections, m.spinner.View()+" "+dimStyle.Render(phaseText(m.phase)))
	}

	sections = append(sections, m.input.View(), m.statusLine())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m appModel) statusLine() string {
	parts := []string{m.sess.Model()}

	if m.connected {
		parts = append(parts, fmt.Sprintf("%d tool(s)", len(m.sess.Tools())))
	} else {
		parts = append(parts, "disconnected")
	}

	if !m.eng.InferenceAvailable() {
		parts = append(parts, "inference unavailable (no API key)")
	} else if t := m.eng.Usage(); t != nil && t.Count() > 0 {
		total := t.Total()
		parts = append(parts, fmt.Sprintf("↑%s ↓%s", fmtTokens(total.InputTokens), fmtTokens(total.OutputTokens)))
	}

	if m.lastDuration > 0 {
		parts = append(parts, fmtDuration(m.lastDuration))
	}

	return dimStyle.Render(" " + strings.Join(parts, " · "))
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()
	case tea.KeyEsc:
		if m.cancelSubmit != nil {
			m.cancelSubmit()
			return m, nil
		}
	}

	if m.state == stateIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m appModel) handleEvent(ev engine.Event) (tea.Model, tea.Cmd) {
	switch ev.Kind {
	case engine.EventMessage:
		return m, tea.Println(renderMessage(ev.Message, m.width))
	case engine.EventState:
		m.phase = ev.State
	case engine.EventConnection:
		m.connErr = ev.Err
		m.connected = ev.Err == nil
	}
	return m, nil
}

func (m appModel) handleSubmit(text string) (tea.Model, tea.Cmd) {
	cmd, err := parseCommand(text)
	if err != nil {
		return m, printError(err)
	}

	switch cmd.kind {
	case cmdQuit:
		return m.quit()

	case cmdHelp:
		return m, tea.Println(helpText())

	case cmdModels:
		return m, tea.Println(renderModels(m.eng.Models(), m.sess.Model()))

	case cmdModel:
		if cmd.arg == "" {
			return m, tea.Println(dimStyle.Render("Current model: " + m.sess.Model()))
		}
		if err := validate.ModelID(m.eng.Models(), cmd.arg); err != nil {
			return m, printError(err)
		}
		if err := m.sess.SwitchModel(cmd.arg); err != nil {
			return m, printError(err)
		}
		return m, nil

	case cmdHistory:
		return m, tea.Println(renderHistory(m.sess.Recent(cmd.count), m.width))

	case cmdUsage:
		return m, tea.Println(renderUsage(m.eng.Usage()))

	case cmdReconnect:
		return m.startConnect()

	case cmdAttach:
		img, err := loadAttachment(cmd.arg, validate.Limits{})
		if err != nil {
			return m, printError(err)
		}
		return m.startSubmit(func(ctx context.Context) error {
			_, err := m.sess.SubmitWithAttachment(ctx, cmd.text, img)
			return err
		})
	}

	return m.startSubmit(func(ctx context.Context) error {
		_, err := m.sess.Submit(ctx, cmd.text)
		return err
	})
}

// startSubmit runs fn in the background with a cancellable context.
func (m appModel) startSubmit(fn func(ctx context.Context) error) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelSubmit = cancel
	m.begin()

	started := m.started
	run := func() tea.Msg {
		defer cancel()
		err := fn(ctx)
		return submitDoneMsg{err: err, duration: time.Since(started)}
	}

	return m, tea.Batch(run, m.spinner.Tick)
}

func (m appModel) startConnect() (tea.Model, tea.Cmd) {
	m.begin()

	sess := m.sess
	ctx := m.ctx
	run := func() tea.Msg {
		return connectDoneMsg{err: sess.Connect(ctx)}
	}

	return m, tea.Batch(run, m.spinner.Tick)
}

func (m *appModel) begin() {
	m.state = stateBusy
	m.started = time.Now()
	m.input.disable()
}

func (m *appModel) finish() tea.Cmd {
	m.state = stateIdle
	m.phase = agent.StateIdle
	m.cancelSubmit = nil
	return m.input.enable()
}

func (m appModel) quit() (tea.Model, tea.Cmd) {
	if m.cancelSubmit != nil {
		m.cancelSubmit()
	}
	if m.cancelBridge != nil {
		m.cancelBridge()
	}
	return m, tea.Quit
}

// rejected reports whether err was returned without the session emitting an
// error message for it.
func rejected(err error) bool {
	var connErr *mcpclient.ConnectionError
	return errors.Is(err, engine.ErrBusy) ||
		errors.Is(err, engine.ErrInferenceUnavailable) ||
		errors.Is(err, engine.ErrSessionClosed) ||
		errors.Is(err, engine.ErrAttachmentUnsupported) ||
		errors.As(err, &connErr)
}

func printError(err error) tea.Cmd {
	return tea.Println(errorBlockStyle.Render(toolErrorStyle.Render("error: " + err.Error())))
}

func phaseText(s agent.State) string {
	switch s {
	case agent.StateAwaitingModel:
		return "Waiting for the model... (esc to cancel)"
	case agent.StateAwaitingTool:
		return "Calling a tool... (esc to cancel)"
	default:
		return "Working..."
	}
}

var _ tea.Model = appModel{}
