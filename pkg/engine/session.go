package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/germanamz/tether/pkg/agent"
	"github.com/germanamz/tether/pkg/chats/chat"
	"github.com/germanamz/tether/pkg/chats/content"
	"github.com/germanamz/tether/pkg/chats/message"
	"github.com/germanamz/tether/pkg/chats/role"
	"github.com/germanamz/tether/pkg/chats/turn"
	"github.com/germanamz/tether/pkg/modeladapter"
	"github.com/germanamz/tether/pkg/sessionctx"
	"github.com/germanamz/tether/pkg/tools/mcpclient"
	"github.com/germanamz/tether/pkg/tools/toolbox"
)

var (
	// ErrBusy is returned when a submission is already in flight.
	ErrBusy = errors.New("engine: a submission is already in flight")
	// ErrInferenceUnavailable is returned by submissions when no gateway is
	// configured, typically because the API key is missing.
	ErrInferenceUnavailable = errors.New("engine: inference unavailable: no API key configured")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("engine: session closed")
	// ErrAttachmentUnsupported is returned by SubmitWithAttachment when no
	// attachment tool is configured.
	ErrAttachmentUnsupported = errors.New("engine: no attachment tool configured")
)

// Session is one conversation: a store of turns, the tools of one tool server
// connection, and the active model id. At most one submission runs at a time.
// Everything it does is reported on the engine's EventBus in order.
type Session struct {
	id        string
	completer modeladapter.Completer
	client    *mcpclient.Client
	target    string
	catalog   *toolbox.Catalog
	chat      *chat.Chat
	events    *EventBus
	log       *slog.Logger
	opts      agent.Options
	attach    AttachmentConfig

	mu         sync.Mutex
	state      agent.State
	model      string
	connecting bool
	connErr    error
	closed     bool
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current submission state.
func (s *Session) State() agent.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Model returns the active model id.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.model
}

// History returns a copy of the conversation turns.
func (s *Session) History() []turn.Turn { return s.chat.Turns() }

// Recent returns the last n turns of the conversation, oldest first. A
// non-positive n returns the whole history.
func (s *Session) Recent(n int) []turn.Turn {
	if n <= 0 {
		return s.chat.Turns()
	}
	return s.chat.Since(s.chat.Len() - n)
}

// Tools returns the tools discovered on the last successful Connect.
func (s *Session) Tools() []toolbox.Tool { return s.catalog.Tools() }

// Connected reports whether the tool server connection is live.
func (s *Session) Connected() bool { return s.client.Connected() }

// Connect connects to the tool server and replaces the catalog with the
// server's tools. When the server is unreachable it publishes a connection
// event carrying the error, emits a system message, and returns the
// *mcpclient.ConnectionError; submissions stay disabled until a later Connect
// succeeds.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.state != agent.StateIdle || s.connecting:
		s.mu.Unlock()
		return ErrBusy
	}
	s.connecting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	ctx = sessionctx.WithSessionID(ctx, s.id)

	if err := s.client.Connect(ctx); err != nil {
		return s.connectFailed(err)
	}

	// A server that cannot list its tools is as unusable as an unreachable
	// one.
	tools, err := s.client.ListTools(ctx)
	if err != nil {
		if derr := s.client.Disconnect(); derr != nil {
			s.log.DebugContext(ctx, "closing tool server session", "error", derr)
		}
		return s.connectFailed(&mcpclient.ConnectionError{Endpoint: s.target, Attempts: 1, Err: err})
	}
	s.catalog.Load(tools)

	s.mu.Lock()
	s.connErr = nil
	s.mu.Unlock()

	s.log.InfoContext(ctx, "tool catalog loaded", "tools", len(tools))
	s.publish(Event{Kind: EventConnection})
	s.emit(message.New(role.System, fmt.Sprintf("Connected to %s: %d tool(s) available", s.target, len(tools))))

	return nil
}

func (s *Session) connectFailed(err error) error {
	s.mu.Lock()
	s.connErr = err
	s.mu.Unlock()

	s.publish(Event{Kind: EventConnection, Err: err})
	s.emit(message.New(role.System, "Tool server unreachable: "+err.Error()))

	return err
}

// Submit sends text to the model and runs the tool loop until the model
// answers. It returns the assistant message. Rejections (ErrBusy, a
// *mcpclient.ConnectionError, ErrInferenceUnavailable) change nothing. Any
// other failure is emitted as an error message and the session goes back to
// idle with the history kept as it was at the point of failure.
func (s *Session) Submit(ctx context.Context, text string) (message.Message, error) {
	model, err := s.begin()
	if err != nil {
		return message.Message{}, err
	}

	ctx = s.context(ctx, model)
	s.emit(message.New(role.User, text, message.WithModel(model)))

	return s.run(ctx, model, text)
}

// SubmitWithAttachment first hands img and text to the configured attachment
// tool, emitting its result as a tool message that is not added to the
// history, then submits text like Submit. The image is sent base64 encoded.
func (s *Session) SubmitWithAttachment(ctx context.Context, text string, img content.Image) (message.Message, error) {
	if s.attach.Tool == "" {
		return message.Message{}, ErrAttachmentUnsupported
	}

	model, err := s.begin()
	if err != nil {
		return message.Message{}, err
	}

	ctx = s.context(ctx, model)
	s.emit(message.New(role.User, text, message.WithModel(model), message.WithImage(img)))
	s.setState(agent.StateAwaitingTool)

	result, err := s.client.CallTool(ctx, s.attach.Tool, s.attachmentArgs(text, img))
	if err != nil {
		s.fail(model, err)
		return message.Message{}, err
	}
	if result.IsError {
		s.log.WarnContext(ctx, "attachment tool reported an error", "tool", s.attach.Tool)
	}

	s.emit(message.New(role.Tool, result.Text(),
		message.WithTool(s.attach.Tool),
		message.WithModel(model),
	))

	return s.run(ctx, model, text)
}

func (s *Session) attachmentArgs(text string, img content.Image) map[string]any {
	args := map[string]any{
		s.attach.TextArg: text,
		s.attach.DataArg: base64.StdEncoding.EncodeToString(img.Data),
	}
	if s.attach.MediaTypeArg != "" && img.MediaType != "" {
		args[s.attach.MediaTypeArg] = img.MediaType
	}
	return args
}

// SwitchModel makes id the active model and clears the conversation. The
// store is cleared even when id is already active.
func (s *Session) SwitchModel(id string) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrSessionClosed
	case s.state != agent.StateIdle:
		s.mu.Unlock()
		return ErrBusy
	}
	s.model = id
	s.chat.Reset()
	s.mu.Unlock()

	s.emit(message.New(role.System,
		fmt.Sprintf("Switched to model %s; conversation cleared", id),
		message.WithModel(id),
	))

	return nil
}

// Close ends the tool server connection. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.client.Close()
}

// begin reserves the session for one submission and returns the model it
// runs against.
func (s *Session) begin() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return "", ErrSessionClosed
	case s.state != agent.StateIdle || s.connecting:
		return "", ErrBusy
	case !s.client.Connected():
		return "", s.connectionErrLocked()
	case s.completer == nil:
		return "", ErrInferenceUnavailable
	}

	s.state = agent.StateAwaitingModel
	return s.model, nil
}

// connectionErrLocked returns the error of the last failed Connect, or a
// synthetic one when Connect was never called.
func (s *Session) connectionErrLocked() error {
	if s.connErr != nil {
		return s.connErr
	}
	return &mcpclient.ConnectionError{Endpoint: s.target, Err: mcpclient.ErrNotConnected}
}

func (s *Session) run(ctx context.Context, model, text string) (message.Message, error) {
	s.chat.Append(turn.NewText(turn.User, text))

	a := agent.New(s.completer, s.client, s.chat, s.catalog, observer{s}, s.opts)

	reply, err := a.Run(ctx, model)
	if err != nil {
		s.fail(model, err)
		return message.Message{}, err
	}

	s.setState(agent.StateDone)
	s.setState(agent.StateIdle)

	return reply, nil
}

func (s *Session) fail(model string, err error) {
	opts := []message.Option{message.WithModel(model)}

	var tie *mcpclient.ToolInvocationError
	if errors.As(err, &tie) {
		opts = append(opts, message.WithTool(tie.Tool))
	}

	s.emit(message.New(role.Error, err.Error(), opts...))
	s.setState(agent.StateFailed)
	s.setState(agent.StateIdle)
}

func (s *Session) context(ctx context.Context, model string) context.Context {
	return sessionctx.WithModel(sessionctx.WithSessionID(ctx, s.id), model)
}

func (s *Session) setState(st agent.State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	s.publish(Event{Kind: EventState, State: st})
}

func (s *Session) emit(m message.Message) {
	s.publish(Event{Kind: EventMessage, Message: m})
}

func (s *Session) publish(e Event) {
	e.SessionID = s.id
	e.Timestamp = time.Now()
	s.events.Publish(e)
}

// observer forwards the loop's notifications to the session.
type observer struct{ s *Session }

func (o observer) OnState(st agent.State)      { o.s.setState(st) }
func (o observer) OnMessage(m message.Message) { o.s.emit(m) }
