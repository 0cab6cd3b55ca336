// Package agent runs the orchestration loop of one submission: send the
// history to the model, dispatch any tool call it asks for, fold the result
// back into the history, and repeat until the model answers with text.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/germanamz/tether/pkg/chats/chat"
	"github.com/germanamz/tether/pkg/chats/content"
	"github.com/germanamz/tether/pkg/chats/message"
	"github.com/germanamz/tether/pkg/chats/role"
	"github.com/germanamz/tether/pkg/chats/turn"
	"github.com/germanamz/tether/pkg/modeladapter"
	"github.com/germanamz/tether/pkg/tools/toolbox"
)

// DefaultMaxToolIterations bounds tool dispatches per submission.
const DefaultMaxToolIterations = 10

// ErrLoopLimitExceeded is returned when the model keeps asking for tools
// after MaxToolIterations dispatches.
var ErrLoopLimitExceeded = errors.New("agent: tool loop limit exceeded")

// State is a step of the submission state machine.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingModel State = "awaiting_model"
	StateAwaitingTool  State = "awaiting_tool"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Observer is told about every state transition and emitted message, in
// order, on the goroutine running the loop.
type Observer interface {
	OnState(s State)
	OnMessage(m message.Message)
}

type nopObserver struct{}

func (nopObserver) OnState(State)             {}
func (nopObserver) OnMessage(message.Message) {}

// Options configures an Agent.
type Options struct {
	MaxToolIterations int          // Tool dispatches per run (0 = DefaultMaxToolIterations, <0 = unlimited).
	Middleware        []Middleware // Applied around Run().
	Logger            *slog.Logger // Defaults to a discarding logger.
}

// Agent drives one conversation. It does not own its collaborators: the
// session hands it the store, the catalog, and the tool caller.
type Agent struct {
	completer modeladapter.Completer
	caller    toolbox.Caller
	chat      *chat.Chat
	catalog   *toolbox.Catalog
	observer  Observer
	options   Options
	log       *slog.Logger
	estimator modeladapter.TokenEstimator
}

// New creates an Agent. A nil observer drops notifications.
func New(completer modeladapter.Completer, caller toolbox.Caller, c *chat.Chat, catalog *toolbox.Catalog, observer Observer, opts Options) *Agent {
	if observer == nil {
		observer = nopObserver{}
	}
	if opts.MaxToolIterations == 0 {
		opts.MaxToolIterations = DefaultMaxToolIterations
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Agent{
		completer: completer,
		caller:    caller,
		chat:      c,
		catalog:   catalog,
		observer:  observer,
		options:   opts,
		log:       log,
	}
}

// Run executes the loop against model with middleware applied. The caller
// appends the user turn first. It returns the assistant message on success.
func (a *Agent) Run(ctx context.Context, model string) (message.Message, error) {
	var runner Runner = RunnerFunc(func(ctx context.Context) (message.Message, error) {
		return a.run(ctx, model)
	})

	// Apply middleware in reverse order so the first middleware is outermost.
	for i := len(a.options.Middleware) - 1; i >= 0; i-- {
		runner = a.options.Middleware[i](runner)
	}

	return runner.Run(ctx)
}

func (a *Agent) run(ctx context.Context, model string) (message.Message, error) {
	dispatched := 0

	for {
		a.observer.OnState(StateAwaitingModel)

		history := a.chat.Turns()
		decls := a.catalog.Declarations()

		a.log.DebugContext(ctx, "calling model",
			"turns", len(history),
			"tools", len(decls),
			"estimated_tokens", a.estimator.EstimateTotal(history, decls),
		)

		reply, err := a.completer.Complete(ctx, model, history, decls)
		if err != nil {
			return message.Message{}, err
		}

		if !reply.IsFunctionCall() {
			a.chat.Append(turn.NewText(turn.Model, reply.Text))

			msg := message.New(role.Assistant, reply.Text, message.WithModel(model))
			a.observer.OnMessage(msg)

			return msg, nil
		}

		if limit := a.options.MaxToolIterations; limit > 0 && dispatched >= limit {
			return message.Message{}, fmt.Errorf("%w: %d dispatches", ErrLoopLimitExceeded, limit)
		}
		dispatched++

		text, err := a.dispatch(ctx, model, *reply.FunctionCall)
		if err != nil {
			return message.Message{}, err
		}

		a.chat.Append(
			turn.NewText(turn.Model, "Calling tool "+reply.FunctionCall.Name),
			turn.NewText(turn.User, "Tool Results: "+text),
		)
	}
}

// dispatch invokes the requested tool and returns the text folded into the
// history: the first content block, or the serialised result.
func (a *Agent) dispatch(ctx context.Context, model string, fc content.FunctionCall) (string, error) {
	a.observer.OnMessage(message.New(role.Tool, invocationText(fc),
		message.WithTool(fc.Name),
		message.WithModel(model),
	))
	a.observer.OnState(StateAwaitingTool)

	a.log.InfoContext(ctx, "calling tool", "tool", fc.Name)

	result, err := a.caller.CallTool(ctx, fc.Name, fc.Args)
	if err != nil {
		return "", err
	}

	text := result.Text()
	a.observer.OnMessage(message.New(role.Tool, text,
		message.WithTool(fc.Name),
		message.WithModel(model),
	))

	return text, nil
}

// invocationText describes a tool call for display.
func invocationText(fc content.FunctionCall) string {
	args, err := json.Marshal(fc.Args)
	if err != nil || len(fc.Args) == 0 {
		return "Calling tool " + fc.Name
	}
	return fmt.Sprintf("Calling tool %s %s", fc.Name, args)
}
