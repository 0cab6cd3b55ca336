package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/germanamz/tether/pkg/agent"
	"github.com/germanamz/tether/pkg/chats/chat"
	"github.com/germanamz/tether/pkg/modeladapter"
	"github.com/germanamz/tether/pkg/modeladapter/usage"
	"github.com/germanamz/tether/pkg/models"
	"github.com/germanamz/tether/pkg/tools/mcpclient"
	"github.com/germanamz/tether/pkg/tools/toolbox"
	"github.com/google/uuid"
)

// Option customises an Engine.
type Option func(*options)

type options struct {
	log        *slog.Logger
	completer  modeladapter.Completer
	registry   *models.Registry
	transports mcpclient.TransportFactory
	sleep      mcpclient.SleepFunc
}

// WithLogger sets the logger shared by the engine and its sessions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithCompleter replaces the gateway built from the configuration.
func WithCompleter(c modeladapter.Completer) Option {
	return func(o *options) { o.completer = c }
}

// WithRegistry replaces the model registry named by the configuration.
func WithRegistry(r *models.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithTransportFactory overrides how sessions reach the tool server.
func WithTransportFactory(f mcpclient.TransportFactory) Option {
	return func(o *options) { o.transports = f }
}

// WithConnectSleep overrides the sleep between connection attempts.
func WithConnectSleep(f mcpclient.SleepFunc) Option {
	return func(o *options) { o.sleep = f }
}

// Engine is the composition root that assembles the gateway, the model
// registry, and tool server sessions from configuration and exposes them
// through a frontend-agnostic API.
type Engine struct {
	cfg       Config
	events    *EventBus
	completer modeladapter.Completer
	registry  *models.Registry
	log       *slog.Logger
	opts      options
	model     string

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an Engine from the given configuration. A missing API key is
// not an error: the engine starts with inference unavailable and every
// submission fails with ErrInferenceUnavailable.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		cfg:      cfg,
		events:   NewEventBus(),
		log:      o.log,
		opts:     o,
		sessions: make(map[string]*Session),
	}

	e.events.SetLogger(e.log)

	e.registry = o.registry
	if e.registry == nil {
		if cfg.ModelsFile != "" {
			reg, err := models.Load(cfg.ModelsFile)
			if err != nil {
				return nil, fmt.Errorf("engine: models: %w", err)
			}
			e.registry = reg
		} else {
			e.registry = models.Default()
		}
	}

	e.completer = o.completer
	if e.completer == nil {
		c, err := buildGateway(cfg.Gateway, e.log)
		if err != nil {
			return nil, err
		}
		e.completer = c
	}
	if e.completer == nil {
		e.log.Warn("no API key configured, inference unavailable", "gateway", cfg.Gateway.Kind)
	}

	e.model = cfg.Gateway.Model
	if e.model == "" {
		if m, ok := e.registry.Recommended(); ok {
			e.model = m.ID
		}
	}
	if e.model == "" {
		return nil, errors.New("engine: no model configured and the registry recommends none")
	}

	return e, nil
}

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// Models returns the model registry.
func (e *Engine) Models() *models.Registry { return e.registry }

// DefaultModel returns the model id new sessions start with.
func (e *Engine) DefaultModel() string { return e.model }

// InferenceAvailable reports whether a gateway is configured.
func (e *Engine) InferenceAvailable() bool { return e.completer != nil }

// Usage returns the gateway's token usage, or nil when the gateway does not
// track it.
func (e *Engine) Usage() *usage.Tracker {
	if r, ok := e.completer.(modeladapter.UsageReporter); ok {
		return r.UsageTracker()
	}
	return nil
}

// NewSession creates a session on the default model. The session starts
// disconnected; call Connect before submitting.
func (e *Engine) NewSession() (*Session, error) {
	cc, err := e.cfg.ToolServer.clientConfig()
	if err != nil {
		return nil, err
	}

	clientOpts := []mcpclient.Option{mcpclient.WithLogger(e.log)}
	if e.opts.transports != nil {
		clientOpts = append(clientOpts, mcpclient.WithTransportFactory(e.opts.transports))
	}
	if e.opts.sleep != nil {
		clientOpts = append(clientOpts, mcpclient.WithSleepFunc(e.opts.sleep))
	}

	client, err := mcpclient.New(cc, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("engine: tool server: %w", err)
	}

	agentOpts, err := e.agentOptions()
	if err != nil {
		return nil, err
	}

	target := cc.Endpoint
	if cc.Transport == mcpclient.TransportCommand {
		target = cc.Command
	}

	s := &Session{
		id:        uuid.NewString(),
		completer: e.completer,
		client:    client,
		target:    target,
		catalog:   toolbox.New(),
		chat:      chat.New(),
		events:    e.events,
		log:       e.log,
		opts:      agentOpts,
		attach:    e.cfg.Attachment,
		state:     agent.StateIdle,
		model:     e.model,
	}

	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	return s, nil
}

func (e *Engine) agentOptions() (agent.Options, error) {
	timeout, err := parseDuration(e.cfg.Session.Timeout)
	if err != nil {
		return agent.Options{}, fmt.Errorf("engine: session timeout: %w", err)
	}

	mw := []agent.Middleware{agent.Recovery(), agent.Logger(e.log)}
	if timeout > 0 {
		mw = append(mw, agent.Timeout(timeout))
	}

	return agent.Options{
		MaxToolIterations: e.cfg.Session.MaxToolIterations,
		Middleware:        mw,
		Logger:            e.log,
	}, nil
}

// Close closes every session.
func (e *Engine) Close() error {
	e.mu.Lock()
	sessions := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("engine: close session %s: %w", s.ID(), err))
		}
	}
	return errors.Join(errs...)
}
