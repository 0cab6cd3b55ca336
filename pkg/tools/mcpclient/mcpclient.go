// Package mcpclient maintains a resilient connection to an MCP tool server:
// it connects with bounded exponential backoff, lists the server's tools as
// typed descriptors, and invokes them.
package mcpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/germanamz/tether/pkg/tools/schema"
	"github.com/germanamz/tether/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Config describes how to reach the tool server and how hard to try.
type Config struct {
	Transport   TransportKind     // Defaults to TransportStreamable.
	Endpoint    string            // URL for HTTP, SSE and WebSocket transports.
	Command     string            // Executable for the command transport.
	Args        []string          // Arguments for Command.
	Headers     map[string]string // Extra request headers for network transports.
	MaxRetries  int               // Connection attempts per Connect (default 3).
	BaseDelay   time.Duration     // Delay after the first failed attempt, doubled each time (default 1s).
	CallTimeout time.Duration     // Per tool call deadline (0 = none).
}

func (c Config) withDefaults() Config {
	if c.Transport == "" {
		c.Transport = TransportStreamable
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	return c
}

// Validate checks that the configuration names a reachable server.
func (c Config) Validate() error {
	c = c.withDefaults()

	if !c.Transport.Valid() {
		return fmt.Errorf("mcpclient: unknown transport %q", c.Transport)
	}
	if c.Transport == TransportCommand {
		if c.Command == "" {
			return errors.New("mcpclient: command transport requires a command")
		}
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("mcpclient: %s transport requires an endpoint", c.Transport)
	}
	return nil
}

// target names the server for logs and errors.
func (c Config) target() string {
	if c.Transport == TransportCommand {
		return c.Command
	}
	return c.Endpoint
}

// State is the connection state of a Client.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTransportFactory overrides how transports are built for each attempt.
func WithTransportFactory(f TransportFactory) Option {
	return func(c *Client) { c.newTransport = f }
}

// WithSleepFunc overrides the backoff sleep (for testing).
func WithSleepFunc(f SleepFunc) Option {
	return func(c *Client) { c.sleep = f }
}

// Client is a connection to one tool server. It is safe for concurrent use.
type Client struct {
	cfg          Config
	newTransport TransportFactory
	sleep        SleepFunc
	log          *slog.Logger

	mu      sync.Mutex
	state   State
	session *mcp.ClientSession
}

// New creates a disconnected Client. Call Connect before listing or calling
// tools.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:   cfg,
		sleep: contextSleep,
		log:   slog.New(slog.DiscardHandler),
		state: StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.newTransport == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		f, err := newTransportFactory(cfg)
		if err != nil {
			return nil, err
		}
		c.newTransport = f
	}

	return c, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Connected reports whether the client holds a live session.
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// Connect opens a session, trying up to MaxRetries times. After the failed
// attempt k (counting from zero) it waits BaseDelay*2^k before going on. When
// every attempt fails it returns a *ConnectionError and the client stays
// disconnected; it never retries on its own. Calling Connect on a connected
// client replaces the existing session.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case StateConnecting:
		c.mu.Unlock()
		return ErrConnectInProgress
	}
	prev := c.session
	c.session = nil
	c.state = StateConnecting
	c.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}

	b := c.newBackOff()
	target := c.cfg.target()

	var (
		lastErr  error
		attempts int
	)
	for attempt := range c.cfg.MaxRetries {
		attempts = attempt + 1

		session, err := c.connectOnce(ctx)
		if err == nil {
			return c.adopt(session, attempts)
		}
		lastErr = err

		delay := b.NextBackOff()
		c.log.WarnContext(ctx, "tool server connection failed",
			"endpoint", target,
			"attempt", attempts,
			"max_attempts", c.cfg.MaxRetries,
			"retry_in", delay,
			"error", err,
		)

		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			lastErr = errors.Join(lastErr, sleepErr)
			break
		}
	}

	c.mu.Lock()
	if c.state == StateConnecting {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	c.log.ErrorContext(ctx, "tool server unreachable", "endpoint", target, "attempts", attempts, "error", lastErr)

	return &ConnectionError{Endpoint: target, Attempts: attempts, Err: lastErr}
}

func (c *Client) connectOnce(ctx context.Context) (*mcp.ClientSession, error) {
	transport, err := c.newTransport()
	if err != nil {
		return nil, err
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "tether",
		Version: "0.1.0",
	}, nil)

	return client.Connect(ctx, transport, nil)
}

// adopt installs a freshly opened session unless Close won the race.
func (c *Client) adopt(session *mcp.ClientSession, attempts int) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		_ = session.Close()
		return ErrClosed
	}
	c.session = session
	c.state = StateConnected
	c.mu.Unlock()

	c.log.Info("tool server connected", "endpoint", c.cfg.target(), "attempts", attempts)

	return nil
}

// newBackOff returns a jitter-free exponential schedule: BaseDelay, then
// doubling on every call.
func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = c.cfg.BaseDelay << c.cfg.MaxRetries
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

func (c *Client) current() (*mcp.ClientSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnected || c.session == nil {
		return nil, ErrNotConnected
	}
	return c.session, nil
}

// ListTools fetches every tool the server offers, following pagination. A
// server without tools yields an empty slice.
func (c *Client) ListTools(ctx context.Context) ([]toolbox.Tool, error) {
	session, err := c.current()
	if err != nil {
		return nil, err
	}

	tools := []toolbox.Tool{}
	params := &mcp.ListToolsParams{}
	for {
		result, err := session.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: list tools: %w", err)
		}
		if result == nil {
			break
		}

		for _, sdkTool := range result.Tools {
			if sdkTool == nil {
				continue
			}
			tools = append(tools, c.fromSDKTool(ctx, sdkTool))
		}

		if result.NextCursor == "" {
			break
		}
		params = &mcp.ListToolsParams{Cursor: result.NextCursor}
	}

	return tools, nil
}

// fromSDKTool converts an SDK tool. An unreadable schema degrades to the
// empty schema so one odd tool does not hide the rest.
func (c *Client) fromSDKTool(ctx context.Context, sdkTool *mcp.Tool) toolbox.Tool {
	params, err := schema.Parse(sdkTool.InputSchema)
	if err != nil {
		c.log.WarnContext(ctx, "ignoring unreadable tool schema", "tool", sdkTool.Name, "error", err)
		params = schema.Schema{}
	}

	return toolbox.Tool{
		Name:        sdkTool.Name,
		Description: sdkTool.Description,
		Parameters:  params,
	}
}

// CallTool invokes a tool. Failures, timeouts and missing payloads are
// reported as *ToolInvocationError; a result the tool flagged as an error is
// returned as is with IsError set. Calls are never retried.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*toolbox.Result, error) {
	session, err := c.current()
	if err != nil {
		return nil, &ToolInvocationError{Tool: name, Err: err}
	}

	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	if args == nil {
		args = map[string]any{}
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, &ToolInvocationError{Tool: name, Err: err}
	}
	if result == nil {
		return nil, &ToolInvocationError{Tool: name, Err: ErrMalformedResult}
	}

	return toResult(result), nil
}

// Disconnect drops the current session and returns the client to
// disconnected so a later Connect can start over. It does nothing on a closed
// client.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	session := c.session
	c.session = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.Close()
}

// Close ends the session. It is idempotent and safe on a client that never
// connected; a closed client cannot reconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.state = StateClosed
	c.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.Close()
}

// toResult converts an SDK result into content blocks.
func toResult(result *mcp.CallToolResult) *toolbox.Result {
	out := &toolbox.Result{
		Content: make([]toolbox.Block, 0, len(result.Content)),
		IsError: result.IsError,
	}

	for _, item := range result.Content {
		switch v := item.(type) {
		case *mcp.TextContent:
			out.Content = append(out.Content, toolbox.Block{Type: "text", Text: v.Text})
		case *mcp.ImageContent:
			out.Content = append(out.Content, toolbox.Block{Type: "image", MIMEType: v.MIMEType})
		case *mcp.AudioContent:
			out.Content = append(out.Content, toolbox.Block{Type: "audio", MIMEType: v.MIMEType})
		case *mcp.ResourceLink:
			out.Content = append(out.Content, toolbox.Block{Type: "resource_link", Text: v.URI, MIMEType: v.MIMEType})
		case *mcp.EmbeddedResource:
			b := toolbox.Block{Type: "resource"}
			if v.Resource != nil {
				b.Text = v.Resource.Text
				b.MIMEType = v.Resource.MIMEType
			}
			out.Content = append(out.Content, b)
		default:
			out.Content = append(out.Content, toolbox.Block{Type: "unknown"})
		}
	}

	return out
}

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
