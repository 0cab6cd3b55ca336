package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/germanamz/tether/pkg/agent"
	"github.com/germanamz/tether/pkg/chats/content"
	"github.com/germanamz/tether/pkg/chats/message"
	"github.com/germanamz/tether/pkg/chats/turn"
	"github.com/germanamz/tether/pkg/modeladapter"
	"github.com/germanamz/tether/pkg/models"
	"github.com/germanamz/tether/pkg/tools/mcpclient"
	"github.com/germanamz/tether/pkg/tools/mcpserver"
	"github.com/germanamz/tether/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type step struct {
	reply modeladapter.Reply
	err   error
}

func textStep(text string) step {
	return step{reply: modeladapter.Reply{Text: text}}
}

func callStep(name string, args map[string]any) step {
	return step{reply: modeladapter.Reply{FunctionCall: &content.FunctionCall{Name: name, Args: args}}}
}

// scriptedCompleter answers each call with the next step. When gate is set
// every call signals entered and then waits for gate to close.
type scriptedCompleter struct {
	mu        sync.Mutex
	steps     []step
	repeat    *step
	models    []string
	histories [][]turn.Turn

	entered chan struct{}
	gate    chan struct{}
}

func script(steps ...step) *scriptedCompleter {
	return &scriptedCompleter{steps: steps}
}

func (c *scriptedCompleter) Complete(ctx context.Context, model string, history []turn.Turn, _ []toolbox.Declaration) (modeladapter.Reply, error) {
	c.mu.Lock()
	c.models = append(c.models, model)
	c.histories = append(c.histories, history)

	var s step
	switch {
	case len(c.steps) > 0:
		s = c.steps[0]
		c.steps = c.steps[1:]
	case c.repeat != nil:
		s = *c.repeat
	default:
		s = step{err: errors.New("script exhausted")}
	}
	entered, gate := c.entered, c.gate
	c.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return modeladapter.Reply{}, ctx.Err()
		}
	}

	return s.reply, s.err
}

func (c *scriptedCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.models)
}

// inMemoryFactory serves tools over a fresh in-memory connection per
// connection attempt.
func inMemoryFactory(t *testing.T, tools ...mcpserver.Tool) mcpclient.TransportFactory {
	t.Helper()

	server := mcpserver.New("test-server", "1.0.0")
	server.Register(tools...)

	return serveInMemory(t, server)
}

// serveInMemory connects every attempt to server over a fresh in-memory pipe.
func serveInMemory(t *testing.T, server *mcpserver.MCPServer) mcpclient.TransportFactory {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	return func() (mcp.Transport, error) {
		serverTransport, clientTransport := mcp.NewInMemoryTransports()
		wg.Go(func() {
			_ = server.Run(ctx, serverTransport)
		})
		return clientTransport, nil
	}
}

func unreachableFactory() mcpclient.TransportFactory {
	return func() (mcp.Transport, error) {
		return nil, errors.New("connection refused")
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

type recordedPost struct {
	mu   sync.Mutex
	args []map[string]any
}

func (r *recordedPost) all() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]map[string]any(nil), r.args...)
}

// postTool publishes a status and answers "posted".
func postTool(rec *recordedPost) mcpserver.Tool {
	return mcpserver.Tool{
		Tool: toolbox.Tool{Name: "createPost", Description: "Publish a status"},
		Handler: func(_ context.Context, args map[string]any) (*toolbox.Result, error) {
			if rec != nil {
				rec.mu.Lock()
				rec.args = append(rec.args, args)
				rec.mu.Unlock()
			}
			return toolbox.TextResult("posted"), nil
		},
	}
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()

	opts = append([]Option{WithConnectSleep(noSleep)}, opts...)
	eng, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return eng
}

// connectedSession returns a connected session backed by c and an in-memory
// tool server, and a subscription to its events.
func connectedSession(t *testing.T, cfg Config, c modeladapter.Completer, tools ...mcpserver.Tool) (*Session, *Subscription) {
	t.Helper()

	factory := inMemoryFactory(t, tools...)
	eng := newTestEngine(t, cfg, WithCompleter(c), WithTransportFactory(factory))

	sess, err := eng.NewSession()
	require.NoError(t, err)
	require.NoError(t, sess.Connect(context.Background()))

	sub := eng.Events().Subscribe(256)
	t.Cleanup(func() { eng.Events().Unsubscribe(sub) })

	return sess, sub
}

// drain returns the events buffered on sub.
func drain(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case e := <-sub.C:
			out = append(out, e)
		default:
			return out
		}
	}
}

func messagesOf(events []Event) []message.Message {
	var out []message.Message
	for _, e := range events {
		if e.Kind == EventMessage {
			out = append(out, e.Message)
		}
	}
	return out
}

func statesOf(events []Event) []agent.State {
	var out []agent.State
	for _, e := range events {
		if e.Kind == EventState {
			out = append(out, e.State)
		}
	}
	return out
}

// --- engine ---

func TestNew_Defaults(t *testing.T) {
	eng := newTestEngine(t, Defaults())

	assert.False(t, eng.InferenceAvailable())
	assert.Nil(t, eng.Usage())
	assert.Equal(t, "gemini-2.0-flash", eng.DefaultModel())
	assert.True(t, eng.Models().Has("gemini-1.5-pro"))
}

func TestNew_WithAPIKey(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.APIKey = "gm-test"
	cfg.Gateway.Model = "gemini-1.5-flash"

	eng := newTestEngine(t, cfg)

	assert.True(t, eng.InferenceAvailable())
	assert.NotNil(t, eng.Usage())
	assert.Equal(t, "gemini-1.5-flash", eng.DefaultModel())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Kind = "nope"

	_, err := New(cfg)
	assert.ErrorContains(t, err, "unknown gateway kind")
}

func TestNew_ModelsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[models]]
id = "local-small"
name = "Local Small"
recommended = true

[[models]]
id = "local-large"
name = "Local Large"
`), 0o600))

	cfg := Defaults()
	cfg.ModelsFile = path

	eng := newTestEngine(t, cfg)

	assert.Equal(t, "local-small", eng.DefaultModel())
	assert.Len(t, eng.Models().List(), 2)
}

func TestNew_ModelsFileMissing(t *testing.T) {
	cfg := Defaults()
	cfg.ModelsFile = filepath.Join(t.TempDir(), "absent.yaml")

	_, err := New(cfg)
	assert.ErrorContains(t, err, "engine: models")
}

func TestNew_NoModel(t *testing.T) {
	reg, err := models.New(models.Model{ID: "plain"})
	require.NoError(t, err)

	_, err = New(Defaults(), WithRegistry(reg))
	assert.ErrorContains(t, err, "no model configured")
}

func TestEngine_NewSession(t *testing.T) {
	eng := newTestEngine(t, Defaults())

	sess, err := eng.NewSession()
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID())
	assert.Equal(t, agent.StateIdle, sess.State())
	assert.Equal(t, eng.DefaultModel(), sess.Model())
	assert.False(t, sess.Connected())
	assert.Empty(t, sess.History())

	other, err := eng.NewSession()
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID(), other.ID())
	assert.Len(t, eng.sessions, 2)
}

func TestEngine_CloseClosesSessions(t *testing.T) {
	eng := newTestEngine(t, Defaults(), WithTransportFactory(inMemoryFactory(t, postTool(nil))))

	sess, err := eng.NewSession()
	require.NoError(t, err)
	require.NoError(t, sess.Connect(context.Background()))
	require.True(t, sess.Connected())

	require.NoError(t, eng.Close())

	assert.False(t, sess.Connected())
	assert.ErrorIs(t, sess.Connect(context.Background()), ErrSessionClosed)

	_, err = sess.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrSessionClosed)

	// Closing twice is harmless.
	assert.NoError(t, eng.Close())
}
