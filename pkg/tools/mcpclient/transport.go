package mcpclient

import (
	"fmt"
	"net/http"
	"os/exec"

	"github.com/germanamz/tether/pkg/tools/wsrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TransportKind selects how the client reaches the tool server.
type TransportKind string

const (
	TransportStreamable TransportKind = "streamable"
	TransportSSE        TransportKind = "sse"
	TransportWebSocket  TransportKind = "websocket"
	TransportCommand    TransportKind = "command"
)

// Valid reports whether k is a known transport kind.
func (k TransportKind) Valid() bool {
	switch k {
	case TransportStreamable, TransportSSE, TransportWebSocket, TransportCommand:
		return true
	}
	return false
}

// TransportFactory builds a fresh transport for one connection attempt.
type TransportFactory func() (mcp.Transport, error)

// newTransportFactory returns the factory for cfg. Every attempt gets a new
// transport because command transports cannot be restarted.
func newTransportFactory(cfg Config) (TransportFactory, error) {
	switch cfg.Transport {
	case TransportStreamable:
		return func() (mcp.Transport, error) {
			return &mcp.StreamableClientTransport{
				Endpoint:   cfg.Endpoint,
				HTTPClient: httpClient(cfg.Headers),
			}, nil
		}, nil
	case TransportSSE:
		return func() (mcp.Transport, error) {
			return &mcp.SSEClientTransport{
				Endpoint:   cfg.Endpoint,
				HTTPClient: httpClient(cfg.Headers),
			}, nil
		}, nil
	case TransportWebSocket:
		return func() (mcp.Transport, error) {
			h := make(http.Header, len(cfg.Headers))
			for k, v := range cfg.Headers {
				h.Set(k, v)
			}
			return &wsrpc.Transport{URL: cfg.Endpoint, Header: h}, nil
		}, nil
	case TransportCommand:
		return func() (mcp.Transport, error) {
			return &mcp.CommandTransport{
				Command: exec.Command(cfg.Command, cfg.Args...), //nolint:gosec // command comes from configuration
			}, nil
		}, nil
	default:
		return nil, fmt.Errorf("mcpclient: unknown transport %q", cfg.Transport)
	}
}

// httpClient returns a client that adds headers to every request, or the
// default client when there are none.
func httpClient(headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return http.DefaultClient
	}

	return &http.Client{
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			headers: headers,
		},
	}
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
