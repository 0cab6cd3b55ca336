// Package wsrpc carries MCP JSON-RPC messages over a WebSocket, one message
// per text frame. It provides a client Transport and an http.Handler that
// serves an MCP server on accepted connections.
package wsrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Subprotocol is the WebSocket subprotocol negotiated by both ends.
const Subprotocol = "mcp"

// readLimit bounds a single JSON-RPC frame.
const readLimit = 8 << 20

var _ mcp.Transport = (*Transport)(nil)

// Transport dials an MCP server over WebSocket.
type Transport struct {
	URL        string       // ws:// or wss:// endpoint.
	Header     http.Header  // Extra handshake headers.
	HTTPClient *http.Client // Optional; defaults to http.DefaultClient.
}

// Connect dials the endpoint and returns the connection.
func (t *Transport) Connect(ctx context.Context) (mcp.Connection, error) {
	ws, _, err := websocket.Dial(ctx, t.URL, &websocket.DialOptions{
		HTTPClient:   t.HTTPClient,
		HTTPHeader:   t.Header,
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("wsrpc: dial %s: %w", t.URL, err)
	}

	return NewConn(ws), nil
}

var _ mcp.Connection = (*Conn)(nil)

// Conn adapts a WebSocket connection to mcp.Connection.
type Conn struct {
	ws *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established WebSocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	ws.SetReadLimit(readLimit)
	return &Conn{ws: ws}
}

// Read returns the next JSON-RPC message. A normal close by the peer is
// reported as io.EOF.
func (c *Conn) Read(ctx context.Context) (jsonrpc.Message, error) {
	typ, data, err := c.ws.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, io.EOF
		}
		return nil, fmt.Errorf("wsrpc: read: %w", err)
	}

	if typ != websocket.MessageText {
		return nil, errors.New("wsrpc: read: unexpected binary frame")
	}

	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return nil, fmt.Errorf("wsrpc: decode: %w", err)
	}

	return msg, nil
}

// Write sends msg as a single text frame.
func (c *Conn) Write(ctx context.Context, msg jsonrpc.Message) error {
	data, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("wsrpc: encode: %w", err)
	}

	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("wsrpc: write: %w", err)
	}

	return nil
}

// Close performs the closing handshake. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		err := c.ws.Close(websocket.StatusNormalClosure, "")
		// A peer that already closed its side is not an error for us.
		if err != nil && websocket.CloseStatus(err) == -1 && !errors.Is(err, net.ErrClosed) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

// SessionID is empty: WebSocket connections carry no MCP session header.
func (c *Conn) SessionID() string { return "" }

// connTransport hands out an already accepted connection.
type connTransport struct {
	conn *Conn
}

func (t connTransport) Connect(context.Context) (mcp.Connection, error) {
	return t.conn, nil
}

// Handler returns an http.Handler that upgrades each request to a WebSocket
// and serves the MCP server returned by getServer on it until either side
// closes.
func Handler(getServer func(*http.Request) *mcp.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server := getServer(r)
		if server == nil {
			http.Error(w, "no server", http.StatusNotFound)
			return
		}

		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{Subprotocol},
		})
		if err != nil {
			return
		}

		conn := NewConn(ws)
		defer func() { _ = conn.Close() }()

		_ = server.Run(r.Context(), connTransport{conn: conn})
	})
}
