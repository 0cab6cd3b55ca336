// Package mcpserver serves tools over MCP using the official MCP Go SDK. It
// backs the bundled demo tool server and the client tests.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/germanamz/tether/pkg/tools/toolbox"
	"github.com/germanamz/tether/pkg/tools/wsrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Handler executes a tool with decoded arguments.
type Handler func(ctx context.Context, args map[string]any) (*toolbox.Result, error)

// Tool pairs a tool descriptor with its handler.
type Tool struct {
	toolbox.Tool
	Handler Handler
}

// MCPServer serves tools over the MCP protocol.
type MCPServer struct {
	server *mcp.Server
}

// New creates a new MCPServer with the given name and version.
func New(name, version string) *MCPServer {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, nil)

	return &MCPServer{server: server}
}

// Register adds tools to the server.
func (s *MCPServer) Register(tools ...Tool) {
	for _, t := range tools {
		s.server.AddTool(toSDKTool(t.Tool), toSDKHandler(t.Handler))
	}
}

// Use installs middleware around every request the server receives.
func (s *MCPServer) Use(mw ...mcp.Middleware) {
	s.server.AddReceivingMiddleware(mw...)
}

// Serve reads requests from in and writes responses to out. It blocks until
// ctx is cancelled or the transport closes.
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	}

	return s.Run(ctx, transport)
}

// Run serves a single connection on the given transport.
func (s *MCPServer) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// HTTPHandler serves the streamable HTTP transport.
func (s *MCPServer) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// SSEHandler serves the legacy HTTP+SSE transport.
func (s *MCPServer) SSEHandler() http.Handler {
	return mcp.NewSSEHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// WebSocketHandler serves JSON-RPC over WebSocket.
func (s *MCPServer) WebSocketHandler() http.Handler {
	return wsrpc.Handler(func(*http.Request) *mcp.Server {
		return s.server
	})
}

// toSDKTool converts a descriptor into an SDK tool. The SDK requires an object
// input schema, which the declaration defaults guarantee.
func toSDKTool(t toolbox.Tool) *mcp.Tool {
	params := t.Declaration().Parameters

	return &mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: params,
	}
}

// toSDKHandler wraps a Handler as an SDK ToolHandler. Handler errors become
// results flagged IsError so the caller sees the message.
func toSDKHandler(h Handler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return nil, fmt.Errorf("mcpserver: decode arguments: %w", err)
			}
		}

		result, err := h(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		return toSDKResult(result), nil
	}
}

func toSDKResult(r *toolbox.Result) *mcp.CallToolResult {
	out := &mcp.CallToolResult{Content: []mcp.Content{}}
	if r == nil {
		return out
	}

	for _, b := range r.Content {
		out.Content = append(out.Content, &mcp.TextContent{Text: b.Text})
	}
	out.IsError = r.IsError

	return out
}

// nopWriteCloser wraps an io.Writer as an io.WriteCloser with a no-op Close.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
