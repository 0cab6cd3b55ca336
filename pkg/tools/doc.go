// Package tools groups the tool-side building blocks of a session.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/tether/pkg/tools/schema]: typed tool parameter schemas
//   - [github.com/germanamz/tether/pkg/tools/toolbox]: tool catalog, function declarations and invocation results
//   - [github.com/germanamz/tether/pkg/tools/mcpclient]: resilient client for MCP tool servers
package tools
