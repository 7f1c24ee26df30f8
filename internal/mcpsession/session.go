// Package mcpsession wraps a single long-lived MCP stdio client
// connection (spec.md §1's "opaque MCP session": list_tools, call_tool,
// ping/close), owned exclusively by the daemon wrapper.
package mcpsession

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	sdkclient "github.com/mark3labs/mcp-go/client"
	sdkmcp "github.com/mark3labs/mcp-go/mcp"
)

// Tool is one entry from listTools, kept as the raw MCP tool shape so the
// IPC layer can forward it to the CLI without lossy reshaping.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Session owns one MCP stdio client for the lifetime of a daemon process.
// Safe for concurrent use: one read/write lock guards the client handle.
// ListTools/CallTool read the handle under the read lock and then call the
// client without holding it, so calls run concurrently; Close takes the
// write lock.
type Session struct {
	mu    sync.RWMutex
	inner sdkclient.MCPClient
}

// Connect starts the MCP server as a child process over stdio and
// performs the MCP initialize handshake (spec.md §4.8 step 3). env is
// the fully-merged environment (ambient minus reserved keys, overlaid
// with the server's configured env) the child process should see.
func Connect(ctx context.Context, command string, args []string, env map[string]string) (*Session, error) {
	envList := make([]string, 0, len(env))
	for k, v := range env {
		envList = append(envList, k+"="+v)
	}

	cli, err := sdkclient.NewStdioMCPClient(command, envList, args...)
	if err != nil {
		return nil, fmt.Errorf("mcpsession: start %q: %w", command, err)
	}

	_, err = cli.Initialize(ctx, sdkmcp.InitializeRequest{
		Params: sdkmcp.InitializeParams{
			ProtocolVersion: sdkmcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: sdkmcp.Implementation{
				Name:    "mcpli",
				Version: "0.1.0",
			},
		},
	})
	if err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("mcpsession: initialize %q: %w", command, err)
	}

	return &Session{inner: cli}, nil
}

// ListTools returns the server's full tool catalog.
func (s *Session) ListTools(ctx context.Context) ([]Tool, error) {
	s.mu.RLock()
	inner := s.inner
	s.mu.RUnlock()
	if inner == nil {
		return nil, fmt.Errorf("mcpsession: not connected")
	}

	result, err := inner.ListTools(ctx, sdkmcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("mcpsession: list tools: %w", err)
	}

	tools := make([]Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage("{}")
		}
		tools = append(tools, Tool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	return tools, nil
}

// CallTool invokes name with args, bounded by ctx (the caller is
// responsible for deriving ctx from the configured tool timeout and for
// cancelling it on cancelCall, per spec.md §4.8).
func (s *Session) CallTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	s.mu.RLock()
	inner := s.inner
	s.mu.RUnlock()
	if inner == nil {
		return nil, fmt.Errorf("mcpsession: not connected")
	}

	req := sdkmcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := inner.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcpsession: call tool %q: %w", name, err)
	}

	if result.IsError {
		return nil, toolError(result)
	}
	return contentOf(result), nil
}

func contentOf(result *sdkmcp.CallToolResult) interface{} {
	parts := make([]interface{}, 0, len(result.Content))
	for _, c := range result.Content {
		switch v := c.(type) {
		case sdkmcp.TextContent:
			parts = append(parts, map[string]interface{}{"type": "text", "text": v.Text})
		default:
			parts = append(parts, v)
		}
	}
	return map[string]interface{}{"content": parts}
}

func toolError(result *sdkmcp.CallToolResult) error {
	for _, c := range result.Content {
		if tc, ok := c.(sdkmcp.TextContent); ok {
			return fmt.Errorf("%s", tc.Text)
		}
	}
	return fmt.Errorf("tool call failed")
}

// Ping is answered locally by the daemon wrapper without reaching the MCP
// layer (spec.md §4.8: `ping` -> `"pong"`); Session exposes no RPC for it.

// Close terminates the MCP server process and releases resources.
func (s *Session) Close() error {
	s.mu.Lock()
	inner := s.inner
	s.inner = nil
	s.mu.Unlock()
	if inner == nil {
		return nil
	}
	return inner.Close()
}
