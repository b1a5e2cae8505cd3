// Package client provides the Client facade: a single connected MCP server
// session exposing initialize/listTools/callTool/listResources/readResource
// /listPrompts/getPrompt over a protocol.Engine, per spec.md §4.3.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golemhq/golemmcp/pkg/mcp"
	"github.com/golemhq/golemmcp/pkg/mcp/protocol"
	"github.com/golemhq/golemmcp/pkg/mcp/stdio"
)

// DefaultClientName/Version identify this host to every server it connects
// to during the initialize handshake.
const (
	DefaultClientName    = "golemmcp"
	DefaultClientVersion = "0.1.0"
)

// Client is a single connected MCP server session. It lazily caches the
// tool list returned by the server until the caller explicitly refreshes
// it, avoiding a round trip on every ListTools call.
type Client struct {
	engine *protocol.Engine
	info   *mcp.InitializeResult

	mu        sync.Mutex
	toolCache []mcp.Tool
	haveTools bool
}

// Connect starts transport, performs the MCP handshake, and returns a ready
// Client.
func Connect(ctx context.Context, transport stdio.Transport, timeout time.Duration) (*Client, error) {
	if err := transport.Start(ctx); err != nil {
		return nil, err
	}
	return ConnectWithTransport(ctx, transport, timeout)
}

// ConnectWithTransport performs the handshake over an already-started
// transport (used by callers, like tests, that want to control Start
// separately).
func ConnectWithTransport(ctx context.Context, transport stdio.Transport, timeout time.Duration) (*Client, error) {
	engine := protocol.NewEngine(transport)
	result, err := engine.Initialize(ctx, mcp.EntityInfo{Name: DefaultClientName, Version: DefaultClientVersion}, timeout)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	return &Client{engine: engine, info: result}, nil
}

// ServerInfo returns the server's self-reported identity from the
// handshake.
func (c *Client) ServerInfo() mcp.EntityInfo { return c.info.ServerInfo }

// Disconnect shuts down the protocol engine and closes the transport.
func (c *Client) Disconnect() error { return c.engine.Shutdown() }

// OnNotification forwards to the underlying engine so callers can observe
// server-initiated notifications (e.g. tools/list_changed).
func (c *Client) OnNotification(fn func(method string, params json.RawMessage)) {
	c.engine.OnNotification(fn)
}

// ListTools returns the server's advertised tools, using the cached copy
// unless refresh is true.
func (c *Client) ListTools(ctx context.Context, refresh bool, timeout time.Duration) ([]mcp.Tool, error) {
	c.mu.Lock()
	if c.haveTools && !refresh {
		tools := c.toolCache
		c.mu.Unlock()
		return tools, nil
	}
	c.mu.Unlock()

	var all []mcp.Tool
	cursor := ""
	for {
		raw, err := c.engine.Request(ctx, "tools/list", mcp.ToolsListParams{Cursor: cursor}, timeout)
		if err != nil {
			return nil, err
		}
		var page mcp.ToolsListResult
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("client: decode tools/list: %w", err)
		}
		all = append(all, page.Tools...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	c.mu.Lock()
	c.toolCache = all
	c.haveTools = true
	c.mu.Unlock()
	return all, nil
}

// GetTool looks up a single tool by name from the cached (or freshly
// fetched) tool list.
func (c *Client) GetTool(ctx context.Context, name string, timeout time.Duration) (*mcp.Tool, error) {
	tools, err := c.ListTools(ctx, false, timeout)
	if err != nil {
		return nil, err
	}
	for i := range tools {
		if tools[i].Name == name {
			return &tools[i], nil
		}
	}
	return nil, nil
}

// CallTool invokes a tool by name with the given arguments.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any, timeout time.Duration) (*mcp.ToolCallResult, error) {
	raw, err := c.engine.Request(ctx, "tools/call", mcp.ToolCallParams{Name: name, Arguments: args}, timeout)
	if err != nil {
		return nil, err
	}
	var result mcp.ToolCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("client: decode tools/call: %w", err)
	}
	return &result, nil
}

// ListResources returns the server's resources, unpaginated aggregation of
// every cursor page.
func (c *Client) ListResources(ctx context.Context, timeout time.Duration) ([]map[string]any, error) {
	var all []map[string]any
	cursor := ""
	for {
		raw, err := c.engine.Request(ctx, "resources/list", mcp.ResourcesListParams{Cursor: cursor}, timeout)
		if err != nil {
			return nil, err
		}
		var page mcp.ResourcesListResult
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("client: decode resources/list: %w", err)
		}
		all = append(all, page.Resources...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return all, nil
}

// ReadResource fetches a single resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string, timeout time.Duration) (*mcp.ResourceReadResult, error) {
	raw, err := c.engine.Request(ctx, "resources/read", mcp.ResourceReadParams{URI: uri}, timeout)
	if err != nil {
		return nil, err
	}
	var result mcp.ResourceReadResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("client: decode resources/read: %w", err)
	}
	return &result, nil
}

// ListPrompts returns the server's prompts, unpaginated.
func (c *Client) ListPrompts(ctx context.Context, timeout time.Duration) ([]map[string]any, error) {
	var all []map[string]any
	cursor := ""
	for {
		raw, err := c.engine.Request(ctx, "prompts/list", mcp.PromptsListParams{Cursor: cursor}, timeout)
		if err != nil {
			return nil, err
		}
		var page mcp.PromptsListResult
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("client: decode prompts/list: %w", err)
		}
		all = append(all, page.Prompts...)
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return all, nil
}

// GetPrompt fetches a single prompt by name with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]any, timeout time.Duration) (mcp.PromptGetResult, error) {
	raw, err := c.engine.Request(ctx, "prompts/get", mcp.PromptGetParams{Name: name, Arguments: args}, timeout)
	if err != nil {
		return nil, err
	}
	var result mcp.PromptGetResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("client: decode prompts/get: %w", err)
	}
	return result, nil
}
