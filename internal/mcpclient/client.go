package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fenwick-labs/toolgate/internal/mcptransport"
	"github.com/fenwick-labs/toolgate/internal/toolerr"
)

const protocolVersion = "2024-11-05"

// Client is an MCP client bound to a single upstream server over one
// Transport. A Client is not reusable after Close — the Connection Pool
// reuses a live Client and dials a fresh one only on a miss, after expiry,
// or after a discard.
type Client struct {
	transport mcptransport.Transport
	logger    *slog.Logger

	mu         sync.RWMutex
	tools      []ToolDescriptor
	resources  []ResourceDescriptor
	prompts    []PromptDescriptor
	serverInfo ServerInfo
}

// Dial connects a transport for d and performs the MCP initialize
// handshake, returning a ready Client.
func Dial(ctx context.Context, d mcptransport.Descriptor, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	t, err := mcptransport.Dial(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: dial: %w", err)
	}

	c := &Client{transport: t, logger: logger}
	if err := c.initialize(ctx); err != nil {
		t.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) initialize(ctx context.Context) error {
	resp, err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"roots": map[string]any{"listChanged": true},
		},
		"clientInfo": map[string]any{
			"name":    "toolgate",
			"version": "1.0.0",
		},
	})
	if err != nil {
		return fmt.Errorf("mcpclient: initialize: %w", err)
	}

	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("mcpclient: parse initialize result: %w", err)
	}
	c.serverInfo = result.ServerInfo
	c.logger.Info("connected to mcp server",
		"name", c.serverInfo.Name, "version", c.serverInfo.Version, "protocol", result.ProtocolVersion)

	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn("failed to send initialized notification", "error", err)
	}

	if err := c.RefreshCapabilities(ctx); err != nil {
		c.logger.Warn("failed to refresh capabilities", "error", err)
	}

	return nil
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Connected reports whether the underlying transport is still open.
func (c *Client) Connected() bool {
	return c.transport.Connected()
}

// ServerInfo returns the identity the server reported at initialize time.
func (c *Client) ServerInfo() ServerInfo {
	return c.serverInfo
}

// RefreshCapabilities re-lists tools, resources, and prompts from the
// server and replaces the cached copies.
func (c *Client) RefreshCapabilities(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if resp, err := c.transport.Call(ctx, "tools/list", nil); err == nil {
		var r listToolsResult
		if json.Unmarshal(resp.Result, &r) == nil {
			c.tools = r.Tools
		}
	}
	if resp, err := c.transport.Call(ctx, "resources/list", nil); err == nil {
		var r listResourcesResult
		if json.Unmarshal(resp.Result, &r) == nil {
			c.resources = r.Resources
		}
	}
	if resp, err := c.transport.Call(ctx, "prompts/list", nil); err == nil {
		var r listPromptsResult
		if json.Unmarshal(resp.Result, &r) == nil {
			c.prompts = r.Prompts
		}
	}
	return nil
}

// ListTools returns the cached tool list from the last RefreshCapabilities.
func (c *Client) ListTools() []ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// ListResources returns the cached resource list.
func (c *Client) ListResources() []ResourceDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resources
}

// ListPrompts returns the cached prompt list.
func (c *Client) ListPrompts() []PromptDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prompts
}

// CallTool invokes name on the server with the given arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error) {
	params := callToolParams{Name: name}
	if arguments != nil {
		argsJSON, err := json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: marshal arguments: %w", err)
		}
		params.Arguments = argsJSON
	}

	resp, err := c.transport.Call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}

	var result ToolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("mcpclient: parse tool call result: %w", err)
	}
	for _, part := range result.Content {
		if part.Type == "image" {
			return nil, toolerr.New(toolerr.KindProtocol, "mcpclient: tool %q returned an image content part, which is unsupported", name)
		}
	}
	return &result, nil
}

// ReadResource reads one resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]ResourceContent, error) {
	resp, err := c.transport.Call(ctx, "resources/read", map[string]any{"uri": uri})
	if err != nil {
		return nil, err
	}
	var result readResourceResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("mcpclient: parse resource result: %w", err)
	}
	return result.Contents, nil
}

// GetPrompt resolves one prompt template with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*getPromptResultPublic, error) {
	resp, err := c.transport.Call(ctx, "prompts/get", map[string]any{"name": name, "arguments": arguments})
	if err != nil {
		return nil, err
	}
	var result getPromptResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("mcpclient: parse prompt result: %w", err)
	}
	return &getPromptResultPublic{Description: result.Description, Messages: result.Messages}, nil
}

// getPromptResultPublic is GetPrompt's return type, named to keep the wire
// shape (getPromptResult) unexported while still giving callers a concrete
// type rather than an inline struct.
type getPromptResultPublic struct {
	Description string
	Messages    []PromptMessage
}

// Events delivers server notifications (e.g. tools/list_changed).
func (c *Client) Events() <-chan mcptransport.Notification {
	return c.transport.Events()
}

// SamplingHandler answers a server-initiated sampling/createMessage call.
type SamplingHandler func(ctx context.Context, req *SamplingRequest) (*SamplingResponse, error)

// HandleSampling starts a goroutine dispatching sampling requests to
// handler for the lifetime of the client. Calling it with a nil handler is
// a no-op.
func (c *Client) HandleSampling(handler SamplingHandler) {
	if handler == nil {
		return
	}
	go func() {
		for req := range c.transport.Requests() {
			if req.Method != "sampling/createMessage" {
				continue
			}
			go c.handleSamplingRequest(req, handler)
		}
	}()
}

func (c *Client) handleSamplingRequest(req mcptransport.Request, handler SamplingHandler) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var params SamplingRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			_ = c.transport.Respond(ctx, req.ID, nil, &mcptransport.RPCError{
				Code: mcptransport.ErrCodeInvalidParams, Message: "invalid sampling params",
			})
			return
		}
	}

	response, err := handler(ctx, &params)
	if err != nil {
		_ = c.transport.Respond(ctx, req.ID, nil, &mcptransport.RPCError{
			Code: mcptransport.ErrCodeInternalError, Message: err.Error(),
		})
		return
	}
	if response == nil {
		_ = c.transport.Respond(ctx, req.ID, nil, &mcptransport.RPCError{
			Code: mcptransport.ErrCodeInternalError, Message: "sampling handler returned nil response",
		})
		return
	}
	if err := c.transport.Respond(ctx, req.ID, response, nil); err != nil {
		c.logger.Warn("failed to respond to sampling request", "error", err)
	}
}
