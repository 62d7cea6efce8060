// Package registryclient implements the Registry Client (spec §4.7): a
// typed adapter over the Registry Service's five meta-tools. It knows the
// tool names and the JSON-tagged result envelope, and returns each call's
// raw tagged JSON block together with a short human summary. The Toolbox
// forwards the summary into the conversation and uses the JSON block only
// to auto-register the tools a query-tools call returns.
package registryclient

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
	"github.com/fenwick-labs/toolgate/internal/mcpclient"
	"github.com/fenwick-labs/toolgate/internal/pool"
	"github.com/fenwick-labs/toolgate/internal/registry"
)

// Outcome is one meta-tool call's result as the Toolbox sees it.
type Outcome struct {
	JSONBlock string // the full tagged text, e.g. "<registry-json>...</registry-json>"
	Summary   string
	IsError   bool
}

// Backend abstracts how a Client reaches the Registry Service: either an
// in-process *registry.Server (the CLI's default single-process mode) or a
// pooled connection to a standalone Registry Service process.
type Backend interface {
	call(ctx context.Context, name string, args map[string]any) (Outcome, error)
}

// Client is the Registry Client. It holds no registry state of its own
// beyond what Backend provides.
type Client struct {
	backend Backend
}

// NewInProcess builds a Client that dispatches directly to srv, with no
// wire serialization — used when the Registry Service runs in the same
// process as the Toolbox.
func NewInProcess(srv *registry.Server) *Client {
	return &Client{backend: inProcessBackend{srv: srv}}
}

// NewRemote builds a Client that dispatches through a pooled MCP
// connection to a standalone Registry Service process reachable at key.
func NewRemote(p *pool.Pool, key pool.Key) *Client {
	return &Client{backend: remoteBackend{pool: p, key: key}}
}

// Call dispatches one meta-tool invocation by name.
func (c *Client) Call(ctx context.Context, name string, args map[string]any) (Outcome, error) {
	return c.backend.call(ctx, name, args)
}

type inProcessBackend struct {
	srv *registry.Server
}

func (b inProcessBackend) call(ctx context.Context, name string, args map[string]any) (Outcome, error) {
	result, err := b.srv.Call(ctx, name, args)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{JSONBlock: result.JSONBlock, Summary: result.Summary, IsError: result.IsError}, nil
}

type remoteBackend struct {
	pool *pool.Pool
	key  pool.Key
}

func (b remoteBackend) call(ctx context.Context, name string, args map[string]any) (Outcome, error) {
	conn, err := b.pool.Acquire(ctx, b.key)
	if err != nil {
		return Outcome{}, fmt.Errorf("registryclient: acquire registry connection: %w", err)
	}
	client, ok := conn.(*mcpclient.Client)
	if !ok {
		return Outcome{}, fmt.Errorf("registryclient: unexpected connection type for registry backend")
	}

	result, err := client.CallTool(ctx, name, args)
	if err != nil {
		return Outcome{}, fmt.Errorf("registryclient: call %q: %w", name, err)
	}

	var jsonBlock, summary string
	for _, part := range result.Content {
		if jsonTagPattern.MatchString(part.Text) {
			jsonBlock = part.Text
		} else {
			summary = part.Text
		}
	}
	return Outcome{JSONBlock: jsonBlock, Summary: summary, IsError: result.IsError}, nil
}

var jsonTagPattern = regexp.MustCompile(`^<registry-json>`)

// tagContentPattern extracts the payload between the registry-json tags.
var tagContentPattern = regexp.MustCompile(`(?s)<registry-json>(.*)</registry-json>`)

// ParseQueryToolsOrigins parses a query-tools JSON-tagged block back into
// catalogue.ToolOrigin values, for the Toolbox's auto-register-after-query
// step.
func ParseQueryToolsOrigins(jsonBlock string) ([]catalogue.ToolOrigin, error) {
	m := tagContentPattern.FindStringSubmatch(jsonBlock)
	if m == nil {
		return nil, fmt.Errorf("registryclient: no registry-json tag found")
	}

	var wire []struct {
		Tool struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tool"`
		Server struct {
			URL       string `json:"url"`
			Type      string `json:"type"`
			AuthToken string `json:"authToken"`
		} `json:"server"`
	}
	if err := json.Unmarshal([]byte(m[1]), &wire); err != nil {
		return nil, fmt.Errorf("registryclient: parse query-tools payload: %w", err)
	}

	out := make([]catalogue.ToolOrigin, 0, len(wire))
	for _, w := range wire {
		// ID must stay a dialable "url::type" spec — the same notation
		// serverspec.Parse expects — so a tool discovered via query-tools
		// can still be acquired from the Connection Pool once registered.
		id := w.Server.URL
		if w.Server.Type != "" {
			id = w.Server.URL + "::" + w.Server.Type
		}
		out = append(out, catalogue.ToolOrigin{
			Server: catalogue.ServerDescriptor{
				ID:        id,
				Name:      w.Server.URL,
				URL:       w.Server.URL,
				Transport: w.Server.Type,
				AuthToken: w.Server.AuthToken,
			},
			Tool: catalogue.ToolDescriptor{
				Name:        w.Tool.Name,
				Description: w.Tool.Description,
				InputSchema: w.Tool.InputSchema,
			},
		})
	}
	return out, nil
}

// Descriptor is a tool's shape as the Toolbox needs it for availableTools.
type Descriptor struct {
	Name        string
	Description string
	InputSchema []byte
}

// MetaToolDescriptors returns the five Registry Service tools with the
// input schemas §4.6 specifies, for availableTools' meta-tools-last
// concatenation.
func MetaToolDescriptors() []Descriptor {
	return []Descriptor{
		{Name: registry.ToolQueryTools, Description: "Search the tool registry for tools matching a natural-language query.",
			InputSchema: []byte(`{"type":"object","properties":{"query":{"type":"string"},"limit":{"type":"number"}},"required":["query"]}`)},
		{Name: registry.ToolListTools, Description: "List every tool currently known to the registry.",
			InputSchema: []byte(`{"type":"object","properties":{"limit":{"type":"number"}}}`)},
		{Name: registry.ToolAddTool, Description: "Register a new tool descriptor directly with the registry.",
			InputSchema: []byte(`{"type":"object","properties":{"tool":{"type":"object"}},"required":["tool"]}`)},
		{Name: registry.ToolAddServer, Description: "Connect to an MCP server by \"url::type\" spec and register all of its tools.",
			InputSchema: []byte(`{"type":"object","properties":{"serverString":{"type":"string"},"authToken":{"type":"string"}},"required":["serverString"]}`)},
		{Name: registry.ToolDeleteTool, Description: "Remove a tool from the registry by name.",
			InputSchema: []byte(`{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`)},
	}
}
