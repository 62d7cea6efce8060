// Package toolbox implements the Toolbox: the active tool set an Agent
// Loop dispatches against. It holds locally-known tool descriptors,
// name-to-server bindings, the Connection Pool, and the Registry Client,
// and is the single place tool-name uniqueness (I2) and registry-tool
// dispatch precedence (I4) are enforced.
package toolbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
	"github.com/fenwick-labs/toolgate/internal/convo"
	"github.com/fenwick-labs/toolgate/internal/mcpclient"
	"github.com/fenwick-labs/toolgate/internal/pool"
	"github.com/fenwick-labs/toolgate/internal/registry"
	"github.com/fenwick-labs/toolgate/internal/registryclient"
	"github.com/fenwick-labs/toolgate/internal/toolerr"
)

// entry binds one locally-known tool to the server that exposes it.
type entry struct {
	tool   mcpclient.ToolDescriptor
	server catalogue.ServerDescriptor
}

// Toolbox is the active tool set for one agent session.
type Toolbox struct {
	mu sync.Mutex

	order   []string // insertion order, for availableTools' stable ordering
	tools   map[string]entry
	pool    *pool.Pool
	client  *registryclient.Client
	logger  *slog.Logger

	dispatches *prometheus.CounterVec
}

// New constructs a Toolbox over a Connection Pool and a Registry Client.
func New(p *pool.Pool, rc *registryclient.Client, logger *slog.Logger) *Toolbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolbox{
		tools:  make(map[string]entry),
		pool:   p,
		client: rc,
		logger: logger.With("component", "toolbox"),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolgate_toolbox_dispatch_total",
			Help: "Toolbox tool dispatch outcomes by tool name and outcome.",
		}, []string{"tool", "outcome"}),
	}
}

// Collector exposes the Toolbox's prometheus metrics for registration by
// the caller.
func (tb *Toolbox) Collector() prometheus.Collector { return tb.dispatches }

// AvailableTool is one entry in availableTools' result. It does not record
// whether the tool is a registry meta-tool; meta-tools are always listed
// last.
type AvailableTool struct {
	Name        string
	Description string
	InputSchema []byte
}

// AvailableTools returns locally-known tools (insertion order) followed by
// the Registry Service's meta-tools, stable across calls within a turn.
func (tb *Toolbox) AvailableTools() []AvailableTool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	out := make([]AvailableTool, 0, len(tb.order)+len(registry.MetaToolNames))
	for _, name := range tb.order {
		e := tb.tools[name]
		out = append(out, AvailableTool{Name: e.tool.Name, Description: e.tool.Description, InputSchema: e.tool.InputSchema})
	}
	for _, d := range registryclient.MetaToolDescriptors() {
		out = append(out, AvailableTool{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema})
	}
	return out
}

// ConnectToServer is the eager path (§4.8): dial server, list its tools,
// reject the whole batch on any name conflict with a different origin
// (same server re-registering the same name is a no-op), otherwise
// install every tool.
func (tb *Toolbox) ConnectToServer(ctx context.Context, server catalogue.ServerDescriptor) error {
	conn, err := tb.pool.Acquire(ctx, pool.Key(server.ID))
	if err != nil {
		return toolerr.Wrap(toolerr.KindTransport, err, "toolbox: connect %q", server.ID)
	}
	c, ok := conn.(*mcpclient.Client)
	if !ok {
		return toolerr.New(toolerr.KindTransport, "toolbox: pool returned unexpected connection type for %q", server.ID)
	}
	remoteTools := c.ListTools()

	tb.mu.Lock()
	defer tb.mu.Unlock()

	var conflicts []string
	for _, rt := range remoteTools {
		if existing, ok := tb.tools[rt.Name]; ok && existing.server.ID != server.ID {
			conflicts = append(conflicts, rt.Name)
		}
	}
	if len(conflicts) > 0 {
		return toolerr.New(toolerr.KindRegistration, "toolbox: connectToServer(%q) rejected: tool name conflict(s) with existing origins: %v", server.ID, conflicts)
	}

	for _, rt := range remoteTools {
		tb.installLocked(rt.Name, entry{tool: rt, server: server})
	}
	return nil
}

// RegisterTools is the lazy path (§4.8): record descriptors and origins
// without opening any connection. A name already bound to a different
// server is rejected per I2, applied uniformly with the eager path.
func (tb *Toolbox) RegisterTools(origins []catalogue.ToolOrigin) error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	for _, o := range origins {
		if existing, ok := tb.tools[o.Tool.Name]; ok && existing.server.ID != o.Server.ID {
			return toolerr.New(toolerr.KindRegistration, "toolbox: registerTools rejected: tool %q already bound to server %q, cannot also bind to %q",
				o.Tool.Name, existing.server.ID, o.Server.ID)
		}
	}
	for _, o := range origins {
		tb.installLocked(o.Tool.Name, entry{
			tool:   mcpclient.ToolDescriptor{Name: o.Tool.Name, Description: o.Tool.Description, InputSchema: o.Tool.InputSchema},
			server: o.Server,
		})
	}
	return nil
}

func (tb *Toolbox) installLocked(name string, e entry) {
	if _, exists := tb.tools[name]; !exists {
		tb.order = append(tb.order, name)
	}
	tb.tools[name] = e
}

// ExecuteTool dispatches one ToolUse block to produce its ToolResult,
// implementing §4.8's three-way routing: registry meta-tools, known
// origins, and the unknown-tool diagnostic path.
func (tb *Toolbox) ExecuteTool(ctx context.Context, use convo.ToolUse) convo.ToolResult {
	if registry.IsMetaTool(use.ToolName) {
		return tb.executeMetaTool(ctx, use)
	}

	tb.mu.Lock()
	e, ok := tb.tools[use.ToolName]
	tb.mu.Unlock()
	if !ok {
		tb.dispatches.WithLabelValues(use.ToolName, "unknown_tool").Inc()
		return convo.ToolResult{
			ToolUseID: use.ID,
			Content:   fmt.Sprintf("unknown tool %q: not registered in this session", use.ToolName),
			IsError:   true,
		}
	}

	if err := validateArguments(e.tool.InputSchema, use.Arguments); err != nil {
		tb.dispatches.WithLabelValues(use.ToolName, "schema_error").Inc()
		return convo.ToolResult{ToolUseID: use.ID, Content: fmt.Sprintf("argument validation failed: %v", err), IsError: true}
	}

	conn, err := tb.pool.Acquire(ctx, pool.Key(e.server.ID))
	if err != nil {
		tb.dispatches.WithLabelValues(use.ToolName, "tool_error").Inc()
		return convo.ToolResult{ToolUseID: use.ID, Content: fmt.Sprintf("failed to connect to %q: %v", e.server.ID, err), IsError: true}
	}
	c, ok := conn.(*mcpclient.Client)
	if !ok {
		tb.dispatches.WithLabelValues(use.ToolName, "tool_error").Inc()
		return convo.ToolResult{ToolUseID: use.ID, Content: fmt.Sprintf("unexpected connection type for %q", e.server.ID), IsError: true}
	}

	result, err := c.CallTool(ctx, use.ToolName, use.Arguments)
	if err != nil {
		// A Go error here is a transport failure (connect/send/receive), a
		// JSON-RPC error reply, an unparseable result, or a rejected image
		// part — not a result flagged isError by the tool. Whatever the
		// cause, the connection is discarded so the next Acquire redials
		// rather than reusing a possibly broken one.
		tb.pool.Discard(pool.Key(e.server.ID))
		tb.dispatches.WithLabelValues(use.ToolName, "tool_error").Inc()
		return convo.ToolResult{ToolUseID: use.ID, Content: fmt.Sprintf("tool call failed: %v", err), IsError: true}
	}

	tb.dispatches.WithLabelValues(use.ToolName, outcomeLabel(result.IsError)).Inc()
	return convo.ToolResult{ToolUseID: use.ID, Content: renderContent(result.Content), IsError: result.IsError}
}

func outcomeLabel(isError bool) string {
	if isError {
		return "tool_error"
	}
	return "ok"
}

// executeMetaTool delegates to the Registry Client and, after a successful
// query-tools, auto-registers the returned origins so later turns can
// dispatch them without another query. The ToolResult's text is the short
// human summary, never the raw JSON, to conserve prompt context. If that
// auto-registration is rejected (a returned name is already bound to a
// different server), the result is an error carrying the summary and the
// rejection.
func (tb *Toolbox) executeMetaTool(ctx context.Context, use convo.ToolUse) convo.ToolResult {
	outcome, err := tb.client.Call(ctx, use.ToolName, use.Arguments)
	if err != nil {
		tb.dispatches.WithLabelValues(use.ToolName, "tool_error").Inc()
		return convo.ToolResult{ToolUseID: use.ID, Content: err.Error(), IsError: true}
	}

	if use.ToolName == registry.ToolQueryTools && !outcome.IsError {
		origins, parseErr := registryclient.ParseQueryToolsOrigins(outcome.JSONBlock)
		if parseErr == nil && len(origins) > 0 {
			if regErr := tb.RegisterTools(origins); regErr != nil {
				tb.logger.Warn("auto-register after query-tools failed", "error", regErr)
				tb.dispatches.WithLabelValues(use.ToolName, "tool_error").Inc()
				return convo.ToolResult{
					ToolUseID: use.ID,
					Content:   fmt.Sprintf("%s\nauto-registration failed: %v", outcome.Summary, regErr),
					IsError:   true,
				}
			}
		}
	}

	tb.dispatches.WithLabelValues(use.ToolName, outcomeLabel(outcome.IsError)).Inc()
	return convo.ToolResult{ToolUseID: use.ID, Content: outcome.Summary, IsError: outcome.IsError}
}

func renderContent(parts []mcpclient.MessageContent) string {
	var out string
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p.Text
	}
	return out
}
