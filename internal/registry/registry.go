// Package registry implements the Registry Service: a meta-MCP server that
// sits in front of the Tool Catalogue and exposes five tools — query-tools,
// list-tools, add-tool, add-server, delete-tool — to the conversational
// agent. Every call returns two content parts: a JSON-tagged block a
// Registry Client can parse mechanically, and a short human-readable
// summary meant for the conversation transcript.
package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
)

// Names of the five meta-tools the Registry Service exposes. The Toolbox
// uses these to give registry-tool dispatch precedence over any registered
// tool of the same name (I4).
const (
	ToolQueryTools  = "query-tools"
	ToolListTools   = "list-tools"
	ToolAddTool     = "add-tool"
	ToolAddServer   = "add-server"
	ToolDeleteTool  = "delete-tool"
)

// MetaToolNames lists every registry-owned tool name, in a stable order.
var MetaToolNames = []string{ToolQueryTools, ToolListTools, ToolAddTool, ToolAddServer, ToolDeleteTool}

// IsMetaTool reports whether name is a registry-owned meta-tool.
func IsMetaTool(name string) bool {
	for _, n := range MetaToolNames {
		if n == name {
			return true
		}
	}
	return false
}

// Server is the Registry Service. It holds no network state of its own —
// it is a pure dispatcher over a Catalogue, callable in-process or wrapped
// by an MCP transport for standalone `toolgate serve` use.
type Server struct {
	catalogue *catalogue.Catalogue
}

// New constructs a Server over cat.
func New(cat *catalogue.Catalogue) *Server {
	return &Server{catalogue: cat}
}

// Result is what a meta-tool call returns: a JSON-tagged block a
// RegistryClient can parse, and a short prose summary.
type Result struct {
	JSONBlock string
	Summary   string
	IsError   bool
}

// Call dispatches one meta-tool invocation by name.
func (s *Server) Call(ctx context.Context, name string, args map[string]any) (Result, error) {
	switch name {
	case ToolQueryTools:
		return s.queryTools(ctx, args)
	case ToolListTools:
		return s.listTools(ctx, args)
	case ToolAddTool:
		return s.addTool(ctx, args)
	case ToolAddServer:
		return s.addServer(ctx, args)
	case ToolDeleteTool:
		return s.deleteTool(ctx, args)
	default:
		return Result{}, fmt.Errorf("registry: unknown meta-tool %q", name)
	}
}

func errResult(format string, a ...any) (Result, error) {
	msg := fmt.Sprintf(format, a...)
	return Result{JSONBlock: encodeTag(nil), Summary: msg, IsError: true}, nil
}

func encodeTag(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{"error":"failed to encode registry response"}`)
	}
	return "<registry-json>" + string(data) + "</registry-json>"
}
