package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/fenwick-labs/toolgate/internal/mcptransport"
)

const protocolVersion = "2024-11-05"

// ServeStdio runs the Registry Service as a standalone MCP server speaking
// newline-delimited JSON-RPC over r/w, blocking until r is closed, or until
// the next line arrives after ctx is canceled (ctx is checked once per line
// read, so a cancel alone does not interrupt a blocked read). This is how spec §6's "the Registry Service is itself an MCP
// server" is realized as a runnable process, symmetric with the stdio
// Transport's framing on the client side.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "registry-server")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req mcptransport.Request
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn("discarding malformed request", "error", err)
			continue
		}

		resp := s.handle(ctx, req)
		if resp == nil {
			continue // notification: no response expected
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("registry: write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("registry: read loop: %w", err)
	}
	return nil
}

// handle dispatches one JSON-RPC request to the matching MCP server
// method, returning nil for notifications (no id).
func (s *Server) handle(ctx context.Context, req mcptransport.Request) *mcptransport.Response {
	if req.ID == nil && req.Method != "" && isNotification(req.Method) {
		return nil
	}

	var result any
	var rpcErr *mcptransport.RPCError

	switch req.Method {
	case "initialize":
		result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "toolgate-registry", "version": "1.0.0"},
		}
	case "tools/list":
		result = map[string]any{"tools": toolListings()}
	case "tools/call":
		var params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				rpcErr = &mcptransport.RPCError{Code: mcptransport.ErrCodeInvalidParams, Message: err.Error()}
				break
			}
		}
		var args map[string]any
		if len(params.Arguments) > 0 {
			if err := json.Unmarshal(params.Arguments, &args); err != nil {
				rpcErr = &mcptransport.RPCError{Code: mcptransport.ErrCodeInvalidParams, Message: "malformed arguments"}
				break
			}
		}
		callResult, err := s.Call(ctx, params.Name, args)
		if err != nil {
			rpcErr = &mcptransport.RPCError{Code: mcptransport.ErrCodeInternalError, Message: err.Error()}
			break
		}
		result = map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": callResult.JSONBlock},
				{"type": "text", "text": callResult.Summary},
			},
			"isError": callResult.IsError,
		}
	default:
		rpcErr = &mcptransport.RPCError{Code: mcptransport.ErrCodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)}
	}

	resp := &mcptransport.Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
		return resp
	}
	data, err := json.Marshal(result)
	if err != nil {
		resp.Error = &mcptransport.RPCError{Code: mcptransport.ErrCodeInternalError, Message: err.Error()}
		return resp
	}
	resp.Result = data
	return resp
}

func isNotification(method string) bool {
	return strings.HasPrefix(method, "notifications/")
}

// toolListing is the tools/list wire shape for one meta-tool.
type toolListing struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

func toolListings() []toolListing {
	return []toolListing{
		{Name: ToolQueryTools, Description: "Search the tool registry for tools matching a natural-language query.",
			InputSchema: schemaObj(map[string]string{"query": "string", "limit": "number"}, "query")},
		{Name: ToolListTools, Description: "List every tool currently known to the registry.",
			InputSchema: schemaObj(map[string]string{"limit": "number"})},
		{Name: ToolAddTool, Description: "Register a new tool descriptor directly with the registry.",
			InputSchema: schemaObj(map[string]string{"tool": "object"}, "tool")},
		{Name: ToolAddServer, Description: "Connect to an MCP server by \"url::type\" spec and register all of its tools.",
			InputSchema: schemaObj(map[string]string{"serverString": "string", "authToken": "string"}, "serverString")},
		{Name: ToolDeleteTool, Description: "Remove a tool from the registry by name.",
			InputSchema: schemaObj(map[string]string{"name": "string"}, "name")},
	}
}

func schemaObj(props map[string]string, required ...string) map[string]any {
	p := make(map[string]any, len(props))
	for k, t := range props {
		p[k] = map[string]any{"type": t}
	}
	s := map[string]any{"type": "object", "properties": p}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
