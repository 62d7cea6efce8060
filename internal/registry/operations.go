package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
	"github.com/fenwick-labs/toolgate/internal/mcpclient"
	"github.com/fenwick-labs/toolgate/internal/serverspec"
)

const defaultQueryLimit = 10

// wireServer is the JSON shape returned for each ToolOrigin's server half:
// url/type/authToken, matching spec §4.6's query-tools envelope.
type wireServer struct {
	URL       string `json:"url"`
	Type      string `json:"type"`
	AuthToken string `json:"authToken,omitempty"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

type wireOrigin struct {
	Tool   wireTool   `json:"tool"`
	Server wireServer `json:"server"`
}

func toWireOrigin(o catalogue.ToolOrigin) wireOrigin {
	return wireOrigin{
		Tool: wireTool{
			Name:        o.Tool.Name,
			Description: o.Tool.Description,
			InputSchema: rawOrNull(o.Tool.InputSchema),
		},
		Server: wireServer{URL: o.Server.URL, Type: o.Server.Transport, AuthToken: o.Server.AuthToken},
	}
}

func rawOrNull(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

// queryTools implements spec §4.6's `query-tools {query, limit?}`.
func (s *Server) queryTools(ctx context.Context, args map[string]any) (Result, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return errResult("query-tools: %q argument is required", "query")
	}
	limit := defaultQueryLimit
	if raw, ok := args["limit"]; ok {
		if n, ok := asInt(raw); ok && n > 0 {
			limit = n
		}
	}

	// Bias recall toward authorization/connection helpers per §4.5.
	biasedQuery := query + ". Additionally, any relevant connection tools."

	results, err := s.catalogue.QueryTools(ctx, biasedQuery, limit)
	if err != nil {
		return errResult("query-tools: %v", err)
	}

	origins := make([]wireOrigin, 0, len(results))
	for _, r := range results {
		origins = append(origins, toWireOrigin(r.Origin))
	}
	jsonBlock := encodeTag(origins)

	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Origin.Tool.Name)
	}
	summary := fmt.Sprintf("found %d matching tool(s): %s", len(names), strings.Join(names, ", "))
	if len(names) == 0 {
		summary = "found no matching tools"
	}
	return Result{JSONBlock: jsonBlock, Summary: summary}, nil
}

// listTools implements spec §4.6's `list-tools {}`.
func (s *Server) listTools(ctx context.Context, args map[string]any) (Result, error) {
	limit := 0
	if raw, ok := args["limit"]; ok {
		if n, ok := asInt(raw); ok {
			limit = n
		}
	}
	origins, err := s.catalogue.ListTools(ctx, limit)
	if err != nil {
		return errResult("list-tools: %v", err)
	}
	tools := make([]wireTool, 0, len(origins))
	for _, o := range origins {
		tools = append(tools, toWireOrigin(o).Tool)
	}
	summary := fmt.Sprintf("the registry currently knows %d tool(s)", len(tools))
	return Result{JSONBlock: encodeTag(tools), Summary: summary}, nil
}

// addTool implements spec §4.6's `add-tool {tool}`. It validates the
// supplied input schema is itself well-formed JSON Schema before storing —
// a concrete enforcement point the distilled spec left implicit.
func (s *Server) addTool(ctx context.Context, args map[string]any) (Result, error) {
	raw, ok := args["tool"]
	if !ok {
		return errResult("add-tool: %q argument is required", "tool")
	}
	toolJSON, err := json.Marshal(raw)
	if err != nil {
		return errResult("add-tool: tool argument is not valid JSON: %v", err)
	}
	var wt wireTool
	if err := json.Unmarshal(toolJSON, &wt); err != nil {
		return errResult("add-tool: malformed tool descriptor: %v", err)
	}
	if strings.TrimSpace(wt.Name) == "" {
		return errResult("add-tool: tool.name is required")
	}
	if len(wt.InputSchema) > 0 {
		if err := validateJSONSchema(wt.InputSchema); err != nil {
			return errResult("add-tool: inputSchema is not a valid JSON Schema: %v", err)
		}
	}

	serverID, _ := args["serverId"].(string)
	if serverID == "" {
		serverID = "manual"
	}
	server := catalogue.ServerDescriptor{ID: serverID, Name: serverID}
	tool := catalogue.ToolDescriptor{Name: wt.Name, Description: wt.Description, InputSchema: wt.InputSchema}
	if err := s.catalogue.AddTool(ctx, server, tool); err != nil {
		return errResult("add-tool: %v", err)
	}

	summary := fmt.Sprintf("registered tool %q", wt.Name)
	return Result{JSONBlock: encodeTag(wt), Summary: summary}, nil
}

// validateJSONSchema parses schema as a JSON Schema document, returning an
// error if it is structurally invalid.
func validateJSONSchema(schema json.RawMessage) error {
	_, err := jsonschema.CompileString("add-tool.schema.json", string(schema))
	return err
}

// addServer implements spec §4.6's `add-server {serverString:"url::type", authToken?}`.
// It dials the described server directly (not through a pooled connection
// — the Registry Service has no pool of its own), lists its tools, and
// registers each one under a fresh ServerDescriptor.
func (s *Server) addServer(ctx context.Context, args map[string]any) (Result, error) {
	spec, _ := args["serverString"].(string)
	if strings.TrimSpace(spec) == "" {
		return errResult("add-server: %q argument is required", "serverString")
	}
	authToken, _ := args["authToken"].(string)

	desc, err := serverspec.Parse(spec, authToken)
	if err != nil {
		return errResult("add-server: %v", err)
	}
	url, kind, _ := serverspec.Split(spec)

	client, err := mcpclient.Dial(ctx, desc, nil)
	if err != nil {
		return errResult("add-server: dial %q: %v", spec, err)
	}
	defer client.Close()
	remoteTools := client.ListTools()

	server := catalogue.ServerDescriptor{ID: spec, Name: spec, URL: url, Transport: kind, AuthToken: authToken}
	var added []wireTool
	for _, rt := range remoteTools {
		td := catalogue.ToolDescriptor{Name: rt.Name, Description: rt.Description, InputSchema: rt.InputSchema}
		if err := s.catalogue.AddTool(ctx, server, td); err != nil {
			// Atomic per §4.5: the server stays recorded, but surface the
			// failure immediately rather than silently skipping it.
			s.catalogue.AddServer(server)
			return errResult("add-server: registering tool %q from %q: %v", rt.Name, spec, err)
		}
		added = append(added, wireTool{Name: rt.Name, Description: rt.Description, InputSchema: rawOrNull(rt.InputSchema)})
	}

	names := make([]string, len(added))
	for i, t := range added {
		names[i] = t.Name
	}
	summary := fmt.Sprintf("connected to %q and registered %d tool(s): %s", spec, len(added), strings.Join(names, ", "))
	return Result{JSONBlock: encodeTag(added), Summary: summary}, nil
}

// deleteTool implements spec §4.6's `delete-tool {name}`.
func (s *Server) deleteTool(ctx context.Context, args map[string]any) (Result, error) {
	name, _ := args["name"].(string)
	if strings.TrimSpace(name) == "" {
		return errResult("delete-tool: %q argument is required", "name")
	}

	origins, err := s.catalogue.ListTools(ctx, 0)
	if err != nil {
		return errResult("delete-tool: %v", err)
	}
	var found bool
	for _, o := range origins {
		if o.Tool.Name == name {
			if err := s.catalogue.DeleteTool(ctx, o.Key()); err != nil {
				return errResult("delete-tool: %v", err)
			}
			found = true
			break
		}
	}

	summary := fmt.Sprintf("tool %q not found", name)
	if found {
		summary = fmt.Sprintf("deleted tool %q", name)
	}
	return Result{JSONBlock: encodeTag(found), Summary: summary}, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}
