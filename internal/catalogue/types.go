// Package catalogue is the Tool Catalogue: a compound-keyed map from
// (server, tool) to its origin, plus a similarity index over tool
// descriptions used to answer query-tools. Storage is pluggable; the
// similarity index always lives in memory as a flat embedding table.
package catalogue

import "fmt"

// ServerDescriptor identifies one upstream MCP server the catalogue knows
// about. Identity is url::transport (ID); URL and Transport are carried
// separately so a Registry Client can re-derive a dialable "url::type"
// spec from a query-tools wire response without string-splitting ID.
type ServerDescriptor struct {
	ID        string
	Name      string
	URL       string // dial target or command, transport-dependent
	Transport string // stdio | sse | ws
	AuthToken string // bearer token for sse/ws, empty otherwise
}

// ToolDescriptor is everything the catalogue stores about one tool,
// independent of which server it came from.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema []byte // raw JSON Schema
}

// Key is the compound key a ToolOrigin is stored under: the tool name
// scoped to the server that exposes it. Two servers may each expose a tool
// named "search"; Key keeps them distinct.
type Key struct {
	ServerID string
	ToolName string
}

// String renders the key the way it appears in diagnostics and error
// messages. The sqlite store does not use it: its primary key is the
// (server_id, tool_name) column pair.
func (k Key) String() string {
	return fmt.Sprintf("%s.%s", k.ServerID, k.ToolName)
}

// ToolOrigin binds a ToolDescriptor to the server that exposes it.
type ToolOrigin struct {
	Server ServerDescriptor
	Tool   ToolDescriptor
}

// Key returns the compound key for this origin.
func (o ToolOrigin) Key() Key {
	return Key{ServerID: o.Server.ID, ToolName: o.Tool.Name}
}
