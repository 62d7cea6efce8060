package toolbox

import (
	"context"
	"errors"
	"testing"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder/hashembed"
	"github.com/fenwick-labs/toolgate/internal/catalogue/store/memstore"
	"github.com/fenwick-labs/toolgate/internal/convo"
	"github.com/fenwick-labs/toolgate/internal/pool"
	"github.com/fenwick-labs/toolgate/internal/registry"
	"github.com/fenwick-labs/toolgate/internal/registryclient"
)

func newFailingPool() *pool.Pool {
	return pool.New(func(ctx context.Context, key pool.Key) (pool.Conn, error) {
		return nil, errors.New("dial refused")
	}, pool.Config{})
}

func newInProcessRegistryClient() *registryclient.Client {
	cat := catalogue.New(memstore.New(), hashembed.New(), nil)
	return registryclient.NewInProcess(registry.New(cat))
}

func TestRegisterToolsRejectsDuplicateNameFromDifferentServer(t *testing.T) {
	tb := New(newFailingPool(), newInProcessRegistryClient(), nil)

	s1 := catalogue.ServerDescriptor{ID: "s1"}
	s2 := catalogue.ServerDescriptor{ID: "s2"}
	origin1 := catalogue.ToolOrigin{Server: s1, Tool: catalogue.ToolDescriptor{Name: "search"}}
	origin2 := catalogue.ToolOrigin{Server: s2, Tool: catalogue.ToolDescriptor{Name: "search"}}

	if err := tb.RegisterTools([]catalogue.ToolOrigin{origin1}); err != nil {
		t.Fatalf("RegisterTools(origin1): %v", err)
	}
	if err := tb.RegisterTools([]catalogue.ToolOrigin{origin2}); err == nil {
		t.Fatal("expected a conflict rejecting the duplicate tool name from a different server")
	}

	// Re-registering from the same server is a no-op, not a conflict.
	if err := tb.RegisterTools([]catalogue.ToolOrigin{origin1}); err != nil {
		t.Fatalf("re-registering from the same server should succeed: %v", err)
	}
}

func TestAvailableToolsIncludesMetaTools(t *testing.T) {
	tb := New(newFailingPool(), newInProcessRegistryClient(), nil)
	origin := catalogue.ToolOrigin{Server: catalogue.ServerDescriptor{ID: "s1"}, Tool: catalogue.ToolDescriptor{Name: "search"}}
	if err := tb.RegisterTools([]catalogue.ToolOrigin{origin}); err != nil {
		t.Fatalf("RegisterTools: %v", err)
	}

	tools := tb.AvailableTools()
	var names []string
	for _, t := range tools {
		names = append(names, t.Name)
	}

	foundSearch, foundMeta := false, false
	for _, n := range names {
		if n == "search" {
			foundSearch = true
		}
		if n == registry.ToolQueryTools {
			foundMeta = true
		}
	}
	if !foundSearch {
		t.Errorf("expected registered tool %q in %v", "search", names)
	}
	if !foundMeta {
		t.Errorf("expected meta-tool %q in %v", registry.ToolQueryTools, names)
	}
}

func TestExecuteToolUnknownToolIsErrorResult(t *testing.T) {
	tb := New(newFailingPool(), newInProcessRegistryClient(), nil)
	result := tb.ExecuteTool(context.Background(), convo.ToolUse{ID: "1", ToolName: "nonexistent"})
	if !result.IsError {
		t.Fatal("expected an error ToolResult for an unregistered tool")
	}
}

func TestExecuteToolTransportFailureIsErrorResult(t *testing.T) {
	tb := New(newFailingPool(), newInProcessRegistryClient(), nil)
	origin := catalogue.ToolOrigin{Server: catalogue.ServerDescriptor{ID: "s1"}, Tool: catalogue.ToolDescriptor{Name: "search"}}
	if err := tb.RegisterTools([]catalogue.ToolOrigin{origin}); err != nil {
		t.Fatalf("RegisterTools: %v", err)
	}

	result := tb.ExecuteTool(context.Background(), convo.ToolUse{ID: "1", ToolName: "search"})
	if !result.IsError {
		t.Fatal("expected an error ToolResult when the pool fails to dial")
	}
}

func TestExecuteToolSchemaViolationSkipsDispatch(t *testing.T) {
	tb := New(newFailingPool(), newInProcessRegistryClient(), nil)
	schema := []byte(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)
	origin := catalogue.ToolOrigin{
		Server: catalogue.ServerDescriptor{ID: "s1"},
		Tool:   catalogue.ToolDescriptor{Name: "search", InputSchema: schema},
	}
	if err := tb.RegisterTools([]catalogue.ToolOrigin{origin}); err != nil {
		t.Fatalf("RegisterTools: %v", err)
	}

	result := tb.ExecuteTool(context.Background(), convo.ToolUse{ID: "1", ToolName: "search", Arguments: map[string]any{}})
	if !result.IsError {
		t.Fatal("expected a schema-violation error ToolResult for missing required argument")
	}
}

func TestExecuteToolMetaToolDispatch(t *testing.T) {
	tb := New(newFailingPool(), newInProcessRegistryClient(), nil)
	result := tb.ExecuteTool(context.Background(), convo.ToolUse{ID: "1", ToolName: registry.ToolListTools, Arguments: map[string]any{}})
	if result.IsError {
		t.Fatalf("list-tools should succeed against an empty catalogue, got error: %s", result.Content)
	}
}
