package registry

import (
	"context"
	"testing"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder/hashembed"
	"github.com/fenwick-labs/toolgate/internal/catalogue/store/memstore"
)

func newTestServer() *Server {
	return New(catalogue.New(memstore.New(), hashembed.New(), nil))
}

func TestIsMetaTool(t *testing.T) {
	for _, name := range MetaToolNames {
		if !IsMetaTool(name) {
			t.Errorf("IsMetaTool(%q) = false, want true", name)
		}
	}
	if IsMetaTool("search_files") {
		t.Error("IsMetaTool(\"search_files\") = true, want false")
	}
}

func TestQueryToolsRequiresQuery(t *testing.T) {
	s := newTestServer()
	res, err := s.Call(context.Background(), ToolQueryTools, map[string]any{})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected an error result when query is missing")
	}
}

func TestAddToolThenQueryTools(t *testing.T) {
	s := newTestServer()
	ctx := context.Background()

	addArgs := map[string]any{
		"tool": map[string]any{
			"name":        "search_files",
			"description": "search for files by name",
		},
	}
	res, err := s.Call(ctx, ToolAddTool, addArgs)
	if err != nil || res.IsError {
		t.Fatalf("add-tool failed: err=%v res=%+v", err, res)
	}

	queryRes, err := s.Call(ctx, ToolQueryTools, map[string]any{"query": "find a file on disk"})
	if err != nil {
		t.Fatalf("query-tools: %v", err)
	}
	if queryRes.IsError {
		t.Fatalf("query-tools returned error: %s", queryRes.Summary)
	}
	if queryRes.JSONBlock == "" {
		t.Error("expected a non-empty JSON block")
	}
}

func TestAddToolRejectsInvalidSchema(t *testing.T) {
	s := newTestServer()
	args := map[string]any{
		"tool": map[string]any{
			"name":        "bad_schema_tool",
			"inputSchema": "not an object",
		},
	}
	res, err := s.Call(context.Background(), ToolAddTool, args)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected an error result for a malformed tool descriptor")
	}
}

func TestDeleteToolUnknownName(t *testing.T) {
	s := newTestServer()
	res, err := s.Call(context.Background(), ToolDeleteTool, map[string]any{"name": "nonexistent"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.IsError {
		t.Fatalf("delete-tool of unknown name should not itself be an error result: %s", res.Summary)
	}
}

func TestUnknownMetaTool(t *testing.T) {
	s := newTestServer()
	_, err := s.Call(context.Background(), "not-a-real-tool", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown registry tool name")
	}
}
