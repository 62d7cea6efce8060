package registryclient

import (
	"context"
	"testing"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder/hashembed"
	"github.com/fenwick-labs/toolgate/internal/catalogue/store/memstore"
	"github.com/fenwick-labs/toolgate/internal/registry"
)

func TestNewInProcessDispatchesToServer(t *testing.T) {
	cat := catalogue.New(memstore.New(), hashembed.New(), nil)
	c := NewInProcess(registry.New(cat))

	outcome, err := c.Call(context.Background(), registry.ToolListTools, map[string]any{})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if outcome.IsError {
		t.Fatalf("expected list-tools against an empty catalogue to succeed, got %q", outcome.Summary)
	}
}

func TestNewInProcessUnknownToolReturnsError(t *testing.T) {
	cat := catalogue.New(memstore.New(), hashembed.New(), nil)
	c := NewInProcess(registry.New(cat))

	if _, err := c.Call(context.Background(), "not-a-meta-tool", nil); err == nil {
		t.Fatal("expected an error for an unrecognized meta-tool name")
	}
}

func TestParseQueryToolsOriginsRoundTrips(t *testing.T) {
	cat := catalogue.New(memstore.New(), hashembed.New(), nil)
	c := NewInProcess(registry.New(cat))
	ctx := context.Background()

	addArgs := map[string]any{
		"tool": map[string]any{
			"name":        "search_files",
			"description": "search for files by name on disk",
		},
	}
	if outcome, err := c.Call(ctx, registry.ToolAddTool, addArgs); err != nil || outcome.IsError {
		t.Fatalf("add-tool failed: err=%v outcome=%+v", err, outcome)
	}

	queryOutcome, err := c.Call(ctx, registry.ToolQueryTools, map[string]any{"query": "find a file"})
	if err != nil {
		t.Fatalf("query-tools: %v", err)
	}
	if queryOutcome.IsError {
		t.Fatalf("query-tools returned an error: %s", queryOutcome.Summary)
	}

	origins, err := ParseQueryToolsOrigins(queryOutcome.JSONBlock)
	if err != nil {
		t.Fatalf("ParseQueryToolsOrigins: %v", err)
	}
	if len(origins) != 1 {
		t.Fatalf("expected 1 origin, got %d", len(origins))
	}
	if origins[0].Tool.Name != "search_files" {
		t.Errorf("Tool.Name = %q, want %q", origins[0].Tool.Name, "search_files")
	}
}

func TestParseQueryToolsOriginsRejectsUntaggedBlock(t *testing.T) {
	if _, err := ParseQueryToolsOrigins("not a tagged block"); err == nil {
		t.Fatal("expected an error for a block with no registry-json tag")
	}
}

func TestMetaToolDescriptorsCoversEveryMetaTool(t *testing.T) {
	descriptors := MetaToolDescriptors()
	if len(descriptors) != len(registry.MetaToolNames) {
		t.Fatalf("got %d descriptors, want %d", len(descriptors), len(registry.MetaToolNames))
	}
	for _, name := range registry.MetaToolNames {
		found := false
		for _, d := range descriptors {
			if d.Name == name {
				found = true
				if len(d.InputSchema) == 0 {
					t.Errorf("descriptor for %q has an empty InputSchema", name)
				}
			}
		}
		if !found {
			t.Errorf("no descriptor found for meta-tool %q", name)
		}
	}
}
