package catalogue_test

import (
	"context"
	"testing"

	"github.com/fenwick-labs/toolgate/internal/catalogue"
	"github.com/fenwick-labs/toolgate/internal/catalogue/embedder/hashembed"
	"github.com/fenwick-labs/toolgate/internal/catalogue/store/memstore"
)

func newTestCatalogue() *catalogue.Catalogue {
	return catalogue.New(memstore.New(), hashembed.New(), nil)
}

func TestAddToolAndQuery(t *testing.T) {
	c := newTestCatalogue()
	ctx := context.Background()
	server := catalogue.ServerDescriptor{ID: "s1", Name: "Server One"}

	if err := c.AddTool(ctx, server, catalogue.ToolDescriptor{Name: "search_files", Description: "search for files by name"}); err != nil {
		t.Fatalf("AddTool: %v", err)
	}
	if err := c.AddTool(ctx, server, catalogue.ToolDescriptor{Name: "send_email", Description: "send an email message"}); err != nil {
		t.Fatalf("AddTool: %v", err)
	}

	results, err := c.QueryTools(ctx, "find a file on disk", 1)
	if err != nil {
		t.Fatalf("QueryTools: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Origin.Tool.Name != "search_files" {
		t.Errorf("expected search_files to rank first, got %q", results[0].Origin.Tool.Name)
	}
}

func TestAddToolDuplicateNameDifferentServerRejected(t *testing.T) {
	c := newTestCatalogue()
	ctx := context.Background()

	s1 := catalogue.ServerDescriptor{ID: "s1"}
	s2 := catalogue.ServerDescriptor{ID: "s2"}

	if err := c.AddTool(ctx, s1, catalogue.ToolDescriptor{Name: "search"}); err != nil {
		t.Fatalf("AddTool: %v", err)
	}
	if err := c.AddTool(ctx, s2, catalogue.ToolDescriptor{Name: "search"}); err == nil {
		t.Fatal("expected a compound error registering a duplicate tool name from a different server")
	}
}

func TestDeleteToolRemovesFromIndex(t *testing.T) {
	c := newTestCatalogue()
	ctx := context.Background()
	server := catalogue.ServerDescriptor{ID: "s1"}

	if err := c.AddTool(ctx, server, catalogue.ToolDescriptor{Name: "search_files", Description: "search for files"}); err != nil {
		t.Fatalf("AddTool: %v", err)
	}
	if err := c.DeleteTool(ctx, catalogue.Key{ServerID: "s1", ToolName: "search_files"}); err != nil {
		t.Fatalf("DeleteTool: %v", err)
	}

	results, err := c.QueryTools(ctx, "search for files", 5)
	if err != nil {
		t.Fatalf("QueryTools: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results after delete, got %d", len(results))
	}
}

func TestListToolsReturnsAll(t *testing.T) {
	c := newTestCatalogue()
	ctx := context.Background()
	server := catalogue.ServerDescriptor{ID: "s1"}

	for _, name := range []string{"a", "b", "c"} {
		if err := c.AddTool(ctx, server, catalogue.ToolDescriptor{Name: name}); err != nil {
			t.Fatalf("AddTool(%s): %v", name, err)
		}
	}

	tools, err := c.ListTools(ctx, 0)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 3 {
		t.Errorf("expected 3 tools, got %d", len(tools))
	}
}
