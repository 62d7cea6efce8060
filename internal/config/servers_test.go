package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestServerSpecKeyStdio(t *testing.T) {
	s := ServerSpec{ID: "fs", Transport: "stdio", Command: "npx", Args: []string{"-y", "mcp-server-filesystem"}}
	want := "npx -y mcp-server-filesystem::stdio"
	if got := s.Key(); got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestServerSpecKeySSE(t *testing.T) {
	s := ServerSpec{ID: "remote", Transport: "sse", URL: "https://example.com/mcp"}
	want := "https://example.com/mcp::sse"
	if got := s.Key(); got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestLoadServersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	content := `
servers:
  - id: fs
    transport: stdio
    command: npx
    args: ["-y", "mcp-server-filesystem"]
  - id: remote
    transport: sse
    url: https://example.com/mcp
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	specs, err := LoadServersFile(path)
	if err != nil {
		t.Fatalf("LoadServersFile: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}
	if specs[0].ID != "fs" || specs[1].ID != "remote" {
		t.Errorf("unexpected spec order: %+v", specs)
	}
}

func TestLoadServersFileRejectsMissingID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	content := `
servers:
  - transport: stdio
    command: npx
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadServersFile(path); err == nil {
		t.Fatal("expected an error for a servers file entry missing id")
	}
}

func TestLoadServersFileRejectsUnsupportedTransport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.yaml")
	content := `
servers:
  - id: weird
    transport: carrier-pigeon
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadServersFile(path); err == nil {
		t.Fatal("expected an error for an unsupported transport")
	}
}
