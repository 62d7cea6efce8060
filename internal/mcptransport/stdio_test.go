package mcptransport

import (
	"os/exec"
	"testing"
)

func TestResolveCommandPlainExecutable(t *testing.T) {
	cmd, args := resolveCommand(Descriptor{Command: "echo", Args: []string{"hi"}})
	if cmd != "echo" {
		t.Errorf("expected command %q, got %q", "echo", cmd)
	}
	if len(args) != 1 || args[0] != "hi" {
		t.Errorf("expected args unchanged, got %v", args)
	}
}

func TestResolveCommandPythonScript(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not on PATH")
	}
	cmd, args := resolveCommand(Descriptor{Command: "server.py", Args: []string{"--flag"}})
	if cmd != "python3" {
		t.Errorf("expected interpreter python3, got %q", cmd)
	}
	if len(args) != 2 || args[0] != "server.py" || args[1] != "--flag" {
		t.Errorf("expected script inserted as first arg, got %v", args)
	}
}

func TestResolveCommandUnknownExtensionPassesThrough(t *testing.T) {
	cmd, args := resolveCommand(Descriptor{Command: "server.bin", Args: []string{"-x"}})
	if cmd != "server.bin" {
		t.Errorf("expected command unchanged, got %q", cmd)
	}
	if len(args) != 1 {
		t.Errorf("expected args unchanged, got %v", args)
	}
}
