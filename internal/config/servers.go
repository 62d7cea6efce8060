package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerSpec declares one MCP server to connect at startup, the YAML
// counterpart of a command-line server spec.
type ServerSpec struct {
	ID        string            `yaml:"id"`
	Transport string            `yaml:"transport"` // stdio | sse | ws
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// ServerList is the top-level shape of a --servers-file document.
type ServerList struct {
	Servers []ServerSpec `yaml:"servers"`
}

// Key renders the ServerSpec as the "url::type" notation the rest of the
// system uses to identify and dial a server, so a YAML-declared server and
// a CLI-declared one can share the same Connection Pool key space.
func (s ServerSpec) Key() string {
	if s.Transport == "stdio" {
		cmd := s.Command
		for _, a := range s.Args {
			cmd += " " + a
		}
		return cmd + "::stdio"
	}
	return s.URL + "::" + s.Transport
}

// LoadServersFile parses a YAML file declaring a fleet of MCP servers.
func LoadServersFile(path string) ([]ServerSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read servers file: %w", err)
	}

	var list ServerList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("config: parse servers file: %w", err)
	}

	for i, s := range list.Servers {
		if s.ID == "" {
			return nil, fmt.Errorf("config: servers file entry %d is missing id", i)
		}
		switch s.Transport {
		case "stdio", "sse", "ws":
		default:
			return nil, fmt.Errorf("config: server %q has unsupported transport %q", s.ID, s.Transport)
		}
	}

	return list.Servers, nil
}
