// Package config binds process configuration once at startup and hands
// callers an immutable value. Nothing else under internal/ reads the
// environment directly; every component that needs configuration receives
// a *Config from main.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the fully resolved configuration for a toolgate process.
// Construct it once with Load and pass it down; it is never mutated after
// construction.
type Config struct {
	// AgentProvider selects which vendor adapter the Agent uses:
	// "anthropic" (default) or "openai".
	AgentProvider string

	// AnthropicAPIKey authenticates the Anthropic Agent vendor adapter.
	AnthropicAPIKey string

	// OpenAIAgentAPIKey authenticates the OpenAI Agent vendor adapter.
	// Distinct from OpenAIAPIKey, which authenticates the openai embedder
	// and may point at a different account.
	OpenAIAgentAPIKey string

	// ModelName selects the model the Agent asks the vendor for.
	ModelName string

	// SystemPrompt is the system prompt sent with every Agent turn.
	SystemPrompt string

	// AnthropicVersion holds ANT_VERSION. It is loaded but not passed to
	// the Anthropic adapter, so no request header is set from it.
	AnthropicVersion string

	// MaxRecursionDepth bounds the Agent Loop's iteration count.
	MaxRecursionDepth int

	// PoolCapacity bounds the number of live upstream connections the
	// Connection Pool holds at once.
	PoolCapacity int

	// PoolTTL is how long an idle pooled connection is kept before it
	// becomes eligible for eviction.
	PoolTTL time.Duration

	// ServersFile optionally names a YAML file declaring a fleet of MCP
	// servers to register with the Toolbox at startup.
	ServersFile string

	// EmbedderProvider selects the Tool Catalogue's similarity index
	// embedder: "hash" (default, offline), "openai", or "ollama".
	EmbedderProvider string

	// OpenAIAPIKey authenticates the openai embedder, when selected.
	OpenAIAPIKey string

	// OllamaBaseURL is the local Ollama server the ollama embedder talks
	// to, when selected.
	OllamaBaseURL string

	// CatalogueDBPath, if set, selects the sqlite-backed ToolOrigin store
	// instead of the in-memory default.
	CatalogueDBPath string
}

const (
	defaultModelName          = "claude-sonnet-4-20250514"
	defaultOpenAIModelName    = "gpt-4o"
	defaultAnthropicVersion   = "2023-06-01"
	defaultMaxRecursionDepth  = 10
	defaultPoolCapacity       = 10
	defaultPoolTTL            = 30 * time.Minute
	defaultSystemPrompt       = "You are toolgate, an assistant with a small always-on meta tool set for discovering and connecting to other tools on demand. Use query-tools to find the right tool before assuming one doesn't exist."
)

// Load reads the process environment and returns a bound Config.
// The Agent vendor's API key is required (ANTHROPIC_API_KEY unless
// AGENT_PROVIDER=openai, in which case OPENAI_AGENT_API_KEY); every other
// variable has a default.
func Load() (*Config, error) {
	provider := envOr("AGENT_PROVIDER", "anthropic")

	cfg := &Config{
		AgentProvider:     provider,
		AnthropicVersion:  envOr("ANT_VERSION", defaultAnthropicVersion),
		SystemPrompt:      envOr("SYSTEM_PROMPT", defaultSystemPrompt),
		MaxRecursionDepth: defaultMaxRecursionDepth,
		PoolCapacity:      defaultPoolCapacity,
		PoolTTL:           defaultPoolTTL,
		ServersFile:       os.Getenv("SERVERS_FILE"),
		EmbedderProvider:  envOr("EMBEDDER_PROVIDER", "hash"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OllamaBaseURL:     envOr("OLLAMA_BASE_URL", "http://localhost:11434"),
		CatalogueDBPath:   os.Getenv("CATALOGUE_DB_PATH"),
	}

	switch provider {
	case "openai":
		cfg.OpenAIAgentAPIKey = os.Getenv("OPENAI_AGENT_API_KEY")
		if cfg.OpenAIAgentAPIKey == "" {
			return nil, fmt.Errorf("config: OPENAI_AGENT_API_KEY is required when AGENT_PROVIDER=openai")
		}
		cfg.ModelName = envOr("MODEL_NAME", defaultOpenAIModelName)
	case "anthropic":
		cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("config: ANTHROPIC_API_KEY is required")
		}
		cfg.ModelName = envOr("MODEL_NAME", defaultModelName)
	default:
		return nil, fmt.Errorf("config: unsupported AGENT_PROVIDER %q", provider)
	}

	if raw := os.Getenv("MAX_RECURSION_DEPTH"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("config: MAX_RECURSION_DEPTH must be a positive integer, got %q", raw)
		}
		cfg.MaxRecursionDepth = n
	}

	if raw := os.Getenv("POOL_CAPACITY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("config: POOL_CAPACITY must be a positive integer, got %q", raw)
		}
		cfg.PoolCapacity = n
	}

	if raw := os.Getenv("POOL_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("config: POOL_TTL must be a positive duration, got %q", raw)
		}
		cfg.PoolTTL = d
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
