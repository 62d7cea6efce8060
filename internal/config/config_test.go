package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"AGENT_PROVIDER", "ANTHROPIC_API_KEY", "OPENAI_AGENT_API_KEY", "MODEL_NAME",
		"SYSTEM_PROMPT", "ANT_VERSION", "MAX_RECURSION_DEPTH", "POOL_CAPACITY", "POOL_TTL",
		"SERVERS_FILE", "EMBEDDER_PROVIDER", "OPENAI_API_KEY", "OLLAMA_BASE_URL", "CATALOGUE_DB_PATH",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

func TestLoadRequiresAnthropicKeyByDefault(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("expected an error when ANTHROPIC_API_KEY is unset and no provider override is given")
	}
}

func TestLoadAnthropicDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AgentProvider != "anthropic" {
		t.Errorf("AgentProvider = %q, want %q", cfg.AgentProvider, "anthropic")
	}
	if cfg.ModelName != defaultModelName {
		t.Errorf("ModelName = %q, want %q", cfg.ModelName, defaultModelName)
	}
	if cfg.MaxRecursionDepth != defaultMaxRecursionDepth {
		t.Errorf("MaxRecursionDepth = %d, want %d", cfg.MaxRecursionDepth, defaultMaxRecursionDepth)
	}
	if cfg.PoolCapacity != defaultPoolCapacity {
		t.Errorf("PoolCapacity = %d, want %d", cfg.PoolCapacity, defaultPoolCapacity)
	}
	if cfg.PoolTTL != defaultPoolTTL {
		t.Errorf("PoolTTL = %v, want %v", cfg.PoolTTL, defaultPoolTTL)
	}
}

func TestLoadOpenAIProviderRequiresItsOwnKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENT_PROVIDER", "openai")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error when OPENAI_AGENT_API_KEY is unset under AGENT_PROVIDER=openai")
	}

	t.Setenv("OPENAI_AGENT_API_KEY", "sk-test")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModelName != defaultOpenAIModelName {
		t.Errorf("ModelName = %q, want %q", cfg.ModelName, defaultOpenAIModelName)
	}
	if cfg.AnthropicAPIKey != "" {
		t.Error("AnthropicAPIKey should stay empty when the openai provider is selected")
	}
}

func TestLoadUnsupportedProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENT_PROVIDER", "not-a-real-vendor")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an unsupported AGENT_PROVIDER")
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("MAX_RECURSION_DEPTH", "3")
	t.Setenv("POOL_CAPACITY", "5")
	t.Setenv("POOL_TTL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRecursionDepth != 3 {
		t.Errorf("MaxRecursionDepth = %d, want 3", cfg.MaxRecursionDepth)
	}
	if cfg.PoolCapacity != 5 {
		t.Errorf("PoolCapacity = %d, want 5", cfg.PoolCapacity)
	}
	if cfg.PoolTTL != 90*time.Second {
		t.Errorf("PoolTTL = %v, want 90s", cfg.PoolTTL)
	}
}

func TestLoadRejectsInvalidNumericOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("MAX_RECURSION_DEPTH", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a non-numeric MAX_RECURSION_DEPTH")
	}
}
