package config

import (
	"os"
	"testing"
)

func TestLoadFromStringExpandsAndDefaults(t *testing.T) {
	os.Setenv("WORLDCORE_TEST_KEY", "sk-abc")
	defer os.Unsetenv("WORLDCORE_TEST_KEY")

	yaml := `
name: test-world
providers:
  default:
    type: openai
    model: gpt-4o
    api_key: ${WORLDCORE_TEST_KEY}
storage:
  backend: file
  dir: ./data
defaults:
  turn_limit: 5
`
	cfg, err := LoadFromString(yaml)
	if err != nil {
		t.Fatalf("LoadFromString: %v", err)
	}
	if cfg.Name != "test-world" {
		t.Fatalf("got name %q", cfg.Name)
	}
	p, ok := cfg.Providers["default"]
	if !ok {
		t.Fatal("expected default provider")
	}
	if p.APIKey != "sk-abc" {
		t.Fatalf("expected expanded api key, got %q", p.APIKey)
	}
	if p.ResolvedAPIKey() != "sk-abc" {
		t.Fatalf("got %q", p.ResolvedAPIKey())
	}
	if cfg.Storage.Backend != "file" || cfg.Storage.Dir != "./data" {
		t.Fatalf("got storage %+v", cfg.Storage)
	}
	if cfg.Defaults.TurnLimit != 5 {
		t.Fatalf("got turn limit %d", cfg.Defaults.TurnLimit)
	}
}

func TestLoadFromStringAppliesDefaultsWhenEmpty(t *testing.T) {
	cfg, err := LoadFromString("")
	if err != nil {
		t.Fatalf("LoadFromString: %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Fatalf("expected default memory backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Defaults.TurnLimit != 10 {
		t.Fatalf("expected default turn limit 10, got %d", cfg.Defaults.TurnLimit)
	}
}

func TestResolvedAPIKeyFallsBackToEnv(t *testing.T) {
	os.Setenv("ANTHROPIC_API_KEY", "sk-anthropic")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	p := LLMProviderConfig{Type: "anthropic", Model: "claude-3"}
	if got := p.ResolvedAPIKey(); got != "sk-anthropic" {
		t.Fatalf("got %q", got)
	}
}
