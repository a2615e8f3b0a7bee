package config

import (
	"os"
	"testing"
)

func TestExpandEnvVarsWithDefault(t *testing.T) {
	os.Unsetenv("WORLDCORE_TEST_MISSING")
	got := ExpandEnvVars("value=${WORLDCORE_TEST_MISSING:-fallback}")
	if got != "value=fallback" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandEnvVarsBraced(t *testing.T) {
	os.Setenv("WORLDCORE_TEST_VAR", "hello")
	defer os.Unsetenv("WORLDCORE_TEST_VAR")

	got := ExpandEnvVars("${WORLDCORE_TEST_VAR} world")
	if got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandEnvVarsSimple(t *testing.T) {
	os.Setenv("WORLDCORE_TEST_VAR", "hi")
	defer os.Unsetenv("WORLDCORE_TEST_VAR")

	got := ExpandEnvVars("$WORLDCORE_TEST_VAR there")
	if got != "hi there" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandEnvVarsNoDollarIsNoop(t *testing.T) {
	got := ExpandEnvVars("plain string")
	if got != "plain string" {
		t.Fatalf("got %q", got)
	}
}

func TestProviderAPIKey(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "sk-test")
	defer os.Unsetenv("OPENAI_API_KEY")

	if got := ProviderAPIKey("openai"); got != "sk-test" {
		t.Fatalf("got %q", got)
	}
	if got := ProviderAPIKey("unknown"); got != "" {
		t.Fatalf("expected empty for unknown provider, got %q", got)
	}
}
