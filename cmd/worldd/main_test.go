package main

import (
	"testing"

	"github.com/kadirpekel/worldcore/config"
	"github.com/kadirpekel/worldcore/storage/filestore"
	"github.com/kadirpekel/worldcore/storage/memstore"
)

func TestBuildStorageDefaultsToMemory(t *testing.T) {
	store, err := buildStorage(config.StorageConfig{})
	if err != nil {
		t.Fatalf("buildStorage: %v", err)
	}
	if _, ok := store.(*memstore.Store); !ok {
		t.Fatalf("expected memstore.Store, got %T", store)
	}
}

func TestBuildStorageFileRequiresDir(t *testing.T) {
	if _, err := buildStorage(config.StorageConfig{Backend: "file"}); err == nil {
		t.Fatal("expected error for file backend without dir")
	}
}

func TestBuildStorageFile(t *testing.T) {
	store, err := buildStorage(config.StorageConfig{Backend: "file", Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("buildStorage: %v", err)
	}
	if _, ok := store.(*filestore.Store); !ok {
		t.Fatalf("expected filestore.Store, got %T", store)
	}
}

func TestBuildStorageUnknownBackend(t *testing.T) {
	if _, err := buildStorage(config.StorageConfig{Backend: "carrier-pigeon"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestBuildProvidersRegistersConfiguredTypes(t *testing.T) {
	cfg := &config.Config{
		Providers: map[string]*config.LLMProviderConfig{
			"default": {Type: "openai", Model: "gpt-4o", APIKey: "sk-test"},
		},
	}
	reg := buildProviders(cfg)
	if _, err := reg.Get("openai"); err != nil {
		t.Fatalf("expected openai provider registered: %v", err)
	}
}

func TestBuildToolsRegistersBuiltins(t *testing.T) {
	reg := buildTools(&config.Config{})
	for _, name := range []string{"shell_cmd", "read_file", "list_files", "grep"} {
		if _, err := reg.Get(name); err != nil {
			t.Fatalf("expected builtin tool %q registered: %v", name, err)
		}
	}
}
