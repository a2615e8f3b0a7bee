// Package config loads worldcore's runtime configuration: which LLM
// providers are available, which storage backend persists worlds, and
// the defaults a newly created world starts with. Configuration is
// YAML-first with environment variable expansion, the same shape the
// rest of the corpus uses for its config-first runtimes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LLMProviderConfig describes one configured LLM provider entry.
type LLMProviderConfig struct {
	Type        string  `yaml:"type"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key,omitempty"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// ResolvedAPIKey returns the explicit api_key if set, falling back to
// the provider's conventional environment variable.
func (c LLMProviderConfig) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return ProviderAPIKey(c.Type)
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is one of "memory", "file", or "sql".
	Backend string `yaml:"backend"`

	// Dir is the root directory for the file backend.
	Dir string `yaml:"dir,omitempty"`

	// Driver is the database/sql driver name for the sql backend
	// ("sqlite3", "postgres", "mysql").
	Driver string `yaml:"driver,omitempty"`

	// DSN is the data source name for the sql backend.
	DSN string `yaml:"dsn,omitempty"`
}

// WorldDefaults are applied to a world created without explicit
// overrides.
type WorldDefaults struct {
	TurnLimit       int    `yaml:"turn_limit,omitempty"`
	ChatLLMProvider string `yaml:"chat_llm_provider,omitempty"`
	ChatLLMModel    string `yaml:"chat_llm_model,omitempty"`
	SkillsDir       string `yaml:"skills_dir,omitempty"`
	WorkingDir      string `yaml:"working_dir,omitempty"`
}

// Config is the root configuration structure for a worldcore process.
type Config struct {
	Name      string                        `yaml:"name,omitempty"`
	Providers map[string]*LLMProviderConfig `yaml:"providers,omitempty"`
	Storage   StorageConfig                 `yaml:"storage,omitempty"`
	Defaults  WorldDefaults                 `yaml:"defaults,omitempty"`
}

// SetDefaults fills in zero-valued fields with sane defaults so a
// minimal config file (or an empty one) still produces a runnable
// configuration.
func (c *Config) SetDefaults() {
	if c.Providers == nil {
		c.Providers = make(map[string]*LLMProviderConfig)
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Defaults.TurnLimit == 0 {
		c.Defaults.TurnLimit = 10
	}
}

// Load reads and parses a YAML config file at path, expanding
// environment variable references throughout before unmarshalling.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return LoadFromString(string(data))
}

// LoadFromString parses raw YAML content into a Config, expanding
// ${VAR}/${VAR:-default}/$VAR references against the environment
// first.
func LoadFromString(content string) (*Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parsing config yaml: %w", err)
	}
	expanded := expandEnvVarsInData(raw)

	out, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("re-marshalling expanded config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(out, &cfg); err != nil {
		return nil, fmt.Errorf("decoding expanded config: %w", err)
	}
	cfg.SetDefaults()
	return &cfg, nil
}

// expandEnvVarsInData walks a generically-decoded YAML document and
// expands environment variable references in every string leaf.
func expandEnvVarsInData(data interface{}) interface{} {
	switch v := data.(type) {
	case string:
		return ExpandEnvVars(v)
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, val := range v {
			result[key] = expandEnvVarsInData(val)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = expandEnvVarsInData(item)
		}
		return result
	default:
		return v
	}
}
