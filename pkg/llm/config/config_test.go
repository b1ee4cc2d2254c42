package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "llmcomms.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
default_provider: openai
providers:
  openai:
    api_key: sk-test
    default_model: gpt-4o
  local:
    kind: ollama
    base_url: http://localhost:11434
    default_model: llama3.2
options:
  fail_on_invalid_json: false
  default_max_output_tokens: 1024
cache:
  ttl: 10m
resilience:
  timeout: 30s
  max_retries: 3
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultProvider != "openai" {
		t.Fatalf("default_provider = %q", cfg.DefaultProvider)
	}
	if cfg.Providers["openai"].APIKey != "sk-test" {
		t.Fatalf("api_key = %q", cfg.Providers["openai"].APIKey)
	}
	if cfg.Providers["local"].Kind != "ollama" {
		t.Fatalf("kind = %q", cfg.Providers["local"].Kind)
	}
	if cfg.Options.FailOnInvalidJSON {
		t.Fatal("fail_on_invalid_json not overridden")
	}
	if cfg.Options.DefaultMaxOutputTokens != 1024 {
		t.Fatalf("default_max_output_tokens = %d", cfg.Options.DefaultMaxOutputTokens)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Fatalf("cache ttl = %v", cfg.Cache.TTL)
	}
	if cfg.Resilience.Timeout != 30*time.Second || cfg.Resilience.MaxRetries != 3 {
		t.Fatalf("resilience = %+v", cfg.Resilience)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging level = %q", cfg.Logging.Level)
	}
}

func TestLoad_DefaultsSurviveSparseFile(t *testing.T) {
	path := writeConfig(t, `
providers:
  openai:
    api_key: sk-test
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Options.EnableRedaction || !cfg.Options.FailOnInvalidJSON {
		t.Fatalf("defaults lost: %+v", cfg.Options)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Fatalf("cache ttl = %v, want the 5m default", cfg.Cache.TTL)
	}
	if cfg.Resilience.MaxRetries != 2 {
		t.Fatalf("max_retries = %d, want 2", cfg.Resilience.MaxRetries)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("LLMCOMMS_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
providers:
  openai:
    api_key: ${LLMCOMMS_TEST_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers["openai"].APIKey != "sk-from-env" {
		t.Fatalf("api_key = %q, want the env value", cfg.Providers["openai"].APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"unknown default provider",
			func(c *Config) { c.DefaultProvider = "ghost" },
			"not configured",
		},
		{
			"unknown kind",
			func(c *Config) {
				c.Providers = map[string]ProviderConfig{"weird": {Kind: "bedrock"}}
			},
			"unknown kind",
		},
		{
			"azure without base_url",
			func(c *Config) {
				c.Providers = map[string]ProviderConfig{"azure": {APIKey: "k"}}
			},
			"requires base_url",
		},
		{
			"kind defaults to map key",
			func(c *Config) {
				c.Providers = map[string]ProviderConfig{"ollama": {}}
			},
			"",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestProviderSelection(t *testing.T) {
	cfg := Default()
	cfg.DefaultProvider = "openai"
	cfg.Providers = map[string]ProviderConfig{
		"openai": {APIKey: "k", DefaultModel: "gpt-4o"},
		"local":  {Kind: "ollama"},
	}

	name, p, err := cfg.Provider("")
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if name != "openai" || p.DefaultModel != "gpt-4o" {
		t.Fatalf("selection = %q, %+v", name, p)
	}

	if _, _, err := cfg.Provider("ghost"); err == nil {
		t.Fatal("unknown provider accepted")
	}

	cfg.DefaultProvider = ""
	if _, _, err := cfg.Provider(""); err == nil {
		t.Fatal("empty selection without a default accepted")
	}
}

func TestNewProvider(t *testing.T) {
	if _, err := NewProvider("openai", ProviderConfig{APIKey: "k"}); err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, err := NewProvider("custom", ProviderConfig{Kind: "azure", BaseURL: "https://r.openai.azure.com", APIKey: "k"}); err != nil {
		t.Fatalf("azure: %v", err)
	}
	if _, err := NewProvider("local", ProviderConfig{Kind: "ollama"}); err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if _, err := NewProvider("weird", ProviderConfig{Kind: "bedrock"}); err == nil {
		t.Fatal("unknown kind accepted")
	}
}

func TestBuildClient(t *testing.T) {
	cfg := Default()
	cfg.DefaultProvider = "local"
	cfg.Providers = map[string]ProviderConfig{
		"local": {Kind: "ollama", DefaultModel: "llama3.2"},
	}

	c, err := BuildClient(cfg, "", "")
	if err != nil {
		t.Fatalf("BuildClient: %v", err)
	}
	if c.Options().DefaultMaxOutputTokens != cfg.Options.DefaultMaxOutputTokens {
		t.Fatalf("options not carried: %+v", c.Options())
	}

	// No model anywhere is an error.
	cfg.Providers["local"] = ProviderConfig{Kind: "ollama"}
	if _, err := BuildClient(cfg, "", ""); err == nil {
		t.Fatal("missing model accepted")
	}
}

func TestSetupTracing_NoEndpointIsNoOp(t *testing.T) {
	cfg := Default()

	shutdown, err := SetupTracing(context.Background(), cfg)
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
