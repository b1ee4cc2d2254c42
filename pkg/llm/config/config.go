// Package config loads YAML configuration for clients: provider endpoints
// and credentials, pipeline options, resilience knobs, and observability
// settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/llmcomms/pkg/llm"
)

// Config is the root configuration structure.
type Config struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	Options         llm.ClientOptions         `yaml:"options"`
	Cache           CacheConfig               `yaml:"cache"`
	Resilience      ResilienceConfig          `yaml:"resilience"`
	Logging         LoggingConfig             `yaml:"logging"`
	Tracing         TracingConfig             `yaml:"tracing"`
}

// ProviderConfig configures one provider adapter.
type ProviderConfig struct {
	// Kind selects the adapter: "openai", "azure", or "ollama". Defaults to
	// the map key.
	Kind string `yaml:"kind"`

	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`

	// APIVersion applies to Azure only.
	APIVersion string `yaml:"api_version"`
}

// CacheConfig tunes the response cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// ResilienceConfig tunes the unary policies.
type ResilienceConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// LoggingConfig tunes the slog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig tunes the OTLP exporter.
type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	ServiceName  string  `yaml:"service_name"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// Default returns the configuration applied before a file is read.
func Default() *Config {
	return &Config{
		Options: llm.DefaultClientOptions(),
		Cache:   CacheConfig{TTL: 5 * time.Minute},
		Resilience: ResilienceConfig{
			MaxRetries: 2,
			BaseDelay:  250 * time.Millisecond,
			MaxDelay:   4 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads and validates a YAML configuration file. ${VAR} references in
// the file are expanded from the environment before parsing, so credentials
// can stay out of the file itself.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	expanded := os.Expand(string(data), func(name string) string {
		return os.Getenv(name)
	})
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.DefaultProvider != "" {
		if _, ok := c.Providers[c.DefaultProvider]; !ok {
			return fmt.Errorf("default_provider %q is not configured", c.DefaultProvider)
		}
	}
	for name, p := range c.Providers {
		kind := p.Kind
		if kind == "" {
			kind = name
		}
		switch kind {
		case "openai", "azure", "ollama":
		default:
			return fmt.Errorf("provider %q: unknown kind %q", name, kind)
		}
		if kind == "azure" && p.BaseURL == "" {
			return fmt.Errorf("provider %q: azure requires base_url", name)
		}
	}
	return nil
}

// Provider returns the named provider configuration, falling back to the
// default provider when name is empty.
func (c *Config) Provider(name string) (string, ProviderConfig, error) {
	if name == "" {
		name = c.DefaultProvider
	}
	if name == "" {
		return "", ProviderConfig{}, fmt.Errorf("no provider selected and no default_provider configured")
	}
	p, ok := c.Providers[name]
	if !ok {
		return "", ProviderConfig{}, fmt.Errorf("provider %q is not configured", name)
	}
	return name, p, nil
}
