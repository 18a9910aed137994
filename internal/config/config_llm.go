package config

import (
	"fmt"
	"time"
)

// LLMConfig selects the provider the loop calls and carries its
// credentials by reference (API keys come from the environment via
// Load's ${VAR} expansion, not literal secrets in the YAML file).
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

type LLMProviderConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: "anthropic",
		Providers: map[string]LLMProviderConfig{
			"anthropic": {DefaultModel: "claude-sonnet-4-20250514", MaxRetries: 3, RetryDelay: time.Second},
			"openai":    {DefaultModel: "gpt-4o", MaxRetries: 3, RetryDelay: time.Second},
		},
	}
}

func (c LLMConfig) Validate() error {
	if c.DefaultProvider == "" {
		return fmt.Errorf("config: llm.default_provider is required")
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return fmt.Errorf("config: llm.default_provider %q has no providers entry", c.DefaultProvider)
	}
	return nil
}
