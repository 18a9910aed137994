// Package config loads the top-level reactor service configuration: a
// YAML file, environment-variable expanded, unmarshaled with
// gopkg.in/yaml.v3, laid out one file per concern.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kestrel-ai/reactor/internal/reactor"
)

// Config is the root configuration document (§6.6).
type Config struct {
	Server     ServerConfig   `yaml:"server"`
	LLM        LLMConfig      `yaml:"llm"`
	Loop       reactor.Config `yaml:"loop"`
	Pool       PoolConfig     `yaml:"pool"`
	Approval   ApprovalConfig `yaml:"approval"`
	Memory     BackendConfig  `yaml:"memory"`
	Credential BackendConfig  `yaml:"credentials"`
	Trigger    TriggerConfig  `yaml:"triggers"`
	Logging    LoggingConfig  `yaml:"logging"`
	Tracing    TracingConfig  `yaml:"tracing"`
}

// Load reads path, expands ${VAR} references against the process
// environment, and unmarshals into a Config, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a Config populated with every section's defaults, the
// same role DefaultConfig() plays for reactor.Config alone.
func Default() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		LLM:        DefaultLLMConfig(),
		Loop:       reactor.DefaultConfig(),
		Pool:       DefaultPoolConfig(),
		Approval:   DefaultApprovalConfig(),
		Memory:     BackendConfig{Kind: "sqlite", DSN: "reactor-memory.db"},
		Credential: BackendConfig{Kind: "file", DSN: "./credentials"},
		Trigger:    DefaultTriggerConfig(),
		Logging:    DefaultLoggingConfig(),
		Tracing:    DefaultTracingConfig(),
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Approval.Validate(); err != nil {
		return err
	}
	return nil
}
