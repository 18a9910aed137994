package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "reactor.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected overridden port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != DefaultServerConfig().Host {
		t.Fatalf("expected default host to survive partial override, got %q", cfg.Server.Host)
	}
	if cfg.LLM.DefaultProvider != "anthropic" {
		t.Fatalf("expected default llm provider anthropic, got %q", cfg.LLM.DefaultProvider)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("REACTOR_TEST_API_KEY", "sk-test-123")
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic:
      api_key: ${REACTOR_TEST_API_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.LLM.Providers["anthropic"].APIKey; got != "sk-test-123" {
		t.Fatalf("expected expanded api key, got %q", got)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsUnknownDefaultProvider(t *testing.T) {
	cfg := Default()
	cfg.LLM.DefaultProvider = "unknown"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown default provider")
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for out-of-range port")
	}
}

func TestValidateRejectsOverlappingApprovalLists(t *testing.T) {
	cfg := Default()
	cfg.Approval = ApprovalConfig{AllowList: []string{"acme"}, DenyList: []string{"acme"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for tenant on both allow and deny lists")
	}
}
