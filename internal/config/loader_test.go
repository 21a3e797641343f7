package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claimdesk.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Inference.Provider != "openai" {
		t.Errorf("expected openai provider, got %s", cfg.Inference.Provider)
	}
	if !cfg.Orchestrator.RelayAfterDelegation {
		t.Error("relay after delegation should default to on")
	}
	if len(cfg.Audit.Sinks) != 0 {
		t.Errorf("expected no audit sinks by default, got %v", cfg.Audit.Sinks)
	}
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestAgentsFor(t *testing.T) {
	cfg := Defaults()
	tests := []struct {
		id   agent.Identity
		temp float64
	}{
		{agent.Eloise, 0.5},
		{agent.Coverage, 0.2},
		{agent.Triage, 0.2},
	}
	for _, tt := range tests {
		if got := cfg.Agents.For(tt.id).Temperature; got != tt.temp {
			t.Errorf("Agents.For(%s).Temperature = %v, want %v", tt.id, got, tt.temp)
		}
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	path := writeYAML(t, `
server:
  port: "9090"
agents:
  coverage:
    model: "claude-sonnet"
audit:
  sinks: ["nats"]
logging:
  level: "debug"
`)
	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Agents.Coverage.Model != "claude-sonnet" {
		t.Errorf("expected coverage model override, got %s", cfg.Agents.Coverage.Model)
	}
	if cfg.Agents.Coverage.Temperature != 0.2 {
		t.Errorf("unset temperature should keep default, got %v", cfg.Agents.Coverage.Temperature)
	}
	if !cfg.Audit.HasSink("nats") || cfg.Audit.HasSink("postgres") {
		t.Errorf("sinks = %v", cfg.Audit.Sinks)
	}
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLZeroTemperature(t *testing.T) {
	path := writeYAML(t, `
agents:
  triage:
    temperature: 0
`)
	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		t.Fatal(err)
	}
	if cfg.Agents.Triage.Temperature != 0 {
		t.Errorf("explicit zero temperature should override the default, got %v", cfg.Agents.Triage.Temperature)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/path.yaml"); err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLMalformed(t *testing.T) {
	path := writeYAML(t, "server: [unterminated")
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CLAIMDESK_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("CLAIMDESK_LOG_LEVEL", "warn")
	t.Setenv("CLAIMDESK_BREAKER_TIMEOUT", "1m")
	t.Setenv("CLAIMDESK_AUDIT_SINKS", "nats, postgres")
	t.Setenv("CLAIMDESK_RELAY_AFTER_DELEGATION", "false")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Defaults()
	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("unexpected DSN %s", cfg.Postgres.DSN)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected warn, got %s", cfg.Logging.Level)
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("expected 1m, got %v", cfg.Breaker.Timeout)
	}
	if !slices.Equal(cfg.Audit.Sinks, []string{"nats", "postgres"}) {
		t.Errorf("sinks = %v", cfg.Audit.Sinks)
	}
	if cfg.Orchestrator.RelayAfterDelegation {
		t.Error("relay after delegation should be disabled")
	}
	if cfg.Inference.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.Inference.APIKey)
	}
}

func TestEnvAPIKeyFollowsProvider(t *testing.T) {
	t.Setenv("CLAIMDESK_INFERENCE_PROVIDER", "anthropic")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg := Defaults()
	loadEnv(&cfg)
	if cfg.Inference.APIKey != "sk-ant" {
		t.Errorf("api key = %q, want anthropic key", cfg.Inference.APIKey)
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	t.Setenv("CLAIMDESK_BREAKER_MAX_FAILURES", "lots")
	t.Setenv("CLAIMDESK_BREAKER_TIMEOUT", "soon")

	cfg := Defaults()
	loadEnv(&cfg)
	if cfg.Breaker.MaxFailures != 5 || cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("invalid env should keep defaults, got %+v", cfg.Breaker)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"unknown provider", func(c *Config) { c.Inference.Provider = "bard" }},
		{"unknown sink", func(c *Config) { c.Audit.Sinks = []string{"kafka"} }},
		{"nats sink without url", func(c *Config) { c.Audit.Sinks = []string{"nats"}; c.NATS.URL = "" }},
		{"postgres sink without dsn", func(c *Config) { c.Audit.Sinks = []string{"postgres"}; c.Postgres.DSN = "" }},
		{"zero breaker failures", func(c *Config) { c.Breaker.MaxFailures = 0 }},
		{"zero body limit", func(c *Config) { c.Server.BodyLimit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := validate(&cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	flags, err := ParseFlags([]string{"--port", "9090", "--log-level", "debug"})
	if err != nil {
		t.Fatal(err)
	}
	if flags.Port == nil || *flags.Port != "9090" {
		t.Errorf("expected port 9090, got %v", flags.Port)
	}
	if flags.LogLevel == nil || *flags.LogLevel != "debug" {
		t.Errorf("expected log-level debug, got %v", flags.LogLevel)
	}
	if flags.DSN != nil || flags.NatsURL != nil || flags.ConfigPath != nil {
		t.Error("unset flags should remain nil")
	}
}

func TestParseFlagsShorthand(t *testing.T) {
	flags, err := ParseFlags([]string{"-p", "7070", "-c", "custom.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	if flags.Port == nil || *flags.Port != "7070" {
		t.Errorf("expected port 7070, got %v", flags.Port)
	}
	if flags.ConfigPath == nil || *flags.ConfigPath != "custom.yaml" {
		t.Errorf("expected config custom.yaml, got %v", flags.ConfigPath)
	}
}

func TestParseFlagsInvalid(t *testing.T) {
	if _, err := ParseFlags([]string{"--unknown-flag"}); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestCLIOverridesEnv(t *testing.T) {
	t.Setenv("CLAIMDESK_PORT", "7070")
	t.Setenv("CLAIMDESK_LOG_LEVEL", "warn")

	flags, err := ParseFlags([]string{"--port", "3333", "--log-level", "error", "--config", "/nonexistent.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	cfg, path, err := LoadWithCLI(flags)
	if err != nil {
		t.Fatal(err)
	}
	if path != "/nonexistent.yaml" {
		t.Errorf("resolved path = %s", path)
	}
	if cfg.Server.Port != "3333" {
		t.Errorf("expected CLI port 3333 to override ENV 7070, got %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("expected CLI log-level error to override ENV warn, got %s", cfg.Logging.Level)
	}
}

func TestApplyCLINilFlags(t *testing.T) {
	cfg := Defaults()
	original := cfg
	applyCLI(&cfg, CLIFlags{})
	if cfg.Server.Port != original.Server.Port || cfg.Logging.Level != original.Logging.Level {
		t.Error("nil flags should change nothing")
	}
}

func TestReload(t *testing.T) {
	path := writeYAML(t, `
logging:
  level: "info"
`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	holder := NewHolder(cfg, path)

	if err := os.WriteFile(path, []byte(`
logging:
  level: "debug"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := holder.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := holder.Get().Logging.Level; got != "debug" {
		t.Errorf("after reload: level %q, want debug", got)
	}

	if err := os.WriteFile(path, []byte(`
server:
  port: ""
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := holder.Reload(); err == nil {
		t.Fatal("expected reload to fail for invalid config")
	}
	if got := holder.Get().Logging.Level; got != "debug" {
		t.Errorf("failed reload should keep old config, got level %q", got)
	}
}
