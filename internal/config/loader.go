package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "claimdesk.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CLAIMDESK_PORT")
	setString(&cfg.Server.CORSOrigin, "CLAIMDESK_CORS_ORIGIN")
	setInt64(&cfg.Server.BodyLimit, "CLAIMDESK_BODY_LIMIT")
	setFloat64(&cfg.Server.RateLimitRPS, "CLAIMDESK_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "CLAIMDESK_RATE_LIMIT_BURST")
	setDuration(&cfg.Server.IdempotencyTTL, "CLAIMDESK_IDEMPOTENCY_TTL")

	// Inference
	setString(&cfg.Inference.Provider, "CLAIMDESK_INFERENCE_PROVIDER")
	setString(&cfg.Inference.BaseURL, "CLAIMDESK_INFERENCE_BASE_URL")
	setDuration(&cfg.Inference.Timeout, "CLAIMDESK_INFERENCE_TIMEOUT")
	switch cfg.Inference.Provider {
	case "anthropic":
		setString(&cfg.Inference.APIKey, "ANTHROPIC_API_KEY")
	default:
		setString(&cfg.Inference.APIKey, "OPENAI_API_KEY")
	}
	setString(&cfg.Inference.APIKey, "CLAIMDESK_INFERENCE_API_KEY")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")

	// Agents
	setString(&cfg.Agents.Eloise.Model, "CLAIMDESK_ELOISE_MODEL")
	setFloat64(&cfg.Agents.Eloise.Temperature, "CLAIMDESK_ELOISE_TEMPERATURE")
	setString(&cfg.Agents.Coverage.Model, "CLAIMDESK_COVERAGE_MODEL")
	setFloat64(&cfg.Agents.Coverage.Temperature, "CLAIMDESK_COVERAGE_TEMPERATURE")
	setString(&cfg.Agents.Triage.Model, "CLAIMDESK_TRIAGE_MODEL")
	setFloat64(&cfg.Agents.Triage.Temperature, "CLAIMDESK_TRIAGE_TEMPERATURE")
	setString(&cfg.Agents.Chat.Model, "CLAIMDESK_CHAT_MODEL")

	setString(&cfg.Prompts.Dir, "CLAIMDESK_PROMPTS_DIR")
	setDuration(&cfg.Prompts.CacheTTL, "CLAIMDESK_PROMPTS_CACHE_TTL")
	setBool(&cfg.Orchestrator.RelayAfterDelegation, "CLAIMDESK_RELAY_AFTER_DELEGATION")

	// Audit mirrors
	setList(&cfg.Audit.Sinks, "CLAIMDESK_AUDIT_SINKS")
	setDuration(&cfg.Audit.PublishTimeout, "CLAIMDESK_AUDIT_PUBLISH_TIMEOUT")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Stream, "CLAIMDESK_NATS_STREAM")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CLAIMDESK_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CLAIMDESK_PG_MIN_CONNS")

	setString(&cfg.Logging.Level, "CLAIMDESK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CLAIMDESK_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CLAIMDESK_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "CLAIMDESK_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CLAIMDESK_BREAKER_TIMEOUT")

	setBool(&cfg.Telemetry.Enabled, "CLAIMDESK_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setFloat64(&cfg.Telemetry.SampleRate, "CLAIMDESK_OTEL_SAMPLE_RATE")

	setBool(&cfg.MCP.Enabled, "CLAIMDESK_MCP_ENABLED")
	setString(&cfg.MCP.APIKey, "CLAIMDESK_MCP_API_KEY")
	setBool(&cfg.A2A.Enabled, "CLAIMDESK_A2A_ENABLED")
	setString(&cfg.A2A.BaseURL, "CLAIMDESK_A2A_BASE_URL")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Server.BodyLimit < 1 {
		return errors.New("server.body_limit must be >= 1")
	}
	if cfg.Server.RateLimitRPS > 0 && cfg.Server.RateLimitBurst < 1 {
		return errors.New("server.rate_limit_burst must be >= 1 when rate limiting is enabled")
	}
	switch cfg.Inference.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("inference.provider %q must be openai or anthropic", cfg.Inference.Provider)
	}
	for _, s := range cfg.Audit.Sinks {
		switch s {
		case "nats":
			if cfg.NATS.URL == "" {
				return errors.New("nats.url is required when the nats audit sink is enabled")
			}
		case "postgres":
			if cfg.Postgres.DSN == "" {
				return errors.New("postgres.dsn is required when the postgres audit sink is enabled")
			}
		default:
			return fmt.Errorf("audit.sinks: unknown sink %q", s)
		}
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" && p != "none" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
