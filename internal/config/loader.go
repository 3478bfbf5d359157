package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "chatpilot.yaml"

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
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
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
	setString(&cfg.Server.Port, "CHATPILOT_PORT")
	setString(&cfg.Server.CORSOrigin, "CHATPILOT_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CHATPILOT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CHATPILOT_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CHATPILOT_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CHATPILOT_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CHATPILOT_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Upstream.URL, "CHATPILOT_UPSTREAM_URL")
	setString(&cfg.Upstream.APIKey, "CHATPILOT_UPSTREAM_API_KEY")
	setString(&cfg.Upstream.Model, "CHATPILOT_UPSTREAM_MODEL")
	setDuration(&cfg.Upstream.Timeout, "CHATPILOT_UPSTREAM_TIMEOUT")
	setBool(&cfg.Chat.Simulate, "CHATPILOT_SIMULATE")
	setDuration(&cfg.Chat.SimulateDelay, "CHATPILOT_SIMULATE_DELAY")
	setDuration(&cfg.Chat.TurnTimeout, "CHATPILOT_TURN_TIMEOUT")
	setInt64(&cfg.Chat.MaxInputBytes, "CHATPILOT_MAX_INPUT_BYTES")
	setInt(&cfg.Excel.TemplateRows, "CHATPILOT_EXCEL_TEMPLATE_ROWS")
	setInt64(&cfg.Excel.MaxUploadMB, "CHATPILOT_EXCEL_MAX_UPLOAD_MB")
	setInt64(&cfg.Cache.MaxSizeMB, "CHATPILOT_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.RenderTTL, "CHATPILOT_CACHE_RENDER_TTL")
	setDuration(&cfg.Cache.WelcomeTTL, "CHATPILOT_CACHE_WELCOME_TTL")
	setString(&cfg.Logging.Level, "CHATPILOT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CHATPILOT_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CHATPILOT_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "CHATPILOT_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "CHATPILOT_BREAKER_TIMEOUT")
	setBool(&cfg.Telemetry.Enabled, "CHATPILOT_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "CHATPILOT_OTEL_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "CHATPILOT_OTEL_INSECURE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Excel.TemplateRows < 1 {
		return errors.New("excel.template_rows must be >= 1")
	}
	if !cfg.Chat.Simulate && cfg.Upstream.URL == "" {
		return errors.New("upstream.url is required unless chat.simulate is set")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
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
