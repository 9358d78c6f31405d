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
const DefaultConfigFile = "assistant.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if v := os.Getenv("ASSISTANT_CONFIG"); v != "" {
		path = v
	}
	return LoadFrom(path)
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
	setString(&cfg.Server.Port, "ASSISTANT_PORT")
	setString(&cfg.Server.CORSOrigin, "ASSISTANT_CORS_ORIGIN")

	setString(&cfg.ModelBackend.URL, "ASSISTANT_MODEL_URL")
	setString(&cfg.ModelBackend.APIKey, "ASSISTANT_MODEL_API_KEY")
	setDuration(&cfg.ModelBackend.Timeout, "ASSISTANT_MODEL_TIMEOUT")
	setInt64(&cfg.ModelBackend.MaxConcurrent, "ASSISTANT_MODEL_MAX_CONCURRENT")

	setString(&cfg.BackingStore.URL, "AIWEBENGINE_URL")
	setString(&cfg.BackingStore.Token, "AIWEBENGINE_TOKEN")
	setDuration(&cfg.BackingStore.Timeout, "ASSISTANT_STORE_TIMEOUT")
	setBool(&cfg.BackingStore.Memory, "ASSISTANT_STORE_MEMORY")

	setInt(&cfg.Session.MaxTurns, "ASSISTANT_MAX_TURNS")
	setInt(&cfg.Session.MaxIterations, "ASSISTANT_MAX_ITERATIONS")
	setDuration(&cfg.Session.IdleTTL, "ASSISTANT_SESSION_IDLE_TTL")
	setDuration(&cfg.Session.CleanupInterval, "ASSISTANT_SESSION_CLEANUP_INTERVAL")

	setString(&cfg.Logging.Level, "ASSISTANT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "ASSISTANT_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "ASSISTANT_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "ASSISTANT_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "ASSISTANT_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "ASSISTANT_RATE_RPS")
	setInt(&cfg.Rate.Burst, "ASSISTANT_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "ASSISTANT_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "ASSISTANT_RATE_MAX_IDLE_TIME")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "ASSISTANT_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "ASSISTANT_CACHE_L1_TTL")
	setString(&cfg.Cache.L2Bucket, "ASSISTANT_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "ASSISTANT_CACHE_L2_TTL")

	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "ASSISTANT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "ASSISTANT_PG_MIN_CONNS")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "ASSISTANT_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "ASSISTANT_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "ASSISTANT_OTEL_SAMPLE_RATE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.ModelBackend.URL == "" {
		return errors.New("model_backend.url is required")
	}
	if cfg.ModelBackend.MaxConcurrent < 1 {
		return errors.New("model_backend.max_concurrent must be >= 1")
	}
	if !cfg.BackingStore.Memory && cfg.BackingStore.URL == "" {
		return errors.New("backing_store.url is required unless backing_store.memory is set")
	}
	if cfg.Session.MaxTurns < 1 {
		return errors.New("session.max_turns must be >= 1")
	}
	if cfg.Session.MaxIterations < 1 {
		return errors.New("session.max_iterations must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Postgres.DSN != "" && cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be between 0 and 1")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
