// Package config provides hierarchical configuration loading for the editor assistant.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the assistant service.
type Config struct {
	Server       Server       `yaml:"server"`
	ModelBackend ModelBackend `yaml:"model_backend"`
	BackingStore BackingStore `yaml:"backing_store"`
	Session      Session      `yaml:"session"`
	Logging      Logging      `yaml:"logging"`
	Breaker      Breaker      `yaml:"breaker"`
	Rate         Rate         `yaml:"rate"`
	Cache        Cache        `yaml:"cache"`
	NATS         NATS         `yaml:"nats"`
	Postgres     Postgres     `yaml:"postgres"`
	OTEL         OTEL         `yaml:"otel"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// ModelBackend holds the endpoint of the tool-calling model service.
type ModelBackend struct {
	URL           string        `yaml:"url"`  // Full URL of the chat endpoint
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int64         `yaml:"max_concurrent"` // Model calls in flight across all sessions
}

// BackingStore holds the aiwebengine server that persists scripts and assets.
type BackingStore struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
	Memory  bool          `yaml:"memory"` // Use the in-process store instead of a remote server
}

// Session holds conversation limits and lifecycle settings.
type Session struct {
	MaxTurns        int           `yaml:"max_turns"`
	MaxIterations   int           `yaml:"max_iterations"` // Model round trips per operator action
	IdleTTL         time.Duration `yaml:"idle_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds rate limiter configuration.
type Rate struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxIdleTime       time.Duration `yaml:"max_idle_time"`
}

// Cache holds the tiered content cache configuration used for preview lookups.
type Cache struct {
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	L1TTL       time.Duration `yaml:"l1_ttl"`
	L2Bucket    string        `yaml:"l2_bucket"`
	L2TTL       time.Duration `yaml:"l2_ttl"`
}

// NATS holds NATS JetStream configuration. Empty URL disables event publishing.
type NATS struct {
	URL string `yaml:"url"`
}

// Postgres holds the approval ledger database. Empty DSN keeps the ledger in memory.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check"`
}

// OTEL holds OpenTelemetry exporter configuration.
type OTEL struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		ModelBackend: ModelBackend{
			URL:           "http://localhost:4000/api/assistant/chat",
			Timeout:       2 * time.Minute,
			MaxConcurrent: 8,
		},
		BackingStore: BackingStore{
			URL:     "http://localhost:4000",
			Timeout: 30 * time.Second,
		},
		Session: Session{
			MaxTurns:        10,
			MaxIterations:   8,
			IdleTTL:         time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
		Logging: Logging{
			Level:   "info",
			Service: "aiwebengine-assistant",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Rate: Rate{
			RequestsPerSecond: 10,
			Burst:             100,
			CleanupInterval:   5 * time.Minute,
			MaxIdleTime:       10 * time.Minute,
		},
		Cache: Cache{
			L1MaxSizeMB: 32,
			L1TTL:       30 * time.Second,
			L2Bucket:    "ASSISTANT_CONTENT",
			L2TTL:       5 * time.Minute,
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
			HealthCheck:     time.Minute,
		},
		OTEL: OTEL{
			Endpoint:    "localhost:4317",
			ServiceName: "aiwebengine-assistant",
			Insecure:    true,
			SampleRate:  1.0,
		},
	}
}
