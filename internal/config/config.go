// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Store    StoreConfig
	Database DatabaseConfig
	Import   ImportConfig
	Server   ServerConfig
	Notify   NotifyConfig
	Logging  LoggingConfig
}

// StoreConfig selects and addresses the external record store.
type StoreConfig struct {
	// Backend is the store implementation: postgres, sqlite, elasticsearch, firestore
	Backend string `env:"STORE_BACKEND" default:"postgres" fold:"lower"`

	// URL is the store endpoint (required). Its meaning depends on the backend:
	// a postgres connection string, a sqlite file path, an Elasticsearch
	// address or a GCP project ID.
	URL string `env:"STORE_URL" envAlt:"DATABASE_URL" required:"true"`

	// WriteKey is the privileged credential used for writes (required).
	// Postgres password, Elasticsearch API key or a GCP credentials file.
	WriteKey string `env:"STORE_WRITE_KEY" required:"true"`

	// Collection is the fixed target table, index or collection name
	Collection string `env:"IMPORT_COLLECTION" default:"questions"`
}

// DatabaseConfig holds connection pool settings for the postgres backend.
type DatabaseConfig struct {
	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds settings for the import pipeline.
type ImportConfig struct {
	// Source is a local directory or a gs://bucket/prefix location
	Source string `env:"IMPORT_SOURCE" default:"./data/questions"`

	// BatchSize is the number of records per upsert call (default: 50)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"50"`

	// IDStrategy controls synthesized ids: random or content (default: random)
	IDStrategy string `env:"IMPORT_ID_STRATEGY" default:"random" fold:"lower"`

	// MappingFile is an optional YAML file overriding the field alias lists
	MappingFile string `env:"IMPORT_MAPPING_FILE"`

	// FailedDir receives "<file> - failed.csv" for batches that failed to write
	FailedDir string `env:"IMPORT_FAILED_DIR"`

	// Timeout bounds a whole run; 0 disables it (default: 0s)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"0s"`

	// MaxFileSize is the largest input file accepted: bytes or a KB/MB/GB size (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"100MB" unit:"bytes"`
}

// ServerConfig holds HTTP trigger server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 10m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`

	// RunWaitTime is how long a request waits for the active run to finish (default: 5s)
	RunWaitTime time.Duration `env:"SERVER_RUN_WAIT_TIME" default:"5s"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP/X-Forwarded-For headers are honored
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`

	// APIKeys guards the /api routes with X-API-Key when non-empty
	APIKeys []string `env:"SERVER_API_KEYS"`
}

// NotifyConfig holds run-completion notification settings.
type NotifyConfig struct {
	// KafkaBrokers is a comma-separated broker list; empty disables notifications
	KafkaBrokers []string `env:"KAFKA_BROKERS"`

	// KafkaTopic receives one message per completed run
	KafkaTopic string `env:"KAFKA_TOPIC" default:"qbank.imports"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" fold:"lower"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" fold:"lower"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
