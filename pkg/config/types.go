package config

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Config is the main configuration struct, loaded from YAML with env and
// flag overrides applied on top.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tail      TailConfig      `yaml:"tail"`
	Notify    NotifyConfig    `yaml:"notify"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds http listener settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StorageConfig holds pebble settings and retry policy for transient
// storage failures.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
	// Retries is the number of internal retries for transient storage
	// errors before surfacing them to the caller.
	Retries int `yaml:"retries"`
	// RetryBackoff is the initial backoff; doubled per attempt.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// SecurityConfig holds the per-uid rate limit applied at the gateway.
type SecurityConfig struct {
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// TailConfig bounds the live tail dispatcher.
type TailConfig struct {
	// ReplayWindow is the number of recent messages kept per channel for
	// replay to late subscribers.
	ReplayWindow int `yaml:"replay_window"`
	// SubscriberBuffer is the per-subscriber channel depth; a subscriber
	// that falls this far behind is disconnected.
	SubscriberBuffer int `yaml:"subscriber_buffer"`
}

// NotifyConfig bounds the push-notification event queue.
type NotifyConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
	Workers       int `yaml:"workers"`
	// MaxPooledPayload is a human-readable size ("256 KiB"); payload buffers
	// larger than this are not returned to the pool.
	MaxPooledPayload string `yaml:"max_pooled_payload"`
}

// RetentionConfig drives the cron sweeper that expires idempotency records.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// IdempotencyTTL is how long append idempotency keys are honored.
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

// ApplyDefaults fills zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "./.database"
	}
	if c.Storage.Retries == 0 {
		c.Storage.Retries = 3
	}
	if c.Storage.RetryBackoff == 0 {
		c.Storage.RetryBackoff = 50 * time.Millisecond
	}
	if c.Tail.ReplayWindow == 0 {
		c.Tail.ReplayWindow = 256
	}
	if c.Tail.SubscriberBuffer == 0 {
		c.Tail.SubscriberBuffer = 64
	}
	if c.Notify.QueueCapacity == 0 {
		c.Notify.QueueCapacity = 64 * 1024
	}
	if c.Notify.Workers == 0 {
		c.Notify.Workers = 2
	}
	if c.Notify.MaxPooledPayload == "" {
		c.Notify.MaxPooledPayload = "256 KiB"
	}
	if c.Retention.Cron == "" {
		c.Retention.Cron = "*/10 * * * *"
	}
	if c.Retention.IdempotencyTTL == 0 {
		c.Retention.IdempotencyTTL = 24 * time.Hour
	}
	if c.Security.RateLimit.RPS == 0 {
		c.Security.RateLimit.RPS = 50
	}
	if c.Security.RateLimit.Burst == 0 {
		c.Security.RateLimit.Burst = 100
	}
}

// MaxPooledPayloadBytes parses the humanized pool cap.
func (c *Config) MaxPooledPayloadBytes() (int, error) {
	n, err := humanize.ParseBytes(c.Notify.MaxPooledPayload)
	if err != nil {
		return 0, fmt.Errorf("invalid notify.max_pooled_payload: %w", err)
	}
	return int(n), nil
}

// ListenAddr renders the host:port the HTTP server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
