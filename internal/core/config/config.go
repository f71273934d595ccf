package config

import (
	"time"

	redisclient "github.com/vietddude/calsync/internal/infra/redis"
	"github.com/vietddude/calsync/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Calendar CalendarConfig     `yaml:"calendar"`
	Retry    RetryConfig        `yaml:"retry"`
	ErrorLog ErrorLogConfig     `yaml:"error_log"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// CalendarConfig holds Google Calendar settings.
type CalendarConfig struct {
	Enabled         bool   `yaml:"enabled"`
	CalendarID      string `yaml:"calendar_id"`
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsJSON string `yaml:"credentials_json"`
	Location        string `yaml:"location"` // clinic name shown on events

	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RetryConfig holds retry queue settings.
type RetryConfig struct {
	MaxRetries      *int          `yaml:"max_retries"` // nil = default, 0 = never retry
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	ExponentialBase float64       `yaml:"exponential_base"`
	Interval        time.Duration `yaml:"interval"` // how often queued retries are drained
}

// ErrorLogConfig bounds the in-memory failure history.
type ErrorLogConfig struct {
	Capacity int `yaml:"capacity"`
}
