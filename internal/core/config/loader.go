package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultPort            = 8080
	DefaultCalendarID      = "primary"
	DefaultLocation        = "Vasavi Dental Care"
	DefaultMaxRetries      = 3
	DefaultBaseDelay       = time.Second
	DefaultMaxDelay        = 30 * time.Second
	DefaultExponentialBase = 2.0
	DefaultRetryInterval   = time.Minute
	DefaultErrorLogSize    = 1000
	DefaultRequestsPerSec  = 5.0
)

// Load reads configuration from a YAML file. A missing file yields the
// defaults so the service can run from environment variables alone.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv fills calendar settings left empty by the file from the
// service-account environment variables.
func applyEnv(cfg *AppConfig) {
	if cfg.Calendar.CalendarID == "" {
		cfg.Calendar.CalendarID = os.Getenv("GOOGLE_CALENDAR_ID")
	}
	if cfg.Calendar.CredentialsJSON == "" && cfg.Calendar.CredentialsFile == "" {
		cfg.Calendar.CredentialsJSON = os.Getenv("GOOGLE_SERVICE_ACCOUNT_CREDENTIALS")
		if cfg.Calendar.CredentialsJSON != "" {
			cfg.Calendar.Enabled = true
		}
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Calendar.CalendarID == "" {
		cfg.Calendar.CalendarID = DefaultCalendarID
	}
	if cfg.Calendar.Location == "" {
		cfg.Calendar.Location = DefaultLocation
	}
	if cfg.Calendar.RequestsPerSecond == 0 {
		cfg.Calendar.RequestsPerSecond = DefaultRequestsPerSec
	}
	if cfg.Calendar.Burst == 0 {
		cfg.Calendar.Burst = int(cfg.Calendar.RequestsPerSecond)
	}

	if cfg.Retry.MaxRetries == nil {
		n := DefaultMaxRetries
		cfg.Retry.MaxRetries = &n
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = DefaultBaseDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = DefaultMaxDelay
	}
	if cfg.Retry.ExponentialBase == 0 {
		cfg.Retry.ExponentialBase = DefaultExponentialBase
	}
	if cfg.Retry.Interval == 0 {
		cfg.Retry.Interval = DefaultRetryInterval
	}

	if cfg.ErrorLog.Capacity == 0 {
		cfg.ErrorLog.Capacity = DefaultErrorLogSize
	}
}

// Validate rejects settings the service cannot run with.
func (c *AppConfig) Validate() error {
	if c.Retry.MaxRetries != nil && *c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0, got %d", *c.Retry.MaxRetries)
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay (%s) must be >= retry.base_delay (%s)", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	if c.Retry.ExponentialBase < 1 {
		return fmt.Errorf("retry.exponential_base must be >= 1, got %g", c.Retry.ExponentialBase)
	}
	if c.ErrorLog.Capacity < 0 {
		return fmt.Errorf("error_log.capacity must be >= 0, got %d", c.ErrorLog.Capacity)
	}
	if c.Calendar.Enabled && c.Calendar.CredentialsJSON == "" && c.Calendar.CredentialsFile == "" {
		return errors.New("calendar is enabled but no credentials are configured")
	}
	return nil
}
