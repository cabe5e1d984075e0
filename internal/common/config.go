package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Sessions    SessionsConfig   `toml:"sessions"`
	Automation  AutomationConfig `toml:"automation"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"` // "debug", "info", "warn", "error"
	Output []string `toml:"output"`                                      // "stdout", "file"
}

// SessionsConfig controls session TTLs, lock discipline and the expiry sweep
type SessionsConfig struct {
	TTL            time.Duration `toml:"ttl" validate:"gt=0"`             // Record + index TTL, reset on every put
	ReuseThreshold time.Duration `toml:"reuse_threshold" validate:"gt=0"` // Max idle age for session reuse
	LockWait       time.Duration `toml:"lock_wait" validate:"gt=0"`       // Bounded wait for session locks
	LockTTL        time.Duration `toml:"lock_ttl" validate:"gt=0"`        // Lock expiry safety net
	SweepSchedule  string        `toml:"sweep_schedule"`                  // Cron schedule for the expiry sweep ("" disables)
	OwnerScanCap   int           `toml:"owner_scan_cap" validate:"gt=0"`  // Max session ids loaded per owner lookup
}

// AutomationConfig configures the remote browser-automation backend client
type AutomationConfig struct {
	BaseURL        string        `toml:"base_url" validate:"required,url"`
	LoginURL       string        `toml:"login_url" validate:"required,url"` // Login page the backend drives
	RequestTimeout time.Duration `toml:"request_timeout" validate:"gt=0"`
	TaskTimeout    time.Duration `toml:"task_timeout" validate:"gt=0"` // Per-task timeout passed to the backend
	RateLimit      int           `toml:"rate_limit" validate:"gt=0"`   // Requests per second to the backend
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are expected in custos.toml; the rest are
// production defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Sessions: SessionsConfig{
			TTL:            24 * time.Hour, // 24 hours of inactivity before eviction
			ReuseThreshold: 24 * time.Hour,
			LockWait:       5 * time.Second,
			LockTTL:        10 * time.Second,
			SweepSchedule:  "*/15 * * * *", // Every 15 minutes
			OwnerScanCap:   100,
		},
		Automation: AutomationConfig{
			BaseURL:        "http://localhost:5055",
			LoginURL:       "https://accounts.google.com/ServiceLogin",
			RequestTimeout: 30 * time.Second,
			TaskTimeout:    90 * time.Second,
			RateLimit:      10,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration using struct validation tags
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CUSTOS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("CUSTOS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("CUSTOS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("CUSTOS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("CUSTOS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if baseURL := os.Getenv("CUSTOS_AUTOMATION_URL"); baseURL != "" {
		config.Automation.BaseURL = baseURL
	}
	if loginURL := os.Getenv("CUSTOS_AUTOMATION_LOGIN_URL"); loginURL != "" {
		config.Automation.LoginURL = loginURL
	}

	if ttl := os.Getenv("CUSTOS_SESSION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Sessions.TTL = d
		}
	}
	if schedule := os.Getenv("CUSTOS_SWEEP_SCHEDULE"); schedule != "" {
		config.Sessions.SweepSchedule = schedule
	}
}
