package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/docshield/internal/domain/recovery"
	"github.com/GriffinCanCode/docshield/internal/domain/reporting"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Breaker   BreakerConfig
	Fallback  FallbackConfig
	Recovery  RecoveryConfig
	Reporter  ReporterConfig
	Pipeline  PipelineConfig
}

// ServerConfig holds status server configuration.
type ServerConfig struct {
	Enabled bool   `envconfig:"DOCSHIELD_SERVE" default:"false"`
	Port    string `envconfig:"DOCSHIELD_PORT" default:"8080"`
	Host    string `envconfig:"DOCSHIELD_HOST" default:"127.0.0.1"`
	// AllowOrigins lists CORS origins. Empty allows all.
	AllowOrigins []string `envconfig:"DOCSHIELD_CORS_ORIGINS"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"DOCSHIELD_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"DOCSHIELD_LOG_DEV" default:"false"`
}

// RateLimitConfig holds status API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"DOCSHIELD_RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"DOCSHIELD_RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"DOCSHIELD_RATE_LIMIT_ENABLED" default:"true"`
}

// BreakerConfig configures every circuit breaker.
type BreakerConfig struct {
	FailureThreshold     int           `envconfig:"DOCSHIELD_BREAKER_FAILURE_THRESHOLD" default:"5"`
	RecoveryTimeout      time.Duration `envconfig:"DOCSHIELD_BREAKER_RECOVERY_TIMEOUT" default:"60s"`
	SuccessThreshold     int           `envconfig:"DOCSHIELD_BREAKER_SUCCESS_THRESHOLD" default:"3"`
	Timeout              time.Duration `envconfig:"DOCSHIELD_BREAKER_TIMEOUT" default:"30s"`
	FailureRateThreshold float64       `envconfig:"DOCSHIELD_BREAKER_FAILURE_RATE" default:"0.5"`
	WindowSize           int           `envconfig:"DOCSHIELD_BREAKER_WINDOW" default:"10"`
}

// FallbackConfig configures the fallback chain.
type FallbackConfig struct {
	MaxAttempts    int  `envconfig:"DOCSHIELD_FALLBACK_MAX_ATTEMPTS" default:"3"`
	DiagnosticStub bool `envconfig:"DOCSHIELD_FALLBACK_STUB" default:"true"`
}

// RecoveryConfig configures the recovery orchestrator.
type RecoveryConfig struct {
	MaxAttempts int `envconfig:"DOCSHIELD_RECOVERY_MAX_ATTEMPTS" default:"3"`
	// RulesFile overrides rules from a YAML or TOML file.
	RulesFile string `envconfig:"DOCSHIELD_RECOVERY_RULES"`
	// RetryRate is retries per second across the batch. Zero is unlimited.
	RetryRate  float64 `envconfig:"DOCSHIELD_RECOVERY_RETRY_RATE" default:"0"`
	RetryBurst int     `envconfig:"DOCSHIELD_RECOVERY_RETRY_BURST" default:"10"`
	// Intervention is the answer given when a rule asks for user
	// intervention and nobody is there to ask.
	Intervention string `envconfig:"DOCSHIELD_RECOVERY_INTERVENTION" default:"skip_file"`
}

// ReporterConfig configures error reporting.
type ReporterConfig struct {
	Capacity int    `envconfig:"DOCSHIELD_REPORT_CAPACITY" default:"1000"`
	Path     string `envconfig:"DOCSHIELD_REPORT_PATH"`
	Format   string `envconfig:"DOCSHIELD_REPORT_FORMAT" default:"json"`
}

// PipelineConfig configures batch runs.
type PipelineConfig struct {
	Workers     int      `envconfig:"DOCSHIELD_WORKERS" default:"0"`
	Include     []string `envconfig:"DOCSHIELD_INCLUDE"`
	Exclude     []string `envconfig:"DOCSHIELD_EXCLUDE"`
	Hidden      bool     `envconfig:"DOCSHIELD_HIDDEN" default:"false"`
	MaxFileSize int64    `envconfig:"DOCSHIELD_MAX_FILE_SIZE" default:"67108864"`
}

// Resilience converts the section into a breaker configuration.
func (b BreakerConfig) Resilience() resilience.Config {
	cfg := resilience.DefaultConfig()
	cfg.FailureThreshold = b.FailureThreshold
	cfg.RecoveryTimeout = b.RecoveryTimeout
	cfg.SuccessThreshold = b.SuccessThreshold
	cfg.TimeoutHint = b.Timeout
	cfg.FailureRateThreshold = b.FailureRateThreshold
	cfg.WindowSize = b.WindowSize
	return cfg
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
		Breaker: BreakerConfig{
			FailureThreshold:     5,
			RecoveryTimeout:      60 * time.Second,
			SuccessThreshold:     3,
			Timeout:              30 * time.Second,
			FailureRateThreshold: 0.5,
			WindowSize:           10,
		},
		Fallback: FallbackConfig{
			MaxAttempts:    3,
			DiagnosticStub: true,
		},
		Recovery: RecoveryConfig{
			MaxAttempts:  3,
			RetryBurst:   10,
			Intervention: string(recovery.ActionSkipFile),
		},
		Reporter: ReporterConfig{
			Capacity: reporting.DefaultCapacity,
			Format:   string(reporting.FormatJSON),
		},
		Pipeline: PipelineConfig{
			MaxFileSize: 64 << 20,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Breaker.Resilience().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Fallback.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("fallback max attempts must be positive, got %d", c.Fallback.MaxAttempts))
	}
	if c.Recovery.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("recovery max attempts must be positive, got %d", c.Recovery.MaxAttempts))
	}
	if c.Recovery.RetryRate < 0 {
		errs = append(errs, fmt.Errorf("retry rate must not be negative, got %v", c.Recovery.RetryRate))
	}
	if _, err := c.InterventionAction(); err != nil {
		errs = append(errs, err)
	}
	if _, err := reporting.ParseFormat(c.Reporter.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Pipeline.Workers))
	}
	return errors.Join(errs...)
}

// InterventionAction parses Recovery.Intervention. It must be one of the
// choices an intervention may answer with.
func (c *Config) InterventionAction() (recovery.Action, error) {
	a, err := recovery.ParseAction(c.Recovery.Intervention)
	if err != nil {
		return "", err
	}
	switch a {
	case recovery.ActionRetry, recovery.ActionFallback, recovery.ActionSkipFile, recovery.ActionAbortBatch:
		return a, nil
	}
	return "", fmt.Errorf("%s cannot answer a user intervention", a)
}
