package resilience

import (
	"fmt"
	"time"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
)

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the weighted failure count that opens the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open after the last failure.
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit.
	SuccessThreshold int
	// TimeoutHint bounds the operation's context. It is cooperative:
	// a call that ignores its context is never interrupted.
	TimeoutHint time.Duration
	// FailureRateThreshold opens the circuit when the failure ratio over the
	// trailing window reaches it. Must be within [0, 1].
	FailureRateThreshold float64
	// WindowSize is the number of trailing results used for the rate check.
	WindowSize int
	// ErrorWeights scales how much a failure of a given kind counts.
	// Lookups walk the kind's lineage before falling back to DefaultWeight.
	ErrorWeights map[taxonomy.Kind]float64
	// DefaultWeight applies to failures with no matching weight.
	DefaultWeight float64
}

// DefaultErrorWeights returns weights that trip the breaker faster on
// severe failures and slower on recoverable ones.
func DefaultErrorWeights() map[taxonomy.Kind]float64 {
	return map[taxonomy.Kind]float64{
		taxonomy.KindConversionMemory:  2.0,
		taxonomy.KindConversionTimeout: 1.5,
		taxonomy.KindUnrecoverable:     1.5,
		taxonomy.KindFontDescriptor:    0.5,
		taxonomy.KindValidationFailed:  0.5,
		taxonomy.KindPermission:        0.5,
	}
}

// DefaultConfig returns the default breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:     5,
		RecoveryTimeout:      60 * time.Second,
		SuccessThreshold:     3,
		TimeoutHint:          30 * time.Second,
		FailureRateThreshold: 0.5,
		WindowSize:           10,
		ErrorWeights:         DefaultErrorWeights(),
		DefaultWeight:        1.0,
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("success threshold must be positive, got %d", c.SuccessThreshold)
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", c.WindowSize)
	}
	if c.FailureRateThreshold < 0 || c.FailureRateThreshold > 1 {
		return fmt.Errorf("failure rate threshold must be within [0,1], got %v", c.FailureRateThreshold)
	}
	if c.RecoveryTimeout < 0 {
		return fmt.Errorf("recovery timeout cannot be negative")
	}
	return nil
}

// weightFor resolves the weight for kind: exact match, then the nearest
// supertype, then the default.
func (c Config) weightFor(kind taxonomy.Kind) float64 {
	for _, k := range taxonomy.Lineage(kind) {
		if w, ok := c.ErrorWeights[k]; ok {
			return w
		}
	}
	return c.DefaultWeight
}

// withDefaults replaces values Validate would reject. Zero recovery
// timeout and zero failure rate are valid and kept.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	if c.WindowSize <= 0 {
		c.WindowSize = def.WindowSize
	}
	if c.RecoveryTimeout < 0 {
		c.RecoveryTimeout = def.RecoveryTimeout
	}
	if c.FailureRateThreshold < 0 || c.FailureRateThreshold > 1 {
		c.FailureRateThreshold = def.FailureRateThreshold
	}
	if c.DefaultWeight <= 0 {
		c.DefaultWeight = def.DefaultWeight
	}
	if c.ErrorWeights == nil {
		c.ErrorWeights = map[taxonomy.Kind]float64{}
	}
	return c
}
