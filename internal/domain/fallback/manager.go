package fallback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/docshield/internal/shared/types"
)

// BreakerName is the name of the breaker guarding strategy execution.
const BreakerName = "fallback_manager"

// DefaultMaxAttempts caps strategies tried per ExecuteFallback call.
const DefaultMaxAttempts = 3

// sampleCap bounds the per-strategy latency samples kept for stats.
const sampleCap = 256

var (
	ErrNoApplicableStrategy = errors.New("no applicable fallback strategy")
	ErrChainExhausted       = errors.New("fallback chain exhausted")
	ErrDuplicateStrategy    = errors.New("strategy already registered")
	ErrUnknownStrategy      = errors.New("unknown strategy")
)

// Result is the outcome of one ExecuteFallback call.
type Result struct {
	Success      bool
	StrategyName string
	// FallbackLevel is the number of strategies attempted, including the
	// one that succeeded.
	FallbackLevel int
	Output        *types.ConversionResult
	Err           error
	Attempted     []string
	Duration      time.Duration
}

type entry struct {
	strategy  Strategy
	enabled   bool
	successes int64
	failures  int64
	total     time.Duration
	samples   []float64
}

func (e *entry) record(success bool, elapsed time.Duration) {
	if success {
		e.successes++
	} else {
		e.failures++
	}
	e.total += elapsed
	if len(e.samples) == sampleCap {
		copy(e.samples, e.samples[1:])
		e.samples = e.samples[:sampleCap-1]
	}
	e.samples = append(e.samples, elapsed.Seconds())
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records attempts into metrics.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithBreakerConfig overrides the internal breaker configuration.
func WithBreakerConfig(cfg resilience.Config) Option {
	return func(m *Manager) {
		m.breakerConfig = cfg
	}
}

// WithBreakerOptions passes options through to the internal breaker.
func WithBreakerOptions(opts ...resilience.Option) Option {
	return func(m *Manager) {
		m.breakerOpts = append(m.breakerOpts, opts...)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager tries registered strategies in priority order until one
// succeeds. Strategy panics and errors never escape ExecuteFallback.
type Manager struct {
	logger        *zap.Logger
	metrics       *monitoring.Metrics
	now           func() time.Time
	breakerConfig resilience.Config
	breakerOpts   []resilience.Option
	breaker       *resilience.Breaker

	mu         sync.RWMutex
	entries    []*entry
	executions int64
	recovered  int64
	noStrategy int64
}

// NewManager creates a manager with no strategies.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:        zap.NewNop(),
		now:           time.Now,
		breakerConfig: resilience.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	bopts := append([]resilience.Option{
		resilience.WithLogger(m.logger),
		resilience.WithClock(m.now),
	}, m.breakerOpts...)
	m.breaker = resilience.New(BreakerName, m.breakerConfig, bopts...)
	return m
}

// Breaker exposes the internal breaker for inspection and admin overrides.
func (m *Manager) Breaker() *resilience.Breaker {
	return m.breaker
}

// RegisterStrategy adds s, enabled, and re-sorts by priority. Ties keep
// registration order.
func (m *Manager) RegisterStrategy(s Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.strategy.Name() == s.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateStrategy, s.Name())
		}
	}
	m.entries = append(m.entries, &entry{strategy: s, enabled: true})
	m.sortLocked()

	m.logger.Debug("Registered fallback strategy",
		zap.String("strategy", s.Name()),
		zap.Stringer("priority", s.Priority()))
	return nil
}

// RemoveStrategy removes the named strategy and reports whether it existed.
func (m *Manager) RemoveStrategy(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.entries {
		if e.strategy.Name() == name {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			m.sortLocked()
			return true
		}
	}
	return false
}

// SetEnabled enables or disables the named strategy.
func (m *Manager) SetEnabled(name string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.strategy.Name() == name {
			e.enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
}

// Strategies returns registered strategy names in the order they are tried.
func (m *Manager) Strategies() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.strategy.Name()
	}
	return names
}

func (m *Manager) sortLocked() {
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].strategy.Priority() < m.entries[j].strategy.Priority()
	})
}

// applicable returns enabled strategies that accept file, in order.
func (m *Manager) applicable(file types.FileDescriptor, cause error) []*entry {
	m.mu.RLock()
	candidates := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.enabled {
			candidates = append(candidates, e)
		}
	}
	m.mu.RUnlock()

	out := candidates[:0]
	for _, e := range candidates {
		if m.canHandle(e.strategy, file, cause) {
			out = append(out, e)
		}
	}
	return out
}

func (m *Manager) canHandle(s Strategy, file types.FileDescriptor, cause error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("Fallback strategy panicked in CanHandle",
				zap.String("strategy", s.Name()),
				zap.Any("panic", r))
			ok = false
		}
	}()
	return s.CanHandle(file, cause)
}

// ExecuteFallback tries applicable strategies in priority order, at most
// maxAttempts of them (DefaultMaxAttempts when maxAttempts <= 0). With no
// applicable strategy it returns immediately without running anything.
func (m *Manager) ExecuteFallback(ctx context.Context, file types.FileDescriptor, outputPath string, cause error, maxAttempts int) Result {
	start := m.now()
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	candidates := m.applicable(file, cause)
	if len(candidates) == 0 {
		m.mu.Lock()
		m.noStrategy++
		m.mu.Unlock()

		m.logger.Info("No applicable fallback strategy",
			zap.String("file", file.Path),
			zap.Error(cause))
		return Result{Err: ErrNoApplicableStrategy, Duration: m.now().Sub(start)}
	}

	m.mu.Lock()
	m.executions++
	m.mu.Unlock()

	if len(candidates) > maxAttempts {
		candidates = candidates[:maxAttempts]
	}

	result := Result{Attempted: make([]string, 0, len(candidates))}
	var lastErr error
	for _, e := range candidates {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		name := e.strategy.Name()
		result.Attempted = append(result.Attempted, name)
		result.FallbackLevel = len(result.Attempted)

		output, err := m.attempt(ctx, e, file, outputPath, cause)
		if err == nil {
			m.mu.Lock()
			m.recovered++
			m.mu.Unlock()

			m.logger.Info("Fallback strategy succeeded",
				zap.String("strategy", name),
				zap.String("file", file.Path),
				zap.Int("level", result.FallbackLevel))

			result.Success = true
			result.StrategyName = name
			result.Output = output
			result.Duration = m.now().Sub(start)
			return result
		}

		lastErr = err
		m.logger.Warn("Fallback strategy failed",
			zap.String("strategy", name),
			zap.String("file", file.Path),
			zap.Error(err))
	}

	result.Err = fmt.Errorf("%w after %d attempts: %w", ErrChainExhausted, len(result.Attempted), lastErr)
	result.Duration = m.now().Sub(start)
	return result
}

// attempt runs one strategy through the breaker. A failed result counts
// as an error. A rejection by the breaker does not touch strategy stats.
func (m *Manager) attempt(ctx context.Context, e *entry, file types.FileDescriptor, outputPath string, cause error) (output *types.ConversionResult, err error) {
	name := e.strategy.Name()
	began := m.now()
	invoked := false

	defer func() {
		if r := recover(); r != nil {
			err = taxonomy.FromPanic(r).WithDetail("strategy", name)
			output = nil
		}
		if !invoked {
			return
		}
		elapsed := m.now().Sub(began)
		m.mu.Lock()
		e.record(err == nil, elapsed)
		m.mu.Unlock()
		m.metrics.RecordFallbackAttempt(name, err == nil, elapsed)
	}()

	return resilience.Do(ctx, m.breaker, func(ctx context.Context) (*types.ConversionResult, error) {
		invoked = true
		res, err := e.strategy.Execute(ctx, file, outputPath, cause)
		if err != nil {
			return res, err
		}
		if !res.Succeeded() {
			msg := "strategy returned no result"
			if res != nil && res.ErrorMessage != "" {
				msg = res.ErrorMessage
			}
			return res, taxonomy.New(taxonomy.KindGenericConversion, msg).WithDetail("strategy", name)
		}
		return res, nil
	})
}
