package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
)

// ErrCircuitOpen matches every *CircuitBreakerError via errors.Is.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// MarshalText lets snapshots render the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CircuitBreakerError is returned when the breaker refuses to invoke the
// operation. It is distinct from any error the operation itself returns.
type CircuitBreakerError struct {
	Name         string
	State        State
	FailureCount int
}

// Error implements the error interface.
func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker %q is %s (failure count %d)", e.Name, e.State, e.FailureCount)
}

// Is makes errors.Is(err, ErrCircuitOpen) hold.
func (e *CircuitBreakerError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// OperationResult records the outcome of one guarded call.
type OperationResult struct {
	Success       bool
	Kind          taxonomy.Kind
	ExecutionTime time.Duration
	Timestamp     time.Time
}

// Option customizes a Breaker.
type Option func(*Breaker)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger attaches a logger used for state transitions.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Breaker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithStateChange registers a callback invoked on every transition. It runs
// while the breaker lock is held and must not call back into the breaker.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// Breaker implements the circuit breaker pattern with weighted failures and
// a sliding result window.
type Breaker struct {
	name          string
	config        Config
	now           func() time.Time
	logger        *zap.Logger
	onStateChange func(name string, from, to State)

	mu             sync.Mutex
	state          State
	failureCount   int
	successCount   int
	lastFailure    time.Time
	results        []OperationResult
	totalCalls     int64
	totalSuccesses int64
	totalFailures  int64
	rejected       int64
	avgExecTime    time.Duration
}

// New creates a new circuit breaker. Zero-valued config fields take their
// defaults.
func New(name string, config Config, opts ...Option) *Breaker {
	b := &Breaker{
		name:   name,
		config: config.withDefaults(),
		now:    time.Now,
		logger: zap.NewNop(),
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.results = make([]OperationResult, 0, b.config.WindowSize*2)
	return b
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// Config returns the breaker's effective configuration.
func (b *Breaker) Config() Config {
	return b.config
}

// State returns the current state. It does not perform the open to
// half-open transition; only a call does.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs op if the breaker permits it. A rejected call returns a
// *CircuitBreakerError without invoking op. Otherwise the outcome is
// recorded and op's own result and error are returned unchanged. An error
// from op matching ErrCircuitOpen is a refusal by another breaker and is
// recorded as neither success nor failure.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) (interface{}, error)) (interface{}, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}

	opCtx := ctx
	if b.config.TimeoutHint > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, b.config.TimeoutHint)
		defer cancel()
	}

	start := b.now()
	defer func() {
		if e := recover(); e != nil {
			b.onFailure(taxonomy.FromPanic(e), b.now().Sub(start))
			panic(e)
		}
	}()

	result, err := op(opCtx)
	elapsed := b.now().Sub(start)
	switch {
	case errors.Is(err, ErrCircuitOpen):
		// A nested breaker refused the call, so op produced no outcome.
	case err != nil:
		b.onFailure(err, elapsed)
	default:
		b.onSuccess(elapsed)
	}
	return result, err
}

// Do is a typed wrapper around Execute.
func Do[T any](ctx context.Context, b *Breaker, op func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := b.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return op(ctx)
	})
	if v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, err
	}
	return t, err
}

// beforeCall decides whether a call may proceed.
func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) < b.config.RecoveryTimeout {
			b.rejected++
			return &CircuitBreakerError{Name: b.name, State: b.state, FailureCount: b.failureCount}
		}
		b.setState(StateHalfOpen)
	}

	b.totalCalls++
	return nil
}

// onSuccess handles successful calls
func (b *Breaker) onSuccess(elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.record(OperationResult{Success: true, ExecutionTime: elapsed, Timestamp: b.now()})
	b.totalSuccesses++
	b.avgExecTime += (elapsed - b.avgExecTime) / time.Duration(b.totalSuccesses)

	if b.state == StateHalfOpen {
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.setState(StateClosed)
		}
	}
}

// onFailure handles failed calls
func (b *Breaker) onFailure(err error, elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kind := taxonomy.ClassifyKind(err)
	now := b.now()
	b.record(OperationResult{Success: false, Kind: kind, ExecutionTime: elapsed, Timestamp: now})
	b.totalFailures++

	// Stored truncated, so a weight below 1.0 never moves the count on its
	// own. Such failures can still open the circuit through the rate check.
	weight := b.config.weightFor(kind)
	b.failureCount = int(float64(b.failureCount) + weight)
	b.successCount = 0
	b.lastFailure = now

	switch b.state {
	case StateHalfOpen:
		b.setState(StateOpen)
	case StateClosed:
		if b.shouldOpen() {
			b.setState(StateOpen)
		}
	}
}

// record appends to the sliding window, trimming back to WindowSize once
// twice that many results accumulated.
func (b *Breaker) record(r OperationResult) {
	b.results = append(b.results, r)
	if len(b.results) >= b.config.WindowSize*2 {
		keep := make([]OperationResult, b.config.WindowSize, b.config.WindowSize*2)
		copy(keep, b.results[len(b.results)-b.config.WindowSize:])
		b.results = keep
	}
}

func (b *Breaker) shouldOpen() bool {
	if b.failureCount >= b.config.FailureThreshold {
		return true
	}
	if len(b.results) < b.config.WindowSize {
		return false
	}
	return b.failureRate() >= b.config.FailureRateThreshold
}

// failureRate is the failure ratio over the trailing window.
func (b *Breaker) failureRate() float64 {
	n := len(b.results)
	if n == 0 {
		return 0
	}
	window := b.results
	if n > b.config.WindowSize {
		window = b.results[n-b.config.WindowSize:]
	}

	failures := 0
	for _, r := range window {
		if !r.Success {
			failures++
		}
	}
	return float64(failures) / float64(len(window))
}

// setState changes the state of the circuit breaker
func (b *Breaker) setState(state State) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state

	switch state {
	case StateClosed:
		b.failureCount = 0
		b.successCount = 0
		b.lastFailure = time.Time{}
	case StateHalfOpen:
		b.successCount = 0
	}

	if state == StateOpen {
		b.logger.Warn("Circuit breaker opened",
			zap.String("breaker", b.name),
			zap.String("from", prev.String()),
			zap.Int("failure_count", b.failureCount),
		)
	} else {
		b.logger.Info("Circuit breaker state changed",
			zap.String("breaker", b.name),
			zap.String("from", prev.String()),
			zap.String("to", state.String()),
		)
	}

	if b.onStateChange != nil {
		b.onStateChange(b.name, prev, state)
	}
}

// ForceOpen opens the circuit immediately. The recovery timeout starts now.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	b.setState(StateOpen)
}

// ForceClose closes the circuit and clears the failure counters.
func (b *Breaker) ForceClose() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setState(StateClosed)
	b.failureCount = 0
	b.successCount = 0
	b.lastFailure = time.Time{}
}

// Reset clears all counters and history and returns to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setState(StateClosed)
	b.failureCount = 0
	b.successCount = 0
	b.lastFailure = time.Time{}
	b.results = b.results[:0]
	b.totalCalls = 0
	b.totalSuccesses = 0
	b.totalFailures = 0
	b.rejected = 0
	b.avgExecTime = 0
}
