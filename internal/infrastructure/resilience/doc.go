/*
Package resilience provides a weighted, windowed circuit breaker for guarding
unreliable conversion operations.

# Overview

Each Breaker is keyed by an operation name and owned by the component that
created it. It accumulates weighted failures, tracks a sliding window of
recent outcomes, and fails fast once the guarded operation is unhealthy.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Per-kind failure weights resolved through the taxonomy lineage
- Rate-based tripping over a sliding window
- Distinct CircuitBreakerError for rejected calls
- Administrative overrides (ForceOpen, ForceClose, Reset)
- Snapshots taken under the same lock as mutations
- Registry of named breakers sharing one Config

# Usage

	breaker := resilience.New("convert.pdf", resilience.DefaultConfig(),
		resilience.WithLogger(logger.Logger),
		resilience.WithStateChange(func(name string, from, to resilience.State) {
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		}),
	)

	out, err := resilience.Do(ctx, breaker, func(ctx context.Context) (*types.ConversionResult, error) {
		return converter.Convert(ctx, file, outputPath)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// refused without calling the converter
	}

# States

	Closed --[weighted failures or failure rate]-> Open --[recovery timeout, next call]-> Half-Open
	                                                  ^                                      |
	                                                  +-------------[any failure]------------+
	Half-Open --[SuccessThreshold consecutive successes]-> Closed

# Failure weighting

The failure counter is accumulated as a float and stored truncated:

	failureCount = int(float64(failureCount) + weight)

so a weight of 0.5 against a count of 0 leaves the count at 0. This keeps
the exact point at which the threshold trips stable across implementations.

# Timeouts

Config.TimeoutHint is applied as a deadline on the context passed to the
operation. Operations that honour their context stop early; nothing in this
package forcibly interrupts a call that ignores it.
*/
package resilience
