package resilience

import "time"

// Snapshot is a consistent, read-only view of a breaker.
type Snapshot struct {
	Name                 string        `json:"name"`
	State                State         `json:"state"`
	FailureCount         int           `json:"failure_count"`
	SuccessCount         int           `json:"success_count"`
	TotalCalls           int64         `json:"total_calls"`
	TotalSuccesses       int64         `json:"total_successes"`
	TotalFailures        int64         `json:"total_failures"`
	Rejected             int64         `json:"rejected_calls"`
	FailureRate          float64       `json:"failure_rate"`
	WindowLength         int           `json:"window_length"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	LastFailure          time.Time     `json:"last_failure,omitempty"`
	Config               ConfigEcho    `json:"config"`
}

// ConfigEcho mirrors Config in a serializable form.
type ConfigEcho struct {
	FailureThreshold     int                `json:"failure_threshold"`
	RecoveryTimeout      time.Duration      `json:"recovery_timeout"`
	SuccessThreshold     int                `json:"success_threshold"`
	TimeoutHint          time.Duration      `json:"timeout_hint"`
	FailureRateThreshold float64            `json:"failure_rate_threshold"`
	WindowSize           int                `json:"window_size"`
	ErrorWeights         map[string]float64 `json:"error_weights"`
	DefaultWeight        float64            `json:"default_weight"`
}

// Metrics returns a snapshot taken under the breaker lock.
func (b *Breaker) Metrics() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	weights := make(map[string]float64, len(b.config.ErrorWeights))
	for k, w := range b.config.ErrorWeights {
		weights[string(k)] = w
	}

	return Snapshot{
		Name:                 b.name,
		State:                b.state,
		FailureCount:         b.failureCount,
		SuccessCount:         b.successCount,
		TotalCalls:           b.totalCalls,
		TotalSuccesses:       b.totalSuccesses,
		TotalFailures:        b.totalFailures,
		Rejected:             b.rejected,
		FailureRate:          b.failureRate(),
		WindowLength:         len(b.results),
		AverageExecutionTime: b.avgExecTime,
		LastFailure:          b.lastFailure,
		Config: ConfigEcho{
			FailureThreshold:     b.config.FailureThreshold,
			RecoveryTimeout:      b.config.RecoveryTimeout,
			SuccessThreshold:     b.config.SuccessThreshold,
			TimeoutHint:          b.config.TimeoutHint,
			FailureRateThreshold: b.config.FailureRateThreshold,
			WindowSize:           b.config.WindowSize,
			ErrorWeights:         weights,
			DefaultWeight:        b.config.DefaultWeight,
		},
	}
}

// History returns a copy of the sliding window, oldest first.
func (b *Breaker) History() []OperationResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]OperationResult, len(b.results))
	copy(out, b.results)
	return out
}
