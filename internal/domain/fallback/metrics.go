package fallback

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
)

// StrategyStats is a point-in-time view of one strategy's counters.
type StrategyStats struct {
	Name                 string        `json:"name"`
	Priority             Priority      `json:"priority"`
	Enabled              bool          `json:"enabled"`
	SuccessCount         int64         `json:"success_count"`
	FailureCount         int64         `json:"failure_count"`
	SuccessRate          float64       `json:"success_rate"`
	TotalExecutionTime   time.Duration `json:"total_execution_time"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	// StdDevExecutionTime covers the most recent samples only.
	StdDevExecutionTime time.Duration `json:"stddev_execution_time"`
}

// Snapshot aggregates the manager's counters.
type Snapshot struct {
	Strategies          []StrategyStats     `json:"strategies"`
	TotalFallbacks      int64               `json:"total_fallbacks"`
	SuccessfulFallbacks int64               `json:"successful_fallbacks"`
	NoApplicable        int64               `json:"no_applicable_strategy"`
	SuccessRate         float64             `json:"success_rate"`
	Breaker             resilience.Snapshot `json:"breaker"`
}

// Metrics returns per-strategy and aggregate counters.
func (m *Manager) Metrics() Snapshot {
	m.mu.RLock()
	snap := Snapshot{
		Strategies:          make([]StrategyStats, 0, len(m.entries)),
		TotalFallbacks:      m.executions,
		SuccessfulFallbacks: m.recovered,
		NoApplicable:        m.noStrategy,
	}
	for _, e := range m.entries {
		snap.Strategies = append(snap.Strategies, e.stats())
	}
	m.mu.RUnlock()

	if snap.TotalFallbacks > 0 {
		snap.SuccessRate = float64(snap.SuccessfulFallbacks) / float64(snap.TotalFallbacks)
	}
	snap.Breaker = m.breaker.Metrics()
	return snap
}

// StrategyMetrics returns the stats for one strategy.
func (m *Manager) StrategyMetrics(name string) (StrategyStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.strategy.Name() == name {
			return e.stats(), true
		}
	}
	return StrategyStats{}, false
}

// stats must be called with the manager lock held.
func (e *entry) stats() StrategyStats {
	s := StrategyStats{
		Name:               e.strategy.Name(),
		Priority:           e.strategy.Priority(),
		Enabled:            e.enabled,
		SuccessCount:       e.successes,
		FailureCount:       e.failures,
		TotalExecutionTime: e.total,
	}
	if n := e.successes + e.failures; n > 0 {
		s.SuccessRate = float64(e.successes) / float64(n)
		s.AverageExecutionTime = e.total / time.Duration(n)
	}
	if len(e.samples) > 1 {
		_, std := stat.MeanStdDev(e.samples, nil)
		s.StdDevExecutionTime = time.Duration(std * float64(time.Second))
	}
	return s
}
