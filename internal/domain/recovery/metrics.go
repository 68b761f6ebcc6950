package recovery

import (
	"github.com/GriffinCanCode/docshield/internal/domain/fallback"
	"github.com/GriffinCanCode/docshield/internal/domain/taxonomy"
	"github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"
)

// Counts tallies attempts by outcome.
type Counts struct {
	Attempts  int64 `json:"attempts"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
}

func (c *Counts) add(success bool) {
	c.Attempts++
	if success {
		c.Successes++
	} else {
		c.Failures++
	}
}

type stats struct {
	recoveries Counts
	byAction   map[Action]*Counts
	byKind     map[taxonomy.Kind]*Counts
}

func newStats() stats {
	return stats{
		byAction: make(map[Action]*Counts),
		byKind:   make(map[taxonomy.Kind]*Counts),
	}
}

// Snapshot is a point-in-time view of the orchestrator's counters along
// with its nested breaker and fallback manager.
type Snapshot struct {
	Recoveries  Counts                   `json:"recoveries"`
	SuccessRate float64                  `json:"success_rate"`
	ByAction    map[Action]Counts        `json:"by_action"`
	ByKind      map[taxonomy.Kind]Counts `json:"by_kind"`
	Rules       []Rule                   `json:"rules"`
	Breaker     resilience.Snapshot      `json:"breaker"`
	Fallback    *fallback.Snapshot       `json:"fallback,omitempty"`
}

func (o *Orchestrator) recordAction(action Action, kind taxonomy.Kind, success bool) {
	o.mu.Lock()
	c, ok := o.stats.byAction[action]
	if !ok {
		c = &Counts{}
		o.stats.byAction[action] = c
	}
	c.add(success)

	k, ok := o.stats.byKind[kind]
	if !ok {
		k = &Counts{}
		o.stats.byKind[kind] = k
	}
	k.add(success)
	o.mu.Unlock()

	o.metrics.RecordRecoveryAction(string(action), string(kind), success)
}

func (o *Orchestrator) recordRecovery(success bool) {
	o.mu.Lock()
	o.stats.recoveries.add(success)
	o.mu.Unlock()
}

// Metrics returns the orchestrator's counters.
func (o *Orchestrator) Metrics() Snapshot {
	o.mu.Lock()
	snap := Snapshot{
		Recoveries: o.stats.recoveries,
		ByAction:   make(map[Action]Counts, len(o.stats.byAction)),
		ByKind:     make(map[taxonomy.Kind]Counts, len(o.stats.byKind)),
	}
	for a, c := range o.stats.byAction {
		snap.ByAction[a] = *c
	}
	for k, c := range o.stats.byKind {
		snap.ByKind[k] = *c
	}
	o.mu.Unlock()

	if snap.Recoveries.Attempts > 0 {
		snap.SuccessRate = float64(snap.Recoveries.Successes) / float64(snap.Recoveries.Attempts)
	}
	snap.Rules = o.rules.Rules()
	snap.Breaker = o.breaker.Metrics()
	if o.fallback != nil {
		fb := o.fallback.Metrics()
		snap.Fallback = &fb
	}
	return snap
}
