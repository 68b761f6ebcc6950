package monitoring

import "github.com/GriffinCanCode/docshield/internal/infrastructure/resilience"

// BreakerObserver returns a state change callback that mirrors breaker
// transitions into m. It is meant for resilience.WithStateChange.
func BreakerObserver(m *Metrics) func(name string, from, to resilience.State) {
	return func(name string, from, to resilience.State) {
		m.RecordBreakerTransition(name, from.String(), to.String())
		m.SetBreakerState(name, int(to))
	}
}
