package agent

import (
	"github.com/reliefops/logistics-agent/internal/status"
)

// Metrics are the cycle counters the agent accumulates. They are owned
// by the coordination goroutine and published to other readers through
// the status snapshot, so no locking happens here.
type Metrics struct {
	Cycles            int64
	Decisions         map[string]int64
	ExecutionFailures int64
	Alerts            int64
	Issues            int64
}

func newMetrics() *Metrics {
	return &Metrics{Decisions: make(map[string]int64)}
}

func (m *Metrics) snapshot() status.Metrics {
	decisions := make(map[string]int64, len(m.Decisions))
	for t, n := range m.Decisions {
		decisions[t] = n
	}
	return status.Metrics{
		Cycles:            m.Cycles,
		Decisions:         decisions,
		ExecutionFailures: m.ExecutionFailures,
		Alerts:            m.Alerts,
		Issues:            m.Issues,
	}
}
