// Package engine holds the decision algorithms at the core of the agent:
// pure functions that turn a snapshot of warehouses, shipments, and route
// conditions into corrective decisions. Nothing in this package performs
// I/O or mutates its inputs; distance and routing lookups are supplied by
// the caller through the oracle interfaces.
package engine

// Reasons recorded on emitted decisions. The executor and notifier key
// off these, so they are part of the engine's contract.
const (
	ReasonBelowThreshold   = "inventory_below_threshold"
	ReasonBalancing        = "inventory_balancing"
	ReasonRouteDisruption  = "route_disruption"
	ReasonSignificantDelay = "significant_delay"
	ReasonReceivingStagger = "optimize_receiving_operations"
)

// Transfer priorities by cause. Shortage responses outrank preventive
// rebalancing.
const (
	priorityShortageHigh   = 8
	priorityShortageMedium = 5
	priorityRebalance      = 3
)

// Params are the tunable thresholds shared by the decision functions.
type Params struct {
	// RerouteDelayMinutes is the delay beyond which a shipment is
	// rerouted even when its current route is not disrupted.
	RerouteDelayMinutes int

	// ReplenishTarget is the multiple of an item's minimum threshold
	// a replenishment transfer aims to restore.
	ReplenishTarget float64

	// ImbalanceBand is how far from the mean fill ratio a warehouse
	// must sit before it counts as excess or deficit.
	ImbalanceBand float64

	// RebalanceDamping shrinks rebalance amounts so a transfer lands
	// a warehouse near the mean instead of overshooting past it.
	RebalanceDamping float64
}

// DefaultParams returns the thresholds the agent ships with.
func DefaultParams() Params {
	return Params{
		RerouteDelayMinutes: 60,
		ReplenishTarget:     1.5,
		ImbalanceBand:       0.25,
		RebalanceDamping:    0.15,
	}
}
