package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type DecisionType string

const (
	DecisionInventoryTransfer  DecisionType = "inventory_transfer"
	DecisionReroute            DecisionType = "reroute"
	DecisionRouteOptimization  DecisionType = "route_optimization"
	DecisionScheduleAdjustment DecisionType = "schedule_adjustment"
)

// Decision is the engine's sole output: one proposed corrective action,
// not yet executed. Exactly one plan field is populated, matching Type.
// Decisions are immutable values; the caller owns execution and the state
// mutations that follow.
type Decision struct {
	ID        string       `json:"id"`
	Type      DecisionType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`

	Transfer     *TransferPlan     `json:"transfer,omitempty"`
	Reroute      *ReroutePlan      `json:"reroute,omitempty"`
	Optimization *OptimizationPlan `json:"optimization,omitempty"`
	Adjustment   *SchedulePlan     `json:"adjustment,omitempty"`
}

// TransferPlan moves items from one warehouse to another. Priority 8 and 5
// are shortage responses (high/medium severity); priority 3 transfers are
// preventive rebalancing.
type TransferPlan struct {
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Items       []ManifestLine `json:"items"`
	Reason      string         `json:"reason"`
	Priority    int            `json:"priority"`
}

// ReroutePlan switches a shipment off its current route.
type ReroutePlan struct {
	ShipmentID string    `json:"shipment_id"`
	OldRoute   string    `json:"old_route"`
	NewRoute   string    `json:"new_route"`
	Reason     string    `json:"reason"`
	NewETA     time.Time `json:"new_eta"`
}

// OptimizationPlan consolidates a group of shipments bound for one region
// onto revised routes.
type OptimizationPlan struct {
	Region      string               `json:"region"`
	ShipmentIDs []string             `json:"shipment_ids"`
	Routes      map[string]string    `json:"routes"`
	NewETAs     map[string]time.Time `json:"new_etas"`
	Savings     SavingsEstimate      `json:"savings"`
}

// SchedulePlan staggers the arrivals of shipments that would otherwise
// land at the same destination at the same time.
type SchedulePlan struct {
	ShipmentIDs []string       `json:"shipment_ids"`
	Slots       []ScheduleSlot `json:"slots"`
	Reason      string         `json:"reason"`
}

// ScheduleSlot is one shipment's assigned arrival and delivery window.
type ScheduleSlot struct {
	ShipmentID  string    `json:"shipment_id"`
	ETA         time.Time `json:"eta"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// SavingsEstimate aggregates what a consolidation is expected to save.
type SavingsEstimate struct {
	DistanceKm float64         `json:"distance_km"`
	FuelLiters float64         `json:"fuel_liters"`
	TimeHours  float64         `json:"time_hours"`
	CostUSD    decimal.Decimal `json:"cost_usd"`
}
