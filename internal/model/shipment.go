package model

import (
	"fmt"
	"time"
)

type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pending"
	ShipmentPreparing ShipmentStatus = "preparing"
	ShipmentInTransit ShipmentStatus = "in_transit"
	ShipmentDelayed   ShipmentStatus = "delayed"
	ShipmentRerouting ShipmentStatus = "rerouting"
	ShipmentOnHold    ShipmentStatus = "on_hold"
	ShipmentDelivered ShipmentStatus = "delivered"
	ShipmentCancelled ShipmentStatus = "cancelled"
)

var terminalShipmentStatuses = map[ShipmentStatus]bool{
	ShipmentDelivered: true,
	ShipmentCancelled: true,
}

// Shipment status transitions: pending → preparing → in_transit, with the
// in-flight statuses (in_transit/delayed/rerouting/on_hold) moving freely
// between each other until a terminal status is reached.
var validShipmentTransitions = map[ShipmentStatus]map[ShipmentStatus]bool{
	ShipmentPending: {
		ShipmentPreparing: true,
		ShipmentCancelled: true,
	},
	ShipmentPreparing: {
		ShipmentInTransit: true,
		ShipmentOnHold:    true,
		ShipmentCancelled: true,
	},
	ShipmentInTransit: {
		ShipmentDelayed:   true,
		ShipmentRerouting: true,
		ShipmentOnHold:    true,
		ShipmentDelivered: true,
		ShipmentCancelled: true,
	},
	ShipmentDelayed: {
		ShipmentInTransit: true,
		ShipmentRerouting: true,
		ShipmentOnHold:    true,
		ShipmentDelivered: true,
		ShipmentCancelled: true,
	},
	ShipmentRerouting: {
		ShipmentInTransit: true,
		ShipmentDelayed:   true,
		ShipmentOnHold:    true,
		ShipmentCancelled: true,
	},
	ShipmentOnHold: {
		ShipmentInTransit: true,
		ShipmentRerouting: true,
		ShipmentCancelled: true,
	},
}

func IsTerminalShipmentStatus(s ShipmentStatus) bool {
	return terminalShipmentStatuses[s]
}

func ValidateShipmentTransition(from, to ShipmentStatus) error {
	if IsTerminalShipmentStatus(from) {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validShipmentTransitions[from]
	if !ok {
		return fmt.Errorf("unknown shipment status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid shipment transition: %q → %q", from, to)
	}
	return nil
}

// ManifestLine is one (item, quantity) entry of a shipment's cargo.
type ManifestLine struct {
	ItemID   string `json:"item_id" yaml:"item_id"`
	Quantity int    `json:"quantity" yaml:"quantity"`
}

type Shipment struct {
	ID          string         `json:"id" yaml:"id"`
	Origin      string         `json:"origin" yaml:"origin"`
	Destination string         `json:"destination" yaml:"destination"`
	Manifest    []ManifestLine `json:"manifest" yaml:"manifest"`
	Status      ShipmentStatus `json:"status" yaml:"status"`
	Priority    int            `json:"priority" yaml:"priority"`
	RouteID     string         `json:"route_id" yaml:"route_id"`
	ETA         *time.Time     `json:"eta,omitempty" yaml:"eta,omitempty"`
	ArrivedAt   *time.Time     `json:"arrived_at,omitempty" yaml:"arrived_at,omitempty"`
}

// Active reports whether the shipment is still in flight (non-terminal).
func (s Shipment) Active() bool {
	return !IsTerminalShipmentStatus(s.Status)
}

// Overdue reports whether an active shipment's ETA has passed at ref.
func (s Shipment) Overdue(ref time.Time) bool {
	return s.Active() && s.ETA != nil && s.ETA.Before(ref)
}

// DelayMinutes is the whole minutes elapsed past the ETA at ref, zero when
// the shipment is not overdue.
func (s Shipment) DelayMinutes(ref time.Time) int {
	if !s.Overdue(ref) {
		return 0
	}
	return int(ref.Sub(*s.ETA).Minutes())
}
