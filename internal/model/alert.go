package model

import "time"

type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert flags a warehouse item under its minimum threshold. Alerts are
// ephemeral: derived each cycle from fetched state, never persisted.
type Alert struct {
	WarehouseID  string    `json:"warehouse_id"`
	ItemID       string    `json:"item_id"`
	ItemName     string    `json:"item_name"`
	Quantity     int       `json:"quantity"`
	MinThreshold int       `json:"min_threshold"`
	Severity     Severity  `json:"severity"`
	DetectedAt   time.Time `json:"detected_at"`
}

// Issue flags a shipment running behind its ETA. Like alerts, issues are
// recomputed every cycle.
type Issue struct {
	ShipmentID   string    `json:"shipment_id"`
	DelayMinutes int       `json:"delay_minutes"`
	Priority     int       `json:"priority"`
	Severity     Severity  `json:"severity"`
	DetectedAt   time.Time `json:"detected_at"`
}
