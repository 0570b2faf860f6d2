package engine

import (
	"time"

	"github.com/reliefops/logistics-agent/internal/model"
)

// Snapshot is a point-in-time view of the state the decision functions
// read. The driver assembles one per cycle and must not mutate it while
// engine calls are in flight; Clone exists for drivers that keep the
// live maps hot.
type Snapshot struct {
	Warehouses map[string]model.Warehouse
	Shipments  map[string]model.Shipment
	Conditions map[string]model.RouteCondition
	Alerts     []model.Alert
	Issues     []model.Issue
	TakenAt    time.Time
}

// Clone returns a deep copy of the snapshot. Warehouse item maps,
// shipment manifests, and timestamp pointers are all duplicated, so the
// copy stays stable however the originals change afterwards.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{TakenAt: s.TakenAt}

	if s.Warehouses != nil {
		out.Warehouses = make(map[string]model.Warehouse, len(s.Warehouses))
		for id, wh := range s.Warehouses {
			wh.Items = wh.CloneItems()
			out.Warehouses[id] = wh
		}
	}

	if s.Shipments != nil {
		out.Shipments = make(map[string]model.Shipment, len(s.Shipments))
		for id, sp := range s.Shipments {
			sp.Manifest = append([]model.ManifestLine(nil), sp.Manifest...)
			if sp.ETA != nil {
				eta := *sp.ETA
				sp.ETA = &eta
			}
			if sp.ArrivedAt != nil {
				arrived := *sp.ArrivedAt
				sp.ArrivedAt = &arrived
			}
			out.Shipments[id] = sp
		}
	}

	if s.Conditions != nil {
		out.Conditions = make(map[string]model.RouteCondition, len(s.Conditions))
		for id, cond := range s.Conditions {
			out.Conditions[id] = cond
		}
	}

	out.Alerts = append([]model.Alert(nil), s.Alerts...)
	out.Issues = append([]model.Issue(nil), s.Issues...)
	return out
}
