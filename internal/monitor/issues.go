package monitor

import (
	"sort"
	"time"

	"github.com/reliefops/logistics-agent/internal/model"
)

// Delay severity flips to high at this shipment priority.
const urgentPriority = 8

// DetectDelays flags active shipments that are past their ETA.
// Shipments already rerouting or on hold are being handled and are
// skipped here so they are not flagged twice.
func DetectDelays(shipments map[string]model.Shipment, now time.Time) []model.Issue {
	ids := make([]string, 0, len(shipments))
	for id := range shipments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var issues []model.Issue
	for _, id := range ids {
		sp := shipments[id]
		if sp.Status == model.ShipmentRerouting || sp.Status == model.ShipmentOnHold {
			continue
		}
		if !sp.Overdue(now) {
			continue
		}
		severity := model.SeverityMedium
		if sp.Priority >= urgentPriority {
			severity = model.SeverityHigh
		}
		issues = append(issues, model.Issue{
			ShipmentID:   id,
			DelayMinutes: sp.DelayMinutes(now),
			Priority:     sp.Priority,
			Severity:     severity,
			DetectedAt:   now,
		})
	}
	return issues
}
