package engine

import (
	"sort"

	"github.com/reliefops/logistics-agent/internal/model"
)

// PlanReplenishment turns one shortage alert into a transfer from the
// closest warehouse holding surplus stock of the alerted item. The
// transfer restores the shortage toward ReplenishTarget times the
// minimum threshold, capped by what the source can actually spare.
// Returns nil when no warehouse has surplus: sourcing from outside the
// network is not the engine's call to make.
func PlanReplenishment(alert model.Alert, warehouses map[string]model.Warehouse, distances DistanceOracle, p Params) *model.Decision {
	type candidate struct {
		warehouseID string
		surplus     int
		distance    float64
	}

	var candidates []candidate
	for id, wh := range warehouses {
		if id == alert.WarehouseID {
			continue
		}
		item, ok := wh.Items[alert.ItemID]
		if !ok {
			continue
		}
		if surplus := item.Surplus(); surplus > 0 {
			candidates = append(candidates, candidate{
				warehouseID: id,
				surplus:     surplus,
				distance:    distances.Distance(id, alert.WarehouseID),
			})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Closest source wins; larger surplus breaks distance ties.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		if candidates[i].surplus != candidates[j].surplus {
			return candidates[i].surplus > candidates[j].surplus
		}
		return candidates[i].warehouseID < candidates[j].warehouseID
	})
	source := candidates[0]

	quantity := int(p.ReplenishTarget*float64(alert.MinThreshold) - float64(alert.Quantity))
	if quantity > source.surplus {
		quantity = source.surplus
	}
	if quantity <= 0 {
		return nil
	}

	priority := priorityShortageMedium
	if alert.Severity == model.SeverityHigh {
		priority = priorityShortageHigh
	}

	return &model.Decision{
		Type: model.DecisionInventoryTransfer,
		Transfer: &model.TransferPlan{
			Source:      source.warehouseID,
			Destination: alert.WarehouseID,
			Items:       []model.ManifestLine{{ItemID: alert.ItemID, Quantity: quantity}},
			Reason:      ReasonBelowThreshold,
			Priority:    priority,
		},
	}
}
