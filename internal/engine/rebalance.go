package engine

import (
	"math"
	"sort"

	"github.com/reliefops/logistics-agent/internal/model"
)

// RebalanceInventory finds items whose stock is spread unevenly across
// the network and proposes preventive transfers pulling each warehouse's
// fill ratio back toward the cross-warehouse mean. Damping keeps a
// transfer from simply swapping which side of the mean a warehouse sits
// on. All remaining-excess bookkeeping is local; the warehouse map is
// never touched.
func RebalanceInventory(warehouses map[string]model.Warehouse, distances DistanceOracle, p Params) []model.Decision {
	type holding struct {
		warehouseID string
		item        model.InventoryItem
	}

	warehouseIDs := make([]string, 0, len(warehouses))
	for id := range warehouses {
		warehouseIDs = append(warehouseIDs, id)
	}
	sort.Strings(warehouseIDs)

	holdings := make(map[string][]holding)
	for _, whID := range warehouseIDs {
		for itemID, item := range warehouses[whID].Items {
			holdings[itemID] = append(holdings[itemID], holding{warehouseID: whID, item: item})
		}
	}

	itemIDs := make([]string, 0, len(holdings))
	for id := range holdings {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	var decisions []model.Decision
	for _, itemID := range itemIDs {
		held := holdings[itemID]
		if len(held) < 2 {
			continue
		}

		// Fill ratios, skipping degenerate threshold ranges.
		ratios := make(map[string]float64, len(held))
		for _, h := range held {
			if rng := h.item.ThresholdRange(); rng > 0 {
				ratios[h.warehouseID] = float64(h.item.Surplus()) / float64(rng)
			}
		}
		if len(ratios) == 0 {
			continue
		}
		var sum float64
		for _, r := range ratios {
			sum += r
		}
		avg := sum / float64(len(ratios))

		excess := make(map[string]int)
		deficit := make(map[string]int)
		for _, h := range held {
			r, ok := ratios[h.warehouseID]
			if !ok {
				continue
			}
			rng := float64(h.item.ThresholdRange())
			switch {
			case r > avg+p.ImbalanceBand:
				if amount := int((r - avg - p.RebalanceDamping) * rng); amount > 0 {
					excess[h.warehouseID] = amount
				}
			case r < avg-p.ImbalanceBand:
				if amount := int((avg - p.RebalanceDamping - r) * rng); amount > 0 {
					deficit[h.warehouseID] = amount
				}
			}
		}
		if len(excess) == 0 || len(deficit) == 0 {
			continue
		}

		deficitIDs := make([]string, 0, len(deficit))
		for id := range deficit {
			deficitIDs = append(deficitIDs, id)
		}
		sort.Strings(deficitIDs)
		excessIDs := make([]string, 0, len(excess))
		for id := range excess {
			excessIDs = append(excessIDs, id)
		}
		sort.Strings(excessIDs)

		for _, needID := range deficitIDs {
			bestID := ""
			bestDistance := math.Inf(1)
			for _, haveID := range excessIDs {
				if excess[haveID] <= 0 {
					continue
				}
				if d := distances.Distance(haveID, needID); d < bestDistance {
					bestID, bestDistance = haveID, d
				}
			}
			if bestID == "" {
				continue
			}

			quantity := excess[bestID]
			if quantity > deficit[needID] {
				quantity = deficit[needID]
			}
			// Spend the source's excess so later deficits cannot
			// draw on it twice.
			excess[bestID] -= quantity

			decisions = append(decisions, model.Decision{
				Type: model.DecisionInventoryTransfer,
				Transfer: &model.TransferPlan{
					Source:      bestID,
					Destination: needID,
					Items:       []model.ManifestLine{{ItemID: itemID, Quantity: quantity}},
					Reason:      ReasonBalancing,
					Priority:    priorityRebalance,
				},
			})
		}
	}
	return decisions
}
