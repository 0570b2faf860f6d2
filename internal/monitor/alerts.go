package monitor

import (
	"sort"
	"time"

	"github.com/reliefops/logistics-agent/internal/model"
)

// DetectShortages scans every warehouse for items under their minimum
// threshold. A complete stockout is high severity, anything else
// medium. Alerts come back in warehouse, then item order.
func DetectShortages(warehouses map[string]model.Warehouse, now time.Time) []model.Alert {
	warehouseIDs := make([]string, 0, len(warehouses))
	for id := range warehouses {
		warehouseIDs = append(warehouseIDs, id)
	}
	sort.Strings(warehouseIDs)

	var alerts []model.Alert
	for _, whID := range warehouseIDs {
		wh := warehouses[whID]
		itemIDs := make([]string, 0, len(wh.Items))
		for id := range wh.Items {
			itemIDs = append(itemIDs, id)
		}
		sort.Strings(itemIDs)

		for _, itemID := range itemIDs {
			item := wh.Items[itemID]
			if !item.BelowMinimum() {
				continue
			}
			severity := model.SeverityMedium
			if item.Quantity == 0 {
				severity = model.SeverityHigh
			}
			alerts = append(alerts, model.Alert{
				WarehouseID:  whID,
				ItemID:       itemID,
				ItemName:     item.Name,
				Quantity:     item.Quantity,
				MinThreshold: item.MinThreshold,
				Severity:     severity,
				DetectedAt:   now,
			})
		}
	}
	return alerts
}
