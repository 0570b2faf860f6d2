// Package model defines the data structures for warehouses, shipments,
// routes, and the decisions the engine emits about them.
package model

import "time"

type InventoryItem struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Category     string    `json:"category" yaml:"category"`
	Unit         string    `json:"unit" yaml:"unit"`
	Quantity     int       `json:"quantity" yaml:"quantity"`
	MinThreshold int       `json:"min_threshold" yaml:"min_threshold"`
	MaxThreshold int       `json:"max_threshold" yaml:"max_threshold"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// BelowMinimum reports whether the item has fallen under its minimum threshold.
func (i InventoryItem) BelowMinimum() bool {
	return i.Quantity < i.MinThreshold
}

// Surplus is the quantity above the minimum threshold available for transfer.
// Negative when the item is short.
func (i InventoryItem) Surplus() int {
	return i.Quantity - i.MinThreshold
}

// ThresholdRange is the span between minimum and maximum thresholds.
// Ratio computations skip items where this is not positive.
func (i InventoryItem) ThresholdRange() int {
	return i.MaxThreshold - i.MinThreshold
}

type Warehouse struct {
	ID       string                   `json:"id" yaml:"id"`
	Name     string                   `json:"name" yaml:"name"`
	Location string                   `json:"location" yaml:"location"`
	Capacity int                      `json:"capacity" yaml:"capacity"`
	Items    map[string]InventoryItem `json:"items" yaml:"items"`
}

// ItemsBelowMinimum returns the warehouse's items currently under their
// minimum threshold.
func (w Warehouse) ItemsBelowMinimum() []InventoryItem {
	var low []InventoryItem
	for _, item := range w.Items {
		if item.BelowMinimum() {
			low = append(low, item)
		}
	}
	return low
}

// CloneItems returns an independent copy of the warehouse's item map.
func (w Warehouse) CloneItems() map[string]InventoryItem {
	items := make(map[string]InventoryItem, len(w.Items))
	for id, item := range w.Items {
		items[id] = item
	}
	return items
}
