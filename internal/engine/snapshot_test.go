package engine

import (
	"testing"
	"time"

	"github.com/reliefops/logistics-agent/internal/model"
)

func TestSnapshotClone_IsolatedFromOriginal(t *testing.T) {
	eta := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Warehouses: map[string]model.Warehouse{
			"wh_a": stockedWarehouse("wh_a", "water", 150, 100),
		},
		Shipments: map[string]model.Shipment{
			"ship_1": {
				ID: "ship_1", Status: model.ShipmentInTransit,
				Manifest: []model.ManifestLine{{ItemID: "water", Quantity: 40}},
				ETA:      &eta,
			},
		},
		Conditions: map[string]model.RouteCondition{
			"route_1": {RouteID: "route_1", Disrupted: false},
		},
		Alerts:  []model.Alert{{WarehouseID: "wh_a", ItemID: "water"}},
		TakenAt: eta,
	}

	clone := snap.Clone()

	// Mutate every layer of the original. Writing through sp.ETA also
	// rewrites the local eta it points at, so keep the pre-mutation value.
	wantETA := eta
	item := snap.Warehouses["wh_a"].Items["water"]
	item.Quantity = 0
	snap.Warehouses["wh_a"].Items["water"] = item
	sp := snap.Shipments["ship_1"]
	sp.Manifest[0].Quantity = 999
	*sp.ETA = eta.Add(48 * time.Hour)
	snap.Shipments["ship_1"] = sp
	cond := snap.Conditions["route_1"]
	cond.Disrupted = true
	snap.Conditions["route_1"] = cond
	snap.Alerts[0].ItemID = "blankets"

	if got := clone.Warehouses["wh_a"].Items["water"].Quantity; got != 150 {
		t.Errorf("clone warehouse item followed the original: quantity %d", got)
	}
	if got := clone.Shipments["ship_1"].Manifest[0].Quantity; got != 40 {
		t.Errorf("clone manifest followed the original: quantity %d", got)
	}
	if got := *clone.Shipments["ship_1"].ETA; !got.Equal(wantETA) {
		t.Errorf("clone ETA followed the original: %v", got)
	}
	if clone.Conditions["route_1"].Disrupted {
		t.Error("clone condition followed the original")
	}
	if got := clone.Alerts[0].ItemID; got != "water" {
		t.Errorf("clone alert followed the original: %s", got)
	}
}

func TestSnapshotClone_EmptySnapshot(t *testing.T) {
	clone := Snapshot{}.Clone()
	if clone.Warehouses != nil || clone.Shipments != nil || clone.Conditions != nil {
		t.Errorf("expected nil maps preserved, got %+v", clone)
	}
}
