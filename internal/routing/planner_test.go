package routing

import (
	"context"
	"testing"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/reliefops/logistics-agent/internal/model"
)

func TestStaticPlanner_AlternativesExcludeCurrentRoute(t *testing.T) {
	planner := NewStaticPlanner().WithClock(clockz.NewFakeClock())

	alts, err := planner.AlternativeRoutes(context.Background(), "wh_east", "wh_north", "route_wh_east_wh_north_alt2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alts) != 2 {
		t.Fatalf("expected 2 alternatives after exclusion, got %d", len(alts))
	}
	for _, alt := range alts {
		if alt.RouteID == "route_wh_east_wh_north_alt2" {
			t.Errorf("excluded route offered back: %s", alt.RouteID)
		}
	}
}

func TestStaticPlanner_AlternativeETAsFollowDuration(t *testing.T) {
	clock := clockz.NewFakeClock()
	planner := NewStaticPlanner().WithClock(clock)

	alts, err := planner.AlternativeRoutes(context.Background(), "wh_east", "wh_north", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alts) != 3 {
		t.Fatalf("expected 3 alternatives, got %d", len(alts))
	}
	now := clock.Now()
	for _, alt := range alts {
		want := now.Add(time.Duration(alt.DurationHours * float64(time.Hour)))
		if !alt.ETA.Equal(want) {
			t.Errorf("%s: expected ETA %v, got %v", alt.RouteID, want, alt.ETA)
		}
	}
	if alts[0].DurationHours != 8.5 || alts[1].DurationHours != 9.2 || alts[2].DurationHours != 10.0 {
		t.Errorf("corridor profiles out of order: %+v", alts)
	}
}

func TestStaticPlanner_OptimizedPlanDiscountsRemainingTime(t *testing.T) {
	clock := clockz.NewFakeClock()
	planner := NewStaticPlanner().WithClock(clock)

	now := clock.Now()
	eta := now.Add(10 * time.Hour)
	shipments := []model.Shipment{
		{ID: "ship_1", Origin: "wh_east", Destination: "north_hub_1", ETA: &eta},
		{ID: "ship_2", Origin: "wh_west", Destination: "north_hub_2"},
	}

	plan, err := planner.OptimizedPlan(context.Background(), shipments, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10h remaining shrinks to 9h; a missing ETA falls back to +8h.
	if want := now.Add(9 * time.Hour); !plan.ETAs["ship_1"].Equal(want) {
		t.Errorf("expected ship_1 ETA %v, got %v", want, plan.ETAs["ship_1"])
	}
	if want := now.Add(8 * time.Hour); !plan.ETAs["ship_2"].Equal(want) {
		t.Errorf("expected ship_2 fallback ETA %v, got %v", want, plan.ETAs["ship_2"])
	}
	if got := plan.RouteIDs["ship_1"]; got != "opt_route_wh_east_north_hub_1" {
		t.Errorf("unexpected consolidated route id %s", got)
	}
}

func TestStaticPlanner_OptimizedPlanFlatSavings(t *testing.T) {
	planner := NewStaticPlanner().WithClock(clockz.NewFakeClock())

	plan, err := planner.OptimizedPlan(context.Background(), []model.Shipment{{ID: "ship_1"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := plan.Savings
	if s.DistanceKm != 120 || s.FuelLiters != 35 || s.TimeHours != 2.5 {
		t.Errorf("unexpected savings estimate: %+v", s)
	}
	if s.CostUSD.IntPart() != 180 {
		t.Errorf("expected 180 USD savings, got %s", s.CostUSD)
	}
}
