package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zoobzio/clockz"

	"github.com/reliefops/logistics-agent/internal/model"
)

// Canned corridor profiles the planner offers between any two points.
var alternativeProfiles = []struct {
	suffix        string
	durationHours float64
	distanceKm    float64
	fuelLiters    float64
}{
	{"alt1", 8.5, 320, 95},
	{"alt2", 9.2, 350, 105},
	{"alt3", 10.0, 380, 115},
}

// StaticPlanner is the built-in routing collaborator. Alternatives come
// from the fixed corridor profiles above and consolidation plans apply
// the flat policies at the bottom of this file.
type StaticPlanner struct {
	clock clockz.Clock
}

func NewStaticPlanner() *StaticPlanner {
	return &StaticPlanner{}
}

// WithClock replaces the planner's clock. Mainly for tests.
func (p *StaticPlanner) WithClock(clock clockz.Clock) *StaticPlanner {
	p.clock = clock
	return p
}

func (p *StaticPlanner) getClock() clockz.Clock {
	if p.clock == nil {
		return clockz.RealClock
	}
	return p.clock
}

// AlternativeRoutes offers the corridor profiles between origin and
// destination, minus the route being escaped.
func (p *StaticPlanner) AlternativeRoutes(_ context.Context, origin, destination, excludeRoute string) ([]model.AlternativeRoute, error) {
	now := p.getClock().Now()
	alts := make([]model.AlternativeRoute, 0, len(alternativeProfiles))
	for _, prof := range alternativeProfiles {
		id := fmt.Sprintf("route_%s_%s_%s", origin, destination, prof.suffix)
		if id == excludeRoute {
			continue
		}
		alts = append(alts, model.AlternativeRoute{
			RouteID:       id,
			DurationHours: prof.durationHours,
			DistanceKm:    prof.distanceKm,
			FuelLiters:    prof.fuelLiters,
			ETA:           now.Add(time.Duration(prof.durationHours * float64(time.Hour))),
		})
	}
	return alts, nil
}

// OptimizedPlan assigns each shipment a consolidated route for its
// corridor and an ETA per the discount policy. Route conditions are
// ignored here; a live planner would steer around them.
func (p *StaticPlanner) OptimizedPlan(_ context.Context, shipments []model.Shipment, _ map[string]model.RouteCondition) (model.OptimizedPlan, error) {
	now := p.getClock().Now()
	plan := model.OptimizedPlan{
		RouteIDs: make(map[string]string, len(shipments)),
		ETAs:     make(map[string]time.Time, len(shipments)),
		Savings:  consolidationSavings(shipments),
	}
	for _, sp := range shipments {
		plan.RouteIDs[sp.ID] = fmt.Sprintf("opt_route_%s_%s", sp.Origin, sp.Destination)
		plan.ETAs[sp.ID] = consolidationETA(now, sp.ETA)
	}
	return plan, nil
}

// consolidationETA is the planner's discount policy: a consolidated leg
// is assumed to run 10% faster than the time remaining on the current
// ETA. Shipments with no ETA get a flat 8 hours.
func consolidationETA(now time.Time, eta *time.Time) time.Time {
	if eta == nil {
		return now.Add(8 * time.Hour)
	}
	remaining := eta.Sub(now)
	return now.Add(time.Duration(float64(remaining) * 0.9))
}

// consolidationSavings is the planner's flat savings policy. The figures
// are corridor averages, not derived from live route data.
func consolidationSavings(_ []model.Shipment) model.SavingsEstimate {
	return model.SavingsEstimate{
		DistanceKm: 120,
		FuelLiters: 35,
		TimeHours:  2.5,
		CostUSD:    decimal.NewFromInt(180),
	}
}
