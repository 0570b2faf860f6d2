package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/reliefops/logistics-agent/internal/model"
)

// OptimizeConsolidation groups active shipments by destination region
// and asks the routing collaborator for a consolidated plan wherever at
// least two shipments are headed the same way. Only shipments already
// in transit with a known ETA take part; the rest of a region's traffic
// keeps its current routing. One decision is emitted per region that
// yields a plan.
func OptimizeConsolidation(ctx context.Context, shipments map[string]model.Shipment, conds map[string]model.RouteCondition, routes RoutingOracle) []model.Decision {
	ids := make([]string, 0, len(shipments))
	for id := range shipments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	byRegion := make(map[string][]model.Shipment)
	for _, id := range ids {
		sp := shipments[id]
		if !sp.Active() {
			continue
		}
		region := destinationRegion(sp.Destination)
		byRegion[region] = append(byRegion[region], sp)
	}

	regions := make([]string, 0, len(byRegion))
	for region := range byRegion {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	var decisions []model.Decision
	for _, region := range regions {
		group := byRegion[region]
		if len(group) < 2 {
			continue
		}

		var candidates []model.Shipment
		for _, sp := range group {
			if sp.Status == model.ShipmentInTransit && sp.ETA != nil {
				candidates = append(candidates, sp)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		plan, err := routes.OptimizedPlan(ctx, candidates, conds)
		if err != nil {
			continue
		}

		shipmentIDs := make([]string, len(candidates))
		for i, sp := range candidates {
			shipmentIDs[i] = sp.ID
		}
		decisions = append(decisions, model.Decision{
			Type: model.DecisionRouteOptimization,
			Optimization: &model.OptimizationPlan{
				Region:      region,
				ShipmentIDs: shipmentIDs,
				Routes:      plan.RouteIDs,
				NewETAs:     plan.ETAs,
				Savings:     plan.Savings,
			},
		})
	}
	return decisions
}

// destinationRegion derives the grouping key from a destination
// identity. Warehouse identities carry a region prefix, so
// "north_hub_2" groups under "north"; identities without a prefix
// group under themselves.
func destinationRegion(destination string) string {
	if i := strings.Index(destination, "_"); i >= 0 {
		return destination[:i]
	}
	return destination
}
