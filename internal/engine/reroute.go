package engine

import (
	"context"

	"github.com/reliefops/logistics-agent/internal/model"
)

// Priority tiers for alternative-route ranking.
const (
	expressPriority  = 8
	standardPriority = 5
)

// SelectReroutes walks the cycle's delay issues and decides which
// shipments should change routes. A shipment is rerouted when its
// current route is disrupted or its delay exceeds the configured
// threshold; shipments already rerouting or on hold are left alone.
// Disrupted alternatives are avoided unless that would leave nothing,
// since a risky route still beats no route. Oracle failures and empty
// alternative sets skip the shipment without a decision.
func SelectReroutes(ctx context.Context, shipments map[string]model.Shipment, issues []model.Issue, conds map[string]model.RouteCondition, routes RoutingOracle, p Params) []model.Decision {
	var decisions []model.Decision
	for _, issue := range issues {
		sp, ok := shipments[issue.ShipmentID]
		if !ok {
			continue
		}
		if sp.Status == model.ShipmentRerouting || sp.Status == model.ShipmentOnHold {
			continue
		}

		var reason string
		if cond, ok := conds[sp.RouteID]; ok && cond.Disrupted {
			reason = ReasonRouteDisruption
		} else if issue.DelayMinutes > p.RerouteDelayMinutes {
			reason = ReasonSignificantDelay
		}
		if reason == "" {
			continue
		}

		alts, err := routes.AlternativeRoutes(ctx, sp.Origin, sp.Destination, sp.RouteID)
		if err != nil || len(alts) == 0 {
			continue
		}

		var usable []model.AlternativeRoute
		for _, alt := range alts {
			if cond, ok := conds[alt.RouteID]; ok && cond.Disrupted {
				continue
			}
			usable = append(usable, alt)
		}
		if len(usable) == 0 {
			usable = alts
		}

		best := pickByPriority(usable, sp.Priority)
		decisions = append(decisions, model.Decision{
			Type: model.DecisionReroute,
			Reroute: &model.ReroutePlan{
				ShipmentID: sp.ID,
				OldRoute:   sp.RouteID,
				NewRoute:   best.RouteID,
				Reason:     reason,
				NewETA:     best.ETA,
			},
		})
	}
	return decisions
}

// pickByPriority selects the alternative a shipment of the given
// priority should take: express shipments minimize duration, standard
// ones minimize duration then fuel, the rest minimize fuel alone.
func pickByPriority(alts []model.AlternativeRoute, priority int) model.AlternativeRoute {
	best := alts[0]
	for _, alt := range alts[1:] {
		switch {
		case priority >= expressPriority:
			if alt.DurationHours < best.DurationHours {
				best = alt
			}
		case priority >= standardPriority:
			if alt.DurationHours < best.DurationHours ||
				(alt.DurationHours == best.DurationHours && alt.FuelLiters < best.FuelLiters) {
				best = alt
			}
		default:
			if alt.FuelLiters < best.FuelLiters {
				best = alt
			}
		}
	}
	return best
}
