package routing

import (
	"context"

	"github.com/reliefops/logistics-agent/internal/model"
)

// AlternativesSource yields candidate routes around a disruption.
type AlternativesSource interface {
	AlternativeRoutes(ctx context.Context, origin, destination, excludeRoute string) ([]model.AlternativeRoute, error)
}

// PlanSource produces consolidation plans for shipment groups.
type PlanSource interface {
	OptimizedPlan(ctx context.Context, shipments []model.Shipment, conds map[string]model.RouteCondition) (model.OptimizedPlan, error)
}

// Oracle pairs an alternatives source with a plan source behind the
// single collaborator the decision engine expects. The live setup
// serves alternatives from the transport system and plans from the
// local planner; both fields may also point at the same value.
type Oracle struct {
	Alternatives AlternativesSource
	Plans        PlanSource
}

func (o Oracle) AlternativeRoutes(ctx context.Context, origin, destination, excludeRoute string) ([]model.AlternativeRoute, error) {
	return o.Alternatives.AlternativeRoutes(ctx, origin, destination, excludeRoute)
}

func (o Oracle) OptimizedPlan(ctx context.Context, shipments []model.Shipment, conds map[string]model.RouteCondition) (model.OptimizedPlan, error) {
	return o.Plans.OptimizedPlan(ctx, shipments, conds)
}
