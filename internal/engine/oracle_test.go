package engine

import (
	"context"

	"github.com/reliefops/logistics-agent/internal/model"
)

// pairDistances builds a symmetric DistanceFunc over explicit pairs,
// answering the unknown-pair sentinel for everything else.
func pairDistances(pairs map[[2]string]float64) DistanceFunc {
	return func(a, b string) float64 {
		if d, ok := pairs[[2]string{a, b}]; ok {
			return d
		}
		if d, ok := pairs[[2]string{b, a}]; ok {
			return d
		}
		return 1000.0
	}
}

// stubRouter is a canned RoutingOracle for tests. It records how it was
// called and returns whatever it was seeded with.
type stubRouter struct {
	alts    []model.AlternativeRoute
	altsErr error
	plan    model.OptimizedPlan
	planErr error

	altCalls    int
	lastExclude string
	planCalls   int
	lastGroup   []model.Shipment
}

func (s *stubRouter) AlternativeRoutes(_ context.Context, origin, destination, excludeRoute string) ([]model.AlternativeRoute, error) {
	s.altCalls++
	s.lastExclude = excludeRoute
	return s.alts, s.altsErr
}

func (s *stubRouter) OptimizedPlan(_ context.Context, shipments []model.Shipment, _ map[string]model.RouteCondition) (model.OptimizedPlan, error) {
	s.planCalls++
	s.lastGroup = shipments
	return s.plan, s.planErr
}
