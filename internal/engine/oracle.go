package engine

import (
	"context"

	"github.com/reliefops/logistics-agent/internal/model"
)

// DistanceOracle estimates the distance between two warehouse locations.
// Implementations must be symmetric and return a large sentinel for
// unknown pairs, so an unknown-distance candidate never beats a known one.
type DistanceOracle interface {
	Distance(a, b string) float64
}

// DistanceFunc adapts a plain function to the DistanceOracle interface.
type DistanceFunc func(a, b string) float64

func (f DistanceFunc) Distance(a, b string) float64 { return f(a, b) }

// RoutingOracle supplies route alternatives and consolidated plans. The
// engine only filters and ranks what the oracle returns; it never
// computes routes itself.
type RoutingOracle interface {
	// AlternativeRoutes lists candidate routes between two warehouses,
	// excluding the route a shipment is currently on.
	AlternativeRoutes(ctx context.Context, origin, destination, excludeRoute string) ([]model.AlternativeRoute, error)

	// OptimizedPlan proposes consolidated routing for shipments bound
	// for the same region. Current route conditions ride along so
	// implementations can steer around disruptions.
	OptimizedPlan(ctx context.Context, shipments []model.Shipment, conds map[string]model.RouteCondition) (model.OptimizedPlan, error)
}
