package model

import "time"

type Route struct {
	ID            string   `json:"id" yaml:"id"`
	Origin        string   `json:"origin" yaml:"origin"`
	Destination   string   `json:"destination" yaml:"destination"`
	DistanceKm    float64  `json:"distance_km" yaml:"distance_km"`
	DurationHours float64  `json:"duration_hours" yaml:"duration_hours"`
	FuelLiters    float64  `json:"fuel_liters" yaml:"fuel_liters"`
	Waypoints     []string `json:"waypoints,omitempty" yaml:"waypoints,omitempty"`
}

// AdjustedDuration applies a delay factor to the route's base duration.
// A factor of 1.0 leaves the duration unchanged.
func (r Route) AdjustedDuration(delayFactor float64) float64 {
	if delayFactor < 1.0 {
		delayFactor = 1.0
	}
	return r.DurationHours * delayFactor
}

// WeatherSnapshot is the weather portion of a route condition report.
type WeatherSnapshot struct {
	Severe           bool    `json:"severe" yaml:"severe"`
	VisibilityMeters float64 `json:"visibility_meters" yaml:"visibility_meters"`
	WindSpeedKmh     float64 `json:"wind_speed_kmh" yaml:"wind_speed_kmh"`
	TemperatureC     float64 `json:"temperature_c" yaml:"temperature_c"`
}

type RoadDamage string

const (
	RoadDamageNone     RoadDamage = "none"
	RoadDamageMinor    RoadDamage = "minor"
	RoadDamageModerate RoadDamage = "moderate"
	RoadDamageSevere   RoadDamage = "severe"
)

// RoadSnapshot is the road portion of a route condition report.
type RoadSnapshot struct {
	Closed  bool       `json:"closed" yaml:"closed"`
	Damage  RoadDamage `json:"damage" yaml:"damage"`
	Flooded bool       `json:"flooded" yaml:"flooded"`
}

// RouteCondition is a point-in-time assessment of a route, produced by the
// weather aggregator and consumed read-only by the engine.
type RouteCondition struct {
	RouteID   string          `json:"route_id" yaml:"route_id"`
	Weather   WeatherSnapshot `json:"weather" yaml:"weather"`
	Road      RoadSnapshot    `json:"road" yaml:"road"`
	Disrupted bool            `json:"disrupted" yaml:"disrupted"`
	Reason    string          `json:"reason,omitempty" yaml:"reason,omitempty"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
}

// AlternativeRoute is one candidate returned by the routing collaborator
// when a shipment needs a new route.
type AlternativeRoute struct {
	RouteID       string    `json:"route_id"`
	DurationHours float64   `json:"duration_hours"`
	DistanceKm    float64   `json:"distance_km"`
	FuelLiters    float64   `json:"fuel_liters"`
	ETA           time.Time `json:"eta"`
}

// OptimizedPlan is the routing collaborator's answer for a consolidated
// shipment group: one route and revised ETA per shipment, plus the
// aggregate savings the consolidation is expected to yield.
type OptimizedPlan struct {
	RouteIDs map[string]string    `json:"route_ids"`
	ETAs     map[string]time.Time `json:"etas"`
	Savings  SavingsEstimate      `json:"savings"`
}
