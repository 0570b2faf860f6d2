package monitor

import (
	"time"

	"github.com/reliefops/logistics-agent/internal/model"
)

// Causes a route can be disrupted for, in the order they are checked.
const (
	ReasonSevereWeather = "severe_weather"
	ReasonLowVisibility = "low_visibility"
	ReasonHighWinds     = "high_winds"
	ReasonRoadClosed    = "road_closed"
	ReasonRoadDamage    = "road_damage"
	ReasonFlooding      = "flooding"
)

// Crude holdup estimates per cause, surfaced in operator notifications.
var disruptionDelays = map[string]int{
	ReasonSevereWeather: 120,
	ReasonLowVisibility: 90,
	ReasonHighWinds:     60,
	ReasonRoadClosed:    240,
	ReasonRoadDamage:    180,
	ReasonFlooding:      210,
}

// AssessRoute combines aggregated weather and road state into the route
// condition the engine consumes. The disruption reason is the first
// rule the snapshots trip, checked in a fixed order so the recorded
// cause is stable for a given set of conditions.
func AssessRoute(routeID string, weather model.WeatherSnapshot, road model.RoadSnapshot, th Thresholds, now time.Time) model.RouteCondition {
	reason := disruptionReason(weather, road, th)
	return model.RouteCondition{
		RouteID:   routeID,
		Weather:   weather,
		Road:      road,
		Disrupted: reason != "",
		Reason:    reason,
		UpdatedAt: now,
	}
}

func disruptionReason(weather model.WeatherSnapshot, road model.RoadSnapshot, th Thresholds) string {
	switch {
	case weather.Severe:
		return ReasonSevereWeather
	case weather.VisibilityMeters < th.MinVisibilityMeters:
		return ReasonLowVisibility
	case weather.WindSpeedKmh > th.MaxWindSpeedKmh:
		return ReasonHighWinds
	case road.Closed:
		return ReasonRoadClosed
	case road.Damage == model.RoadDamageSevere:
		return ReasonRoadDamage
	case road.Flooded:
		return ReasonFlooding
	}
	return ""
}

// DisruptionDelayMinutes estimates how long a disruption will hold
// traffic up. Zero when the route is clear, two hours when the cause
// is not one we have a figure for.
func DisruptionDelayMinutes(cond model.RouteCondition) int {
	if !cond.Disrupted {
		return 0
	}
	if d, ok := disruptionDelays[cond.Reason]; ok {
		return d
	}
	return 120
}

// AggregateWeather folds per-segment weather into a worst-case route
// view: any severe segment marks the whole route severe, visibility is
// the minimum seen, wind the maximum, temperature the average. With no
// segments it returns clear skies.
func AggregateWeather(segments []model.WeatherSnapshot) model.WeatherSnapshot {
	agg := model.WeatherSnapshot{VisibilityMeters: 10000, TemperatureC: 20}
	if len(segments) == 0 {
		return agg
	}
	var tempSum float64
	for _, seg := range segments {
		if seg.Severe {
			agg.Severe = true
		}
		if seg.VisibilityMeters < agg.VisibilityMeters {
			agg.VisibilityMeters = seg.VisibilityMeters
		}
		if seg.WindSpeedKmh > agg.WindSpeedKmh {
			agg.WindSpeedKmh = seg.WindSpeedKmh
		}
		tempSum += seg.TemperatureC
	}
	agg.TemperatureC = tempSum / float64(len(segments))
	return agg
}

var damageRank = map[model.RoadDamage]int{
	model.RoadDamageNone:     0,
	model.RoadDamageMinor:    1,
	model.RoadDamageModerate: 2,
	model.RoadDamageSevere:   3,
}

// AggregateRoad folds per-segment road reports: any closed or flooded
// segment taints the whole route, and damage is kept at its worst level.
func AggregateRoad(segments []model.RoadSnapshot) model.RoadSnapshot {
	agg := model.RoadSnapshot{Damage: model.RoadDamageNone}
	for _, seg := range segments {
		if seg.Closed {
			agg.Closed = true
		}
		if seg.Flooded {
			agg.Flooded = true
		}
		if damageRank[seg.Damage] > damageRank[agg.Damage] {
			agg.Damage = seg.Damage
		}
	}
	return agg
}
