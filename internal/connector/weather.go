package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/reliefops/logistics-agent/internal/config"
	"github.com/reliefops/logistics-agent/internal/model"
)

// WeatherClient reads weather and road reports along routes. Upstream
// providers disagree on shape: some return one report per route, some
// a list of per-segment reports. Both decode to segment slices here.
type WeatherClient struct {
	*Client
}

func NewWeatherClient(cfg *config.Config, logger *logrus.Logger) *WeatherClient {
	return &WeatherClient{Client: NewClient(cfg.Weather, cfg.API, logger)}
}

type conditionsPayload struct {
	Weather json.RawMessage `json:"weather"`
	Road    json.RawMessage `json:"road"`
}

// Conditions returns the weather and road snapshots along a route.
func (c *WeatherClient) Conditions(ctx context.Context, routeID string) ([]model.WeatherSnapshot, []model.RoadSnapshot, error) {
	query := url.Values{}
	query.Set("route", routeID)

	var payload conditionsPayload
	if err := c.getJSON(ctx, "conditions", query, &payload); err != nil {
		return nil, nil, fmt.Errorf("fetch conditions for %s: %w", routeID, err)
	}

	weather, err := decodeWeather(payload.Weather)
	if err != nil {
		return nil, nil, fmt.Errorf("decode weather for %s: %w", routeID, err)
	}
	road, err := decodeRoad(payload.Road)
	if err != nil {
		return nil, nil, fmt.Errorf("decode road for %s: %w", routeID, err)
	}
	c.logger.WithFields(logrus.Fields{
		"route":            routeID,
		"weather_segments": len(weather),
		"road_segments":    len(road),
	}).Debug("route conditions fetched")
	return weather, road, nil
}

// weatherSegment is the wire shape. Absent fields default to clear
// conditions, not zero values, so a sparse report cannot read as a
// visibility emergency.
type weatherSegment struct {
	Severe           bool    `json:"severe_weather"`
	VisibilityMeters float64 `json:"visibility_meters"`
	WindSpeedKmh     float64 `json:"wind_speed_kmh"`
	TemperatureC     float64 `json:"temperature_c"`
}

func clearWeatherSegment() weatherSegment {
	return weatherSegment{VisibilityMeters: 10000, TemperatureC: 20}
}

func decodeWeather(raw json.RawMessage) ([]model.WeatherSnapshot, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	segments, err := rawSegments(raw)
	if err != nil {
		return nil, err
	}
	out := make([]model.WeatherSnapshot, 0, len(segments))
	for _, seg := range segments {
		w := clearWeatherSegment()
		if err := json.Unmarshal(seg, &w); err != nil {
			return nil, err
		}
		out = append(out, model.WeatherSnapshot{
			Severe:           w.Severe,
			VisibilityMeters: w.VisibilityMeters,
			WindSpeedKmh:     w.WindSpeedKmh,
			TemperatureC:     w.TemperatureC,
		})
	}
	return out, nil
}

// roadSegment tolerates both the boolean severe_damage flag and the
// graded damage string.
type roadSegment struct {
	Closed       bool             `json:"closed"`
	SevereDamage bool             `json:"severe_damage"`
	Damage       model.RoadDamage `json:"damage"`
	Flooding     bool             `json:"flooding"`
}

func decodeRoad(raw json.RawMessage) ([]model.RoadSnapshot, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	segments, err := rawSegments(raw)
	if err != nil {
		return nil, err
	}
	out := make([]model.RoadSnapshot, 0, len(segments))
	for _, seg := range segments {
		var r roadSegment
		if err := json.Unmarshal(seg, &r); err != nil {
			return nil, err
		}
		damage := r.Damage
		if damage == "" {
			damage = model.RoadDamageNone
		}
		if r.SevereDamage {
			damage = model.RoadDamageSevere
		}
		out = append(out, model.RoadSnapshot{
			Closed:  r.Closed,
			Damage:  damage,
			Flooded: r.Flooding,
		})
	}
	return out, nil
}

// rawSegments accepts either a JSON array or a single object.
func rawSegments(raw json.RawMessage) ([]json.RawMessage, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	return []json.RawMessage{raw}, nil
}
