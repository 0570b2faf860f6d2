package connector

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reliefops/logistics-agent/internal/model"
)

func TestWeatherClient_SingleObjectPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("route"); got != "route_7" {
			t.Errorf("route query = %q", got)
		}
		io.WriteString(w, `{
			"weather": {"severe_weather": true, "wind_speed_kmh": 95},
			"road": {"closed": false, "severe_damage": false}
		}`)
	}))
	defer srv.Close()

	client := NewWeatherClient(testConfig(srv.URL), testLogger())
	weather, road, err := client.Conditions(context.Background(), "route_7")
	if err != nil {
		t.Fatalf("Conditions: %v", err)
	}

	if len(weather) != 1 || len(road) != 1 {
		t.Fatalf("segments = %d weather, %d road; want 1 each", len(weather), len(road))
	}
	if !weather[0].Severe {
		t.Error("severe flag lost")
	}
	if weather[0].VisibilityMeters != 10000 {
		t.Errorf("absent visibility should default clear (10000), got %v", weather[0].VisibilityMeters)
	}
	if weather[0].TemperatureC != 20 {
		t.Errorf("absent temperature should default to 20, got %v", weather[0].TemperatureC)
	}
	if road[0].Damage != model.RoadDamageNone {
		t.Errorf("damage = %q, want none", road[0].Damage)
	}
}

func TestWeatherClient_SegmentListPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"weather": [
				{"visibility_meters": 8000, "wind_speed_kmh": 20},
				{"visibility_meters": 150, "wind_speed_kmh": 60}
			],
			"road": [
				{"closed": false, "damage": "moderate"},
				{"closed": false, "severe_damage": true, "flooding": true}
			]
		}`)
	}))
	defer srv.Close()

	client := NewWeatherClient(testConfig(srv.URL), testLogger())
	weather, road, err := client.Conditions(context.Background(), "route_7")
	if err != nil {
		t.Fatalf("Conditions: %v", err)
	}

	if len(weather) != 2 || len(road) != 2 {
		t.Fatalf("segments = %d weather, %d road; want 2 each", len(weather), len(road))
	}
	if weather[1].VisibilityMeters != 150 {
		t.Errorf("second segment visibility = %v", weather[1].VisibilityMeters)
	}
	if road[0].Damage != model.RoadDamageModerate {
		t.Errorf("graded damage string lost: %q", road[0].Damage)
	}
	if road[1].Damage != model.RoadDamageSevere {
		t.Errorf("severe_damage flag should map to severe, got %q", road[1].Damage)
	}
	if !road[1].Flooded {
		t.Error("flooding flag lost")
	}
}

func TestWeatherClient_EmptySectionsYieldNoSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"weather": null, "road": []}`)
	}))
	defer srv.Close()

	client := NewWeatherClient(testConfig(srv.URL), testLogger())
	weather, road, err := client.Conditions(context.Background(), "route_2")
	if err != nil {
		t.Fatalf("Conditions: %v", err)
	}
	if len(weather) != 0 {
		t.Errorf("weather segments = %d, want 0", len(weather))
	}
	if len(road) != 0 {
		t.Errorf("road segments = %d, want 0", len(road))
	}
}
