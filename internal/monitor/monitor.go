// Package monitor derives the engine's inputs from fetched state:
// shortage alerts from warehouse inventory, delay issues from active
// shipments, and route conditions from weather and road reports.
// Detection is stateless and threshold-based; the agent driver decides
// what to do with the findings.
package monitor

// Thresholds configure condition-based disruption detection.
type Thresholds struct {
	// MinVisibilityMeters is the visibility below which a route is
	// unsafe to drive.
	MinVisibilityMeters float64

	// MaxWindSpeedKmh is the wind speed above which high-sided
	// vehicles are held.
	MaxWindSpeedKmh float64
}

// DefaultThresholds returns the detection limits the agent ships with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinVisibilityMeters: 200,
		MaxWindSpeedKmh:     80,
	}
}
