// Package routing provides the agent's built-in distance and planning
// collaborators. Both are deliberately simple stand-ins: the distance
// table answers from a fixed symmetric matrix and the planner fabricates
// alternatives from canned corridor profiles. Deployments with a live
// routing system replace them through the engine's oracle interfaces.
package routing

// UnknownDistanceKm is returned for pairs missing from the table, large
// enough that an unknown-distance candidate never beats a known one.
const UnknownDistanceKm = 1000.0

// DistanceEntry is one leg of the configured distance matrix.
type DistanceEntry struct {
	From string  `json:"from" yaml:"from"`
	To   string  `json:"to" yaml:"to"`
	Km   float64 `json:"km" yaml:"km"`
}

// StaticDistances answers point-to-point distance queries from a fixed
// table. Lookups are symmetric regardless of the direction entries were
// loaded in.
type StaticDistances struct {
	km map[pairKey]float64
}

type pairKey struct {
	a, b string
}

func orderedPair(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// NewStaticDistances builds a distance table from configured entries.
// Later duplicates of a pair overwrite earlier ones.
func NewStaticDistances(entries []DistanceEntry) *StaticDistances {
	km := make(map[pairKey]float64, len(entries))
	for _, e := range entries {
		km[orderedPair(e.From, e.To)] = e.Km
	}
	return &StaticDistances{km: km}
}

// Distance returns the distance between two locations in kilometers, or
// UnknownDistanceKm when the pair is not in the table.
func (s *StaticDistances) Distance(a, b string) float64 {
	if d, ok := s.km[orderedPair(a, b)]; ok {
		return d
	}
	return UnknownDistanceKm
}
