package motion

import "math"

// StationaryOverride is the confidence at which a stationary result is
// published regardless of its per-class threshold.
const StationaryOverride = 0.7

// Gate decides whether a smoothed classification replaces the published
// state. Per-class minimums derived from a global minimum give hysteresis
// near the decision boundaries.
type Gate struct {
	MinConfidence float64
	Adaptive      bool
}

// EffectiveMin returns the minimum confidence required to publish t.
func (g Gate) EffectiveMin(t MovementType) float64 {
	if !g.Adaptive {
		return g.MinConfidence
	}
	switch t {
	case TypeWalking:
		return math.Max(0.45, g.MinConfidence-0.05)
	case TypeVehicle:
		return math.Min(0.55, g.MinConfidence+0.05)
	case TypeStationary:
		return math.Max(0.4, g.MinConfidence-0.1)
	default:
		return g.MinConfidence
	}
}

// Admit reports whether c may be published.
func (g Gate) Admit(c Classification) bool {
	if c.Confidence >= g.EffectiveMin(c.Type) {
		return true
	}
	return c.Type == TypeStationary && c.Confidence >= StationaryOverride
}
