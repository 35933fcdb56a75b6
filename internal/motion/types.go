package motion

import (
	"math"
	"time"
)

// MovementType is the coarse movement class published by the engine.
type MovementType string

const (
	// TypeStationary indicates the device is at rest.
	TypeStationary MovementType = "stationary"
	// TypeWalking indicates the device is being carried on foot.
	TypeWalking MovementType = "walking"
	// TypeVehicle indicates the device is travelling in a vehicle.
	TypeVehicle MovementType = "vehicle"
	// TypeUnknown is used when no class can be decided.
	TypeUnknown MovementType = "unknown"
)

// Valid reports whether t is one of the known movement types.
func (t MovementType) Valid() bool {
	switch t {
	case TypeStationary, TypeWalking, TypeVehicle, TypeUnknown:
		return true
	}
	return false
}

// Sample is a single acceleration reading. Values are linear acceleration
// (gravity removed) in m/s².
type Sample struct {
	X, Y, Z   float64
	Magnitude float64
	Timestamp time.Time
}

// NewSample builds a Sample and computes its magnitude.
func NewSample(x, y, z float64, ts time.Time) Sample {
	return Sample{
		X:         x,
		Y:         y,
		Z:         z,
		Magnitude: math.Sqrt(x*x + y*y + z*z),
		Timestamp: ts,
	}
}

func (s Sample) finite() bool {
	return isFinite(s.X) && isFinite(s.Y) && isFinite(s.Z) && isFinite(s.Magnitude)
}

// RawEvent is an acceleration event as delivered by the host sensor
// subsystem. A nil axis marks a malformed event.
type RawEvent struct {
	X, Y, Z         *float64
	TimestampMillis int64
}

// NewRawEvent is a convenience constructor for well-formed events.
func NewRawEvent(x, y, z float64, tsMillis int64) RawEvent {
	return RawEvent{X: &x, Y: &y, Z: &z, TimestampMillis: tsMillis}
}

// Details is the per-class confidence breakdown of a classification.
type Details struct {
	VehicleConfidence    float64   `json:"vehicle_confidence"`
	WalkingConfidence    float64   `json:"walking_confidence"`
	StationaryConfidence float64   `json:"stationary_confidence"`
	DominantFrequencies  []float64 `json:"dominant_frequencies"`
}

func (d Details) clone() Details {
	out := d
	if d.DominantFrequencies != nil {
		out.DominantFrequencies = append([]float64(nil), d.DominantFrequencies...)
	}
	return out
}

// Classification is the result of a single analysis tick.
type Classification struct {
	Type       MovementType `json:"type"`
	Confidence float64      `json:"confidence"`
	Details    Details      `json:"details"`
}

func (c Classification) clone() Classification {
	c.Details = c.Details.clone()
	return c
}

func (c Classification) valid() bool {
	return c.Type.Valid() && isFinite(c.Confidence) && c.Confidence >= 0 && c.Confidence <= 1
}

// unknownClassification is the placeholder used whenever a tier produces
// nothing usable.
func unknownClassification() Classification {
	return Classification{Type: TypeUnknown, Confidence: 0.5}
}

// classificationFor builds a result whose breakdown mirrors the chosen
// class: the winner gets the headline confidence and the others get 0.1.
func classificationFor(t MovementType, confidence float64) Classification {
	d := Details{VehicleConfidence: 0.1, WalkingConfidence: 0.1, StationaryConfidence: 0.1}
	switch t {
	case TypeVehicle:
		d.VehicleConfidence = confidence
	case TypeWalking:
		d.WalkingConfidence = confidence
	case TypeStationary:
		d.StationaryConfidence = confidence
	}
	return Classification{Type: t, Confidence: confidence, Details: d}
}

// MovementState is the externally observed engine output. It is replaced as
// a whole on every publish.
type MovementState struct {
	Type        MovementType `json:"type"`
	Confidence  float64      `json:"confidence"`
	LastUpdated *time.Time   `json:"last_updated"`
	IsSupported *bool        `json:"is_supported"`
	Details     *Details     `json:"details,omitempty"`
}

// Supported reports whether the state marks motion sensing as available.
// A nil IsSupported (not yet determined) counts as supported.
func (s MovementState) Supported() bool {
	return s.IsSupported == nil || *s.IsSupported
}

// CalibrationProfile holds device-specific noise calibration.
type CalibrationProfile struct {
	BaselineNoise            float64 `json:"baseline_noise"`
	AdjustedWalkingThreshold float64 `json:"adjusted_walking_threshold"`
	AdjustedVehicleThreshold float64 `json:"adjusted_vehicle_threshold"`
	Calibrated               bool    `json:"calibrated"`
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolPtr(b bool) *bool { return &b }
