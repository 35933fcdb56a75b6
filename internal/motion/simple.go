package motion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Simple classifier thresholds.
const (
	minSimpleSamples = 5

	SimpleStationaryMagnitude = 0.3
	SimpleMovingMagnitude     = 0.5
	SimpleAxisRatio           = 0.4
	SimpleWalkingVariation    = 0.7

	walkingFreqMin = 1.0
	walkingFreqMax = 3.0
	vehicleFreqMin = 0.1
	vehicleFreqMax = 1.0
)

// Axis convention: Z is vertical, X is horizontal (direction of travel) and
// Y is lateral.

// SimpleFeatures are the heuristic features computed over a sample window.
type SimpleFeatures struct {
	MeanMagnitude   float64
	StdDevMagnitude float64
	VerticalRatio   float64
	HorizontalRatio float64
	LateralRatio    float64
	ZeroCrossings   int
	DurationSecs    float64
	StepFrequency   float64
}

// SimpleClassifier is the magnitude / axis-ratio / zero-crossing heuristic.
// It is cheap, always available and uses fixed cut-offs; calibration only
// feeds the enhanced tier.
type SimpleClassifier struct{}

// NewSimpleClassifier creates a SimpleClassifier.
func NewSimpleClassifier() *SimpleClassifier { return &SimpleClassifier{} }

func (c *SimpleClassifier) Tier() Tier { return TierSimple }

// Classify applies the decision policy in order: low magnitude is
// stationary, a stepping frequency with a vertical bias is walking, a slow
// oscillation with a horizontal bias is vehicle, and larger magnitudes fall
// back to magnitude variation.
func (c *SimpleClassifier) Classify(samples []Sample) (Classification, error) {
	if len(samples) < minSimpleSamples {
		return Classification{}, fmt.Errorf("simple classifier: %w (%d < %d)", ErrInsufficientSamples, len(samples), minSimpleSamples)
	}
	f := ExtractSimpleFeatures(samples)
	if !isFinite(f.MeanMagnitude) || !isFinite(f.StdDevMagnitude) {
		return Classification{}, fmt.Errorf("simple classifier: non-finite magnitude statistics")
	}

	switch {
	case f.MeanMagnitude < SimpleStationaryMagnitude:
		return classificationFor(TypeStationary, 0.8), nil
	case f.StepFrequency > walkingFreqMin && f.StepFrequency < walkingFreqMax && f.VerticalRatio > SimpleAxisRatio:
		return classificationFor(TypeWalking, 0.7), nil
	case f.StepFrequency > vehicleFreqMin && f.StepFrequency < vehicleFreqMax && f.HorizontalRatio > SimpleAxisRatio:
		return classificationFor(TypeVehicle, 0.7), nil
	case f.MeanMagnitude > SimpleMovingMagnitude:
		if f.StdDevMagnitude/f.MeanMagnitude > SimpleWalkingVariation {
			return classificationFor(TypeWalking, 0.6), nil
		}
		return classificationFor(TypeVehicle, 0.6), nil
	}
	return classificationFor(TypeUnknown, 0.5), nil
}

// ExtractSimpleFeatures computes the heuristic features over samples.
func ExtractSimpleFeatures(samples []Sample) SimpleFeatures {
	var f SimpleFeatures
	if len(samples) == 0 {
		return f
	}

	mags := make([]float64, len(samples))
	var sumX, sumY, sumZ float64
	for i, s := range samples {
		mags[i] = s.Magnitude
		sumX += math.Abs(s.X)
		sumY += math.Abs(s.Y)
		sumZ += math.Abs(s.Z)
	}
	if len(mags) > 1 {
		f.MeanMagnitude, f.StdDevMagnitude = stat.MeanStdDev(mags, nil)
	} else {
		f.MeanMagnitude = mags[0]
	}

	if total := sumX + sumY + sumZ; total > 0 {
		f.VerticalRatio = sumZ / total
		f.HorizontalRatio = sumX / total
		f.LateralRatio = sumY / total
	}

	f.ZeroCrossings = zeroCrossings(samples)
	f.DurationSecs = windowDuration(samples)
	if f.DurationSecs > 0 {
		f.StepFrequency = float64(f.ZeroCrossings) / (2 * f.DurationSecs)
	}
	return f
}

// zeroCrossings counts sign changes of the vertical component.
func zeroCrossings(samples []Sample) int {
	n := 0
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1].Z, samples[i].Z
		if (prev < 0 && cur >= 0) || (prev >= 0 && cur < 0) {
			n++
		}
	}
	return n
}
