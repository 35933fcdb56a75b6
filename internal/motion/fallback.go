package motion

// Fallback classifier magnitude cut-offs.
const (
	FallbackStationaryMagnitude = 0.2
	FallbackVehicleMagnitude    = 0.8
)

// FallbackClassifier is the last-resort magnitude-only classifier. It never
// returns an error.
type FallbackClassifier struct{}

func (FallbackClassifier) Tier() Tier { return TierFallback }

// Classify maps the mean magnitude onto a class. Empty or non-finite input
// yields Unknown with confidence 0.5.
func (FallbackClassifier) Classify(samples []Sample) (Classification, error) {
	return fallbackClassify(samples), nil
}

func fallbackClassify(samples []Sample) Classification {
	if len(samples) == 0 {
		return unknownClassification()
	}
	var sum float64
	n := 0
	for _, s := range samples {
		if isFinite(s.Magnitude) {
			sum += s.Magnitude
			n++
		}
	}
	if n == 0 {
		return unknownClassification()
	}
	mean := sum / float64(n)
	switch {
	case mean < FallbackStationaryMagnitude:
		return classificationFor(TypeStationary, 0.7)
	case mean < FallbackVehicleMagnitude:
		return classificationFor(TypeWalking, 0.6)
	default:
		return classificationFor(TypeVehicle, 0.6)
	}
}
