package motion

import (
	"errors"
	"fmt"
)

// Tier identifies a classifier in the fallback chain.
type Tier string

const (
	TierEnhanced Tier = "enhanced"
	TierSimple   Tier = "simple"
	TierFallback Tier = "fallback"
)

// ErrInsufficientSamples is returned by a classifier that cannot work with
// the number of samples it was given.
var ErrInsufficientSamples = errors.New("insufficient samples")

// Classifier turns a window of samples into a Classification.
type Classifier interface {
	Tier() Tier
	Classify(samples []Sample) (Classification, error)
}

// Calibratable is implemented by classifiers whose thresholds follow the
// device calibration profile.
type Calibratable interface {
	ApplyCalibration(p CalibrationProfile)
}

// classifySafely runs c and converts a panic into an error.
func classifySafely(c Classifier, samples []Sample) (result Classification, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s classifier panic: %v", c.Tier(), r)
		}
	}()
	return c.Classify(samples)
}

// windowDuration returns the time covered by samples in seconds.
func windowDuration(samples []Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	return samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp).Seconds()
}
