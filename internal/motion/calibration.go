package motion

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Calibration constants.
const (
	CalibrationSamples       = 100
	calibrationMinSurvivors  = 10
	calibrationOutlierSigmas = 3.0
	fallbackBaselineNoise    = 0.1

	walkingMaxScale     = 1.5
	vehicleMaxScale     = 1.6
	vehicleWalkingRatio = 1.4
)

var (
	// ErrCalibrationInsufficient is returned when too few samples survive
	// outlier rejection.
	ErrCalibrationInsufficient = errors.New("insufficient calibration samples after outlier rejection")
	// ErrCalibrationFailed is returned when the calibration arithmetic does
	// not produce usable thresholds.
	ErrCalibrationFailed = errors.New("calibration produced invalid thresholds")
)

// Calibrator derives a device-specific noise floor from the first
// CalibrationSamples raw magnitudes. It runs once per session.
type Calibrator struct {
	defaultWalking float64
	defaultVehicle float64
	magnitudes     []float64
	profile        CalibrationProfile
	lastErr        error
}

// NewCalibrator creates a Calibrator that falls back to the given default
// thresholds when calibration fails.
func NewCalibrator(defaultWalking, defaultVehicle float64) *Calibrator {
	return &Calibrator{
		defaultWalking: defaultWalking,
		defaultVehicle: defaultVehicle,
		magnitudes:     make([]float64, 0, CalibrationSamples),
	}
}

// Calibrated reports whether the profile is final.
func (c *Calibrator) Calibrated() bool { return c.profile.Calibrated }

// Profile returns the current calibration profile.
func (c *Calibrator) Profile() CalibrationProfile { return c.profile }

// Err returns the error from the calibration run, if it failed.
func (c *Calibrator) Err() error { return c.lastErr }

// Add records a raw magnitude. Once CalibrationSamples have been seen the
// profile is computed and Add returns done=true exactly once; err carries
// the calibration failure, in which case the default profile was applied.
// Add is a no-op after calibration.
func (c *Calibrator) Add(magnitude float64) (done bool, err error) {
	if c.profile.Calibrated {
		return false, nil
	}
	c.magnitudes = append(c.magnitudes, magnitude)
	if len(c.magnitudes) < CalibrationSamples {
		return false, nil
	}
	err = c.Calibrate()
	return true, err
}

// Calibrate computes the profile from the magnitudes gathered so far. On
// failure the caller-supplied defaults are applied with a baseline noise of
// 0.1; the profile is marked calibrated either way. Calling Calibrate on a
// calibrated profile leaves it unchanged.
func (c *Calibrator) Calibrate() error {
	if c.profile.Calibrated {
		return nil
	}
	profile, err := computeProfile(c.magnitudes, c.defaultWalking, c.defaultVehicle)
	if err != nil {
		profile = CalibrationProfile{
			BaselineNoise:            fallbackBaselineNoise,
			AdjustedWalkingThreshold: c.defaultWalking,
			AdjustedVehicleThreshold: c.defaultVehicle,
		}
		c.lastErr = err
	}
	profile.Calibrated = true
	c.profile = profile
	c.magnitudes = nil
	return err
}

// computeProfile is the pure calibration algorithm.
func computeProfile(magnitudes []float64, defaultWalking, defaultVehicle float64) (p CalibrationProfile, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCalibrationFailed, r)
		}
	}()

	finite := make([]float64, 0, len(magnitudes))
	for _, m := range magnitudes {
		if isFinite(m) {
			finite = append(finite, m)
		}
	}
	if len(finite) < calibrationMinSurvivors {
		return p, fmt.Errorf("%w: %d finite samples", ErrCalibrationInsufficient, len(finite))
	}

	mean, std := stat.MeanStdDev(finite, nil)
	filtered := make([]float64, 0, len(finite))
	for _, m := range finite {
		if std == 0 || math.Abs(m-mean) <= calibrationOutlierSigmas*std {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) < calibrationMinSurvivors {
		return p, fmt.Errorf("%w: %d survivors", ErrCalibrationInsufficient, len(filtered))
	}

	sort.Float64s(filtered)
	low := stat.Quantile(0.12, stat.Empirical, filtered, nil)
	median := stat.Quantile(0.50, stat.Empirical, filtered, nil)
	high := stat.Quantile(0.88, stat.Empirical, filtered, nil)
	if median <= 0 || high < low {
		return p, fmt.Errorf("%w: median=%f low=%f high=%f", ErrCalibrationFailed, median, low, high)
	}

	noiseStdDev := stat.StdDev(filtered, nil)
	cv := noiseStdDev / median
	noiseFactor := clamp(1-cv, 0.5, 1.0)

	// Noisier devices get proportionally higher thresholds.
	walking := defaultWalking * (1 + (1-noiseFactor)*0.6)
	vehicle := defaultVehicle * (1 + (1-noiseFactor)*0.8)
	walking = math.Min(walking, defaultWalking*walkingMaxScale)
	vehicle = math.Min(vehicle, defaultVehicle*vehicleMaxScale)
	if vehicle < walking*vehicleWalkingRatio {
		vehicle = walking * vehicleWalkingRatio
	}

	if !isFinite(low) || !isFinite(walking) || !isFinite(vehicle) || walking <= 0 {
		return p, fmt.Errorf("%w: walking=%f vehicle=%f", ErrCalibrationFailed, walking, vehicle)
	}

	return CalibrationProfile{
		BaselineNoise:            low,
		AdjustedWalkingThreshold: walking,
		AdjustedVehicleThreshold: vehicle,
	}, nil
}
