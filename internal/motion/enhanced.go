package motion

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	minEnhancedSamples  = 16
	maxDominantFreqs    = 3
	enhancedMinClassHit = 0.2
)

// EnhancedClassifier classifies from the frequency content of the vertical
// and horizontal acceleration. Walking concentrates energy in the 1-3Hz
// stepping band; vehicles in the 0.1-1Hz suspension band.
type EnhancedClassifier struct {
	walkingThreshold float64
	vehicleThreshold float64
	stationaryCut    float64
	baselineNoise    float64
}

// NewEnhancedClassifier creates an EnhancedClassifier with the default
// walking and vehicle thresholds.
func NewEnhancedClassifier(walkingThreshold, vehicleThreshold float64) *EnhancedClassifier {
	return &EnhancedClassifier{
		walkingThreshold: walkingThreshold,
		vehicleThreshold: vehicleThreshold,
		stationaryCut:    SimpleStationaryMagnitude,
	}
}

func (c *EnhancedClassifier) Tier() Tier { return TierEnhanced }

// ApplyCalibration switches to the calibrated thresholds and noise floor.
func (c *EnhancedClassifier) ApplyCalibration(p CalibrationProfile) {
	if !p.Calibrated {
		return
	}
	if p.AdjustedWalkingThreshold > 0 {
		c.stationaryCut = SimpleStationaryMagnitude * p.AdjustedWalkingThreshold / c.walkingThreshold
		c.walkingThreshold = p.AdjustedWalkingThreshold
	}
	if p.AdjustedVehicleThreshold > 0 {
		c.vehicleThreshold = p.AdjustedVehicleThreshold
	}
	c.baselineNoise = p.BaselineNoise
}

// Spectrum is the one-sided power spectrum of a sample window.
type Spectrum struct {
	Freqs []float64
	Power []float64
}

// BandPower sums the power of bins with lo < f <= hi.
func (s Spectrum) BandPower(lo, hi float64) float64 {
	var p float64
	for i, f := range s.Freqs {
		if f > lo && f <= hi {
			p += s.Power[i]
		}
	}
	return p
}

// Dominant returns up to n non-DC peak frequencies ordered by power.
func (s Spectrum) Dominant(n int) []float64 {
	idx := make([]int, 0, len(s.Freqs))
	for i := 1; i < len(s.Freqs); i++ {
		if s.Power[i] > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.Power[idx[a]] > s.Power[idx[b]] })
	if len(idx) > n {
		idx = idx[:n]
	}
	out := make([]float64, len(idx))
	for i, k := range idx {
		out[i] = s.Freqs[k]
	}
	return out
}

// ComputeSpectrum returns the combined power spectrum of the mean-removed
// vertical and horizontal components. The sampling rate is estimated from
// the window duration; the rate-limited buffer keeps spacing near uniform.
func ComputeSpectrum(samples []Sample) (Spectrum, error) {
	n := len(samples)
	duration := windowDuration(samples)
	if n < 2 || duration <= 0 {
		return Spectrum{}, fmt.Errorf("spectrum: %w", ErrInsufficientSamples)
	}
	fs := float64(n-1) / duration

	vertical := make([]float64, n)
	horizontal := make([]float64, n)
	for i, s := range samples {
		vertical[i] = s.Z
		horizontal[i] = math.Hypot(s.X, s.Y)
	}
	floats.AddConst(-stat.Mean(vertical, nil), vertical)
	floats.AddConst(-stat.Mean(horizontal, nil), horizontal)

	fft := fourier.NewFFT(n)
	vc := fft.Coefficients(nil, vertical)
	hc := fft.Coefficients(nil, horizontal)

	spec := Spectrum{
		Freqs: make([]float64, len(vc)),
		Power: make([]float64, len(vc)),
	}
	for i := range vc {
		spec.Freqs[i] = fft.Freq(i) * fs
		vr, vi := real(vc[i]), imag(vc[i])
		hr, hi := real(hc[i]), imag(hc[i])
		spec.Power[i] = (vr*vr + vi*vi + hr*hr + hi*hi) / float64(n)
	}
	return spec, nil
}

// Classify scores each class from band energies and the mean magnitude.
func (c *EnhancedClassifier) Classify(samples []Sample) (Classification, error) {
	if len(samples) < minEnhancedSamples {
		return Classification{}, fmt.Errorf("enhanced classifier: %w (%d < %d)", ErrInsufficientSamples, len(samples), minEnhancedSamples)
	}
	spec, err := ComputeSpectrum(samples)
	if err != nil {
		return Classification{}, fmt.Errorf("enhanced classifier: %w", err)
	}

	mags := make([]float64, len(samples))
	for i, s := range samples {
		mags[i] = s.Magnitude
	}
	meanMag := stat.Mean(mags, nil)

	total := floats.Sum(spec.Power[1:])
	walkBand := spec.BandPower(walkingFreqMin, walkingFreqMax)
	vehicleBand := spec.BandPower(vehicleFreqMin, vehicleFreqMax)
	if !isFinite(total) || !isFinite(meanMag) {
		return Classification{}, fmt.Errorf("enhanced classifier: non-finite spectrum")
	}

	var walkFrac, vehicleFrac float64
	if total > 0 {
		walkFrac = walkBand / total
		vehicleFrac = vehicleBand / total
	}

	stationaryCut := c.stationaryCut + c.baselineNoise
	var stationary float64
	if meanMag < stationaryCut {
		stationary = 0.6 + 0.3*(1-meanMag/stationaryCut)
	} else {
		stationary = 0.1 * stationaryCut / meanMag
	}
	motionWeight := clamp((meanMag-c.baselineNoise)/c.walkingThreshold, 0, 1)
	walking := walkFrac * motionWeight
	vehicle := vehicleFrac * motionWeight
	if meanMag > c.vehicleThreshold {
		// Jolts this strong are more likely handling than a vehicle ride.
		vehicle *= c.vehicleThreshold / meanMag
	}

	if sum := stationary + walking + vehicle; sum > 1 {
		stationary /= sum
		walking /= sum
		vehicle /= sum
	}

	details := Details{
		VehicleConfidence:    vehicle,
		WalkingConfidence:    walking,
		StationaryConfidence: stationary,
		DominantFrequencies:  spec.Dominant(maxDominantFreqs),
	}

	result := Classification{Type: TypeStationary, Confidence: stationary, Details: details}
	if walking > result.Confidence {
		result.Type, result.Confidence = TypeWalking, walking
	}
	if vehicle > result.Confidence {
		result.Type, result.Confidence = TypeVehicle, vehicle
	}
	if result.Confidence < enhancedMinClassHit {
		result.Type = TypeUnknown
	}
	return result, nil
}
