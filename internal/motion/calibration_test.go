package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(c *Calibrator, mags []float64) (done bool, err error) {
	for _, m := range mags {
		d, e := c.Add(m)
		if d {
			done, err = d, e
		}
	}
	return done, err
}

func TestCalibrator_QuietDevice(t *testing.T) {
	c := NewCalibrator(0.55, 1.7)
	samples := stationarySamples(CalibrationSamples)
	mags := make([]float64, len(samples))
	for i, s := range samples {
		mags[i] = s.Magnitude
	}

	for _, m := range mags[:CalibrationSamples-1] {
		done, err := c.Add(m)
		require.False(t, done)
		require.NoError(t, err)
	}
	assert.False(t, c.Calibrated())

	done, err := c.Add(mags[CalibrationSamples-1])
	require.True(t, done)
	require.NoError(t, err)

	p := c.Profile()
	assert.True(t, p.Calibrated)
	assert.Greater(t, p.BaselineNoise, 0.05)
	assert.Less(t, p.BaselineNoise, 0.12)
	assert.GreaterOrEqual(t, p.AdjustedWalkingThreshold, 0.55)
	assert.LessOrEqual(t, p.AdjustedWalkingThreshold, 0.55*walkingMaxScale)
	assert.LessOrEqual(t, p.AdjustedVehicleThreshold, 1.7*vehicleMaxScale)
	assert.GreaterOrEqual(t, p.AdjustedVehicleThreshold, p.AdjustedWalkingThreshold*vehicleWalkingRatio)
}

func TestCalibrator_NoisyDeviceRaisesThresholds(t *testing.T) {
	c := NewCalibrator(0.55, 1.7)
	mags := make([]float64, CalibrationSamples)
	for i := range mags {
		mags[i] = 0.2
		if i%2 == 1 {
			mags[i] = 0.6
		}
	}
	done, err := feed(c, mags)
	require.True(t, done)
	require.NoError(t, err)

	// cv > 0.5 pins the noise factor at 0.5.
	p := c.Profile()
	assert.InDelta(t, 0.55*1.3, p.AdjustedWalkingThreshold, 1e-9)
	assert.InDelta(t, 1.7*1.4, p.AdjustedVehicleThreshold, 1e-9)
	assert.InDelta(t, 0.2, p.BaselineNoise, 1e-9)
}

func TestCalibrator_FailureUsesDefaults(t *testing.T) {
	tests := []struct {
		name    string
		mag     float64
		wantErr error
	}{
		{"non-finite", math.NaN(), ErrCalibrationInsufficient},
		{"zero median", 0, ErrCalibrationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCalibrator(0.55, 1.7)
			mags := make([]float64, CalibrationSamples)
			for i := range mags {
				mags[i] = tt.mag
			}
			done, err := feed(c, mags)
			require.True(t, done)
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, c.Err(), tt.wantErr)

			assert.Equal(t, CalibrationProfile{
				BaselineNoise:            0.1,
				AdjustedWalkingThreshold: 0.55,
				AdjustedVehicleThreshold: 1.7,
				Calibrated:               true,
			}, c.Profile())
		})
	}
}

func TestCalibrator_RunsOnce(t *testing.T) {
	c := NewCalibrator(0.55, 1.7)
	mags := make([]float64, CalibrationSamples)
	for i := range mags {
		mags[i] = 0.1 + float64(i%5)*0.01
	}
	_, err := feed(c, mags)
	require.NoError(t, err)
	first := c.Profile()

	done, err := c.Add(5.0)
	assert.False(t, done)
	assert.NoError(t, err)
	assert.NoError(t, c.Calibrate())
	assert.Equal(t, first, c.Profile())
}
