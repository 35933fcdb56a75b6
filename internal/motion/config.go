package motion

import (
	"fmt"
	"time"
)

// Config holds the engine tuning parameters.
type Config struct {
	SampleSize          int
	UpdateInterval      time.Duration
	VehicleThreshold    float64
	WalkingThreshold    float64
	MinConfidence       float64
	TemporalSmoothing   bool
	AdaptiveThresholds  bool
	SafeMode            bool
	MaxSampleBufferSize int
	UseSimpleMode       bool
	ErrorThreshold      uint32
}

// DefaultConfig returns the documented engine defaults.
func DefaultConfig() Config {
	return Config{
		SampleSize:          30,
		UpdateInterval:      time.Second,
		VehicleThreshold:    1.7,
		WalkingThreshold:    0.55,
		MinConfidence:       0.5,
		TemporalSmoothing:   true,
		AdaptiveThresholds:  true,
		SafeMode:            true,
		MaxSampleBufferSize: 60,
		UseSimpleMode:       false,
		ErrorThreshold:      3,
	}
}

// Validate checks that the configuration can drive an engine.
func (c Config) Validate() error {
	if c.SampleSize <= 0 {
		return fmt.Errorf("sample size must be positive, got %d", c.SampleSize)
	}
	if c.MaxSampleBufferSize <= 0 {
		return fmt.Errorf("max sample buffer size must be positive, got %d", c.MaxSampleBufferSize)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("update interval must be positive, got %s", c.UpdateInterval)
	}
	if c.WalkingThreshold <= 0 || c.VehicleThreshold <= 0 {
		return fmt.Errorf("thresholds must be positive, got walking=%f vehicle=%f", c.WalkingThreshold, c.VehicleThreshold)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be between 0 and 1, got %f", c.MinConfidence)
	}
	return nil
}

// bufferCap is the hard bound on buffered samples.
func (c Config) bufferCap() int {
	if limit := 2 * c.SampleSize; limit < c.MaxSampleBufferSize {
		return limit
	}
	return c.MaxSampleBufferSize
}

// minAnalysisSamples is the buffered sample count required before a tick
// runs the pipeline.
func (c Config) minAnalysisSamples() int {
	n := c.SampleSize / 2
	if n < minSimpleSamples {
		n = minSimpleSamples
	}
	return n
}
