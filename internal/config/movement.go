package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/banshee-data/motion.report/internal/fsutil"
	"github.com/banshee-data/motion.report/internal/motion"
)

// DefaultConfigPath is the path to the canonical movement defaults file.
const DefaultConfigPath = "config/movement.defaults.json"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// MovementConfig is the JSON configuration of the movement engine. Every
// field is optional; the Get* methods supply the defaults for fields that
// are absent, so partial configs are safe.
type MovementConfig struct {
	SampleSize       *int     `json:"sample_size,omitempty"`
	UpdateInterval   *string  `json:"update_interval,omitempty"` // duration string like "1s"
	UpdateIntervalMs *int     `json:"update_interval_ms,omitempty"`
	VehicleThreshold *float64 `json:"vehicle_threshold,omitempty"`
	WalkingThreshold *float64 `json:"walking_threshold,omitempty"`
	MinConfidence    *float64 `json:"min_confidence,omitempty"`

	TemporalSmoothing  *bool `json:"temporal_smoothing,omitempty"`
	AdaptiveThresholds *bool `json:"adaptive_thresholds,omitempty"`
	SafeMode           *bool `json:"safe_mode,omitempty"`
	UseSimpleMode      *bool `json:"use_simple_mode,omitempty"`

	MaxSampleBufferSize *int `json:"max_sample_buffer_size,omitempty"`
	ErrorThreshold      *int `json:"error_threshold,omitempty"`

	// DeviceID names this device on outbound channels (MQTT topic, Redis).
	DeviceID *string `json:"device_id,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultMovementConfig returns a config with every field set to its
// documented default.
func DefaultMovementConfig() *MovementConfig {
	d := motion.DefaultConfig()
	return &MovementConfig{
		SampleSize:          ptrInt(d.SampleSize),
		UpdateInterval:      ptrString(d.UpdateInterval.String()),
		VehicleThreshold:    ptrFloat64(d.VehicleThreshold),
		WalkingThreshold:    ptrFloat64(d.WalkingThreshold),
		MinConfidence:       ptrFloat64(d.MinConfidence),
		TemporalSmoothing:   ptrBool(d.TemporalSmoothing),
		AdaptiveThresholds:  ptrBool(d.AdaptiveThresholds),
		SafeMode:            ptrBool(d.SafeMode),
		UseSimpleMode:       ptrBool(d.UseSimpleMode),
		MaxSampleBufferSize: ptrInt(d.MaxSampleBufferSize),
		ErrorThreshold:      ptrInt(int(d.ErrorThreshold)),
		DeviceID:            ptrString(defaultDeviceID),
	}
}

const defaultDeviceID = "device"

// LoadMovementConfig loads a MovementConfig from a JSON file on disk.
func LoadMovementConfig(path string) (*MovementConfig, error) {
	return LoadMovementConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadMovementConfigFS loads a MovementConfig from fsys. The file must have
// a .json extension and be at most 1MB.
func LoadMovementConfigFS(fsys fsutil.FileSystem, path string) (*MovementConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &MovementConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up to the repository root. It panics if the file cannot be
// loaded and is intended for test setup.
func MustLoadDefaultConfig() *MovementConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadMovementConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that any values that are set are usable.
func (c *MovementConfig) Validate() error {
	if c.SampleSize != nil && *c.SampleSize <= 0 {
		return fmt.Errorf("sample_size must be positive, got %d", *c.SampleSize)
	}
	if c.MaxSampleBufferSize != nil && *c.MaxSampleBufferSize <= 0 {
		return fmt.Errorf("max_sample_buffer_size must be positive, got %d", *c.MaxSampleBufferSize)
	}
	if c.UpdateInterval != nil && *c.UpdateInterval != "" {
		d, err := time.ParseDuration(*c.UpdateInterval)
		if err != nil {
			return fmt.Errorf("invalid update_interval '%s': %w", *c.UpdateInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("update_interval must be positive, got %s", d)
		}
	}
	if c.UpdateIntervalMs != nil && *c.UpdateIntervalMs <= 0 {
		return fmt.Errorf("update_interval_ms must be positive, got %d", *c.UpdateIntervalMs)
	}
	if c.VehicleThreshold != nil && *c.VehicleThreshold <= 0 {
		return fmt.Errorf("vehicle_threshold must be positive, got %f", *c.VehicleThreshold)
	}
	if c.WalkingThreshold != nil && *c.WalkingThreshold <= 0 {
		return fmt.Errorf("walking_threshold must be positive, got %f", *c.WalkingThreshold)
	}
	if c.MinConfidence != nil && (*c.MinConfidence < 0 || *c.MinConfidence > 1) {
		return fmt.Errorf("min_confidence must be between 0 and 1, got %f", *c.MinConfidence)
	}
	if c.ErrorThreshold != nil && *c.ErrorThreshold < 0 {
		return fmt.Errorf("error_threshold must be non-negative, got %d", *c.ErrorThreshold)
	}
	return nil
}

// GetSampleSize returns the sample_size value or the default.
func (c *MovementConfig) GetSampleSize() int {
	if c.SampleSize == nil {
		return 30
	}
	return *c.SampleSize
}

// GetUpdateInterval returns the analysis period. update_interval takes
// precedence over update_interval_ms.
func (c *MovementConfig) GetUpdateInterval() time.Duration {
	if c.UpdateInterval != nil && *c.UpdateInterval != "" {
		if d, err := time.ParseDuration(*c.UpdateInterval); err == nil && d > 0 {
			return d
		}
	}
	if c.UpdateIntervalMs != nil && *c.UpdateIntervalMs > 0 {
		return time.Duration(*c.UpdateIntervalMs) * time.Millisecond
	}
	return time.Second
}

// GetVehicleThreshold returns the vehicle_threshold value or the default.
func (c *MovementConfig) GetVehicleThreshold() float64 {
	if c.VehicleThreshold == nil {
		return 1.7
	}
	return *c.VehicleThreshold
}

// GetWalkingThreshold returns the walking_threshold value or the default.
func (c *MovementConfig) GetWalkingThreshold() float64 {
	if c.WalkingThreshold == nil {
		return 0.55
	}
	return *c.WalkingThreshold
}

// GetMinConfidence returns the min_confidence value or the default.
func (c *MovementConfig) GetMinConfidence() float64 {
	if c.MinConfidence == nil {
		return 0.5
	}
	return *c.MinConfidence
}

func (c *MovementConfig) GetTemporalSmoothing() bool  { return boolOr(c.TemporalSmoothing, true) }
func (c *MovementConfig) GetAdaptiveThresholds() bool { return boolOr(c.AdaptiveThresholds, true) }
func (c *MovementConfig) GetSafeMode() bool           { return boolOr(c.SafeMode, true) }
func (c *MovementConfig) GetUseSimpleMode() bool      { return boolOr(c.UseSimpleMode, false) }

// GetMaxSampleBufferSize returns the max_sample_buffer_size value or the default.
func (c *MovementConfig) GetMaxSampleBufferSize() int {
	if c.MaxSampleBufferSize == nil {
		return 60
	}
	return *c.MaxSampleBufferSize
}

// GetErrorThreshold returns the error_threshold value or the default.
func (c *MovementConfig) GetErrorThreshold() uint32 {
	if c.ErrorThreshold == nil {
		return 3
	}
	return uint32(*c.ErrorThreshold)
}

// GetDeviceID returns the device_id value or the default.
func (c *MovementConfig) GetDeviceID() string {
	if c.DeviceID == nil || *c.DeviceID == "" {
		return defaultDeviceID
	}
	return *c.DeviceID
}

// EngineConfig resolves the config into engine parameters.
func (c *MovementConfig) EngineConfig() motion.Config {
	return motion.Config{
		SampleSize:          c.GetSampleSize(),
		UpdateInterval:      c.GetUpdateInterval(),
		VehicleThreshold:    c.GetVehicleThreshold(),
		WalkingThreshold:    c.GetWalkingThreshold(),
		MinConfidence:       c.GetMinConfidence(),
		TemporalSmoothing:   c.GetTemporalSmoothing(),
		AdaptiveThresholds:  c.GetAdaptiveThresholds(),
		SafeMode:            c.GetSafeMode(),
		MaxSampleBufferSize: c.GetMaxSampleBufferSize(),
		UseSimpleMode:       c.GetUseSimpleMode(),
		ErrorThreshold:      c.GetErrorThreshold(),
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
