// Package config loads the optional JSON configuration file. All fields are
// pointers so a partial config only overrides what it names; Get* accessors
// supply the defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/underlines/LMU-Telemetry-Analyzer/internal/segments"
	"github.com/underlines/LMU-Telemetry-Analyzer/internal/units"
)

// Config is the root configuration. The schema mirrors the command-line
// flags so the same settings can come from either place; flags win.
type Config struct {
	// Paths and server
	TelemetryDir *string `json:"telemetry_dir,omitempty"`
	CachePath    *string `json:"cache_path,omitempty"`
	ListenAddr   *string `json:"listen_addr,omitempty"`

	// SpeedUnits selects the outgoing speed unit: "ms", "kmh", or "mph".
	SpeedUnits *string `json:"speed_units,omitempty"`

	Verbose *bool `json:"verbose,omitempty"`

	// Layout detector tuning
	CurvatureThreshold       *float64 `json:"curvature_threshold,omitempty"`
	MinCornerSpan            *float64 `json:"min_corner_span,omitempty"`
	ComplexDistanceThreshold *float64 `json:"complex_distance_threshold,omitempty"`
	StraightMinLength        *float64 `json:"straight_min_length,omitempty"`
	BrakeThreshold           *float64 `json:"brake_threshold,omitempty"`
	ThrottleFull             *float64 `json:"throttle_full,omitempty"`
	EntryBrakeWindow         *int     `json:"entry_brake_window,omitempty"`
	ExitThrottleWindow       *int     `json:"exit_throttle_window,omitempty"`

	// Signal retrieval
	MaxChartPoints *int `json:"max_chart_points,omitempty"`
}

// Empty returns a Config with all fields unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and be under 1MB. Fields omitted from the file keep their defaults, so
// partial configs are safe.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.SpeedUnits != nil && !units.IsValid(*c.SpeedUnits) {
		return fmt.Errorf("speed_units must be one of %s, got %q", units.GetValidUnitsString(), *c.SpeedUnits)
	}

	if c.CurvatureThreshold != nil && *c.CurvatureThreshold <= 0 {
		return fmt.Errorf("curvature_threshold must be positive, got %f", *c.CurvatureThreshold)
	}
	if c.MinCornerSpan != nil && *c.MinCornerSpan < 0 {
		return fmt.Errorf("min_corner_span must be non-negative, got %f", *c.MinCornerSpan)
	}
	if c.BrakeThreshold != nil && (*c.BrakeThreshold < 0 || *c.BrakeThreshold > 1) {
		return fmt.Errorf("brake_threshold must be between 0 and 1, got %f", *c.BrakeThreshold)
	}
	if c.ThrottleFull != nil && (*c.ThrottleFull < 0 || *c.ThrottleFull > 1) {
		return fmt.Errorf("throttle_full must be between 0 and 1, got %f", *c.ThrottleFull)
	}
	if c.EntryBrakeWindow != nil && *c.EntryBrakeWindow < 0 {
		return fmt.Errorf("entry_brake_window must be non-negative, got %d", *c.EntryBrakeWindow)
	}
	if c.ExitThrottleWindow != nil && *c.ExitThrottleWindow < 0 {
		return fmt.Errorf("exit_throttle_window must be non-negative, got %d", *c.ExitThrottleWindow)
	}
	if c.MaxChartPoints != nil && *c.MaxChartPoints < 0 {
		return fmt.Errorf("max_chart_points must be non-negative, got %d", *c.MaxChartPoints)
	}
	return nil
}

// GetTelemetryDir returns the telemetry directory or the default.
func (c *Config) GetTelemetryDir() string {
	if c.TelemetryDir == nil || *c.TelemetryDir == "" {
		return "telemetry"
	}
	return *c.TelemetryDir
}

// GetCachePath returns the cache database path or the default.
func (c *Config) GetCachePath() string {
	if c.CachePath == nil || *c.CachePath == "" {
		return "segment_cache.db"
	}
	return *c.CachePath
}

// GetListenAddr returns the HTTP listen address or the default.
func (c *Config) GetListenAddr() string {
	if c.ListenAddr == nil || *c.ListenAddr == "" {
		return ":8000"
	}
	return *c.ListenAddr
}

// GetSpeedUnits returns the outgoing speed unit or the default.
func (c *Config) GetSpeedUnits() string {
	if c.SpeedUnits == nil || *c.SpeedUnits == "" {
		return "kmh"
	}
	return *c.SpeedUnits
}

// GetVerbose returns the verbose flag or the default.
func (c *Config) GetVerbose() bool {
	if c.Verbose == nil {
		return false
	}
	return *c.Verbose
}

// GetMaxChartPoints returns the chart downsampling limit or the default.
func (c *Config) GetMaxChartPoints() int {
	if c.MaxChartPoints == nil {
		return 2000
	}
	return *c.MaxChartPoints
}

// DetectorParams merges the detector tuning overrides onto the stock
// thresholds.
func (c *Config) DetectorParams() segments.DetectorParams {
	params := segments.DefaultDetectorParams()
	if c.CurvatureThreshold != nil {
		params.CurvatureThreshold = *c.CurvatureThreshold
	}
	if c.MinCornerSpan != nil {
		params.MinCornerSpan = *c.MinCornerSpan
	}
	if c.ComplexDistanceThreshold != nil {
		params.ComplexDistanceThreshold = *c.ComplexDistanceThreshold
	}
	if c.StraightMinLength != nil {
		params.StraightMinLength = *c.StraightMinLength
	}
	if c.BrakeThreshold != nil {
		params.BrakeThreshold = *c.BrakeThreshold
	}
	if c.ThrottleFull != nil {
		params.ThrottleFull = *c.ThrottleFull
	}
	if c.EntryBrakeWindow != nil {
		params.EntryBrakeWindow = *c.EntryBrakeWindow
	}
	if c.ExitThrottleWindow != nil {
		params.ExitThrottleWindow = *c.ExitThrottleWindow
	}
	return params
}
