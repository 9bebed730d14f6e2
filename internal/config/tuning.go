package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for analysis tuning parameters.
// Every field is optional; the Get* accessors fall back to the documented
// defaults so partial files are safe.
type TuningConfig struct {
	// Adaptive filter params
	FilterMinCutoff        *float64 `json:"filter_min_cutoff,omitempty"`        // Hz
	FilterBeta             *float64 `json:"filter_beta,omitempty"`              // cutoff gain per unit/s
	FilterDerivativeCutoff *float64 `json:"filter_derivative_cutoff,omitempty"` // Hz

	// Extraction params
	VisibilityThreshold *float64 `json:"visibility_threshold,omitempty"`
	TorsoHeightRatio    *float64 `json:"torso_height_ratio,omitempty"`

	// Phase detector params
	PhaseWindowSize            *int     `json:"phase_window_size,omitempty"`
	PhaseRecentSamples         *int     `json:"phase_recent_samples,omitempty"`
	PreparationMinDuration     *string  `json:"preparation_min_duration,omitempty"` // duration string like "500ms"
	LoadingKneeDropDeg         *float64 `json:"loading_knee_drop_deg,omitempty"`
	ContactVelocityMps         *float64 `json:"contact_velocity_mps,omitempty"`
	ContactHeightM             *float64 `json:"contact_height_m,omitempty"`
	ContactPeakTolerance       *float64 `json:"contact_peak_tolerance,omitempty"`
	ContactMinDuration         *string  `json:"contact_min_duration,omitempty"` // duration string like "100ms"
	FollowThroughDecayFraction *float64 `json:"follow_through_decay_fraction,omitempty"`
	SettleVelocityMps          *float64 `json:"settle_velocity_mps,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// All Get* accessors on it return defaults.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/motion/<pkg>/
		"../../../../" + DefaultConfigPath, // from internal/motion/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.FilterMinCutoff != nil && *c.FilterMinCutoff <= 0 {
		return fmt.Errorf("filter_min_cutoff must be positive, got %f", *c.FilterMinCutoff)
	}
	if c.FilterDerivativeCutoff != nil && *c.FilterDerivativeCutoff <= 0 {
		return fmt.Errorf("filter_derivative_cutoff must be positive, got %f", *c.FilterDerivativeCutoff)
	}
	if c.FilterBeta != nil && *c.FilterBeta < 0 {
		return fmt.Errorf("filter_beta must be non-negative, got %f", *c.FilterBeta)
	}

	if c.VisibilityThreshold != nil {
		if *c.VisibilityThreshold < 0 || *c.VisibilityThreshold > 1 {
			return fmt.Errorf("visibility_threshold must be between 0 and 1, got %f", *c.VisibilityThreshold)
		}
	}
	if c.TorsoHeightRatio != nil && *c.TorsoHeightRatio <= 0 {
		return fmt.Errorf("torso_height_ratio must be positive, got %f", *c.TorsoHeightRatio)
	}

	if c.PhaseWindowSize != nil && *c.PhaseWindowSize < 3 {
		return fmt.Errorf("phase_window_size must be at least 3, got %d", *c.PhaseWindowSize)
	}
	if c.PhaseRecentSamples != nil && *c.PhaseRecentSamples < 2 {
		return fmt.Errorf("phase_recent_samples must be at least 2, got %d", *c.PhaseRecentSamples)
	}

	for name, d := range map[string]*string{
		"preparation_min_duration": c.PreparationMinDuration,
		"contact_min_duration":     c.ContactMinDuration,
	} {
		if d == nil || *d == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *d)
		}
	}

	if c.ContactPeakTolerance != nil {
		if *c.ContactPeakTolerance < 0 || *c.ContactPeakTolerance >= 1 {
			return fmt.Errorf("contact_peak_tolerance must be in [0, 1), got %f", *c.ContactPeakTolerance)
		}
	}
	if c.FollowThroughDecayFraction != nil {
		if *c.FollowThroughDecayFraction <= 0 || *c.FollowThroughDecayFraction >= 1 {
			return fmt.Errorf("follow_through_decay_fraction must be in (0, 1), got %f", *c.FollowThroughDecayFraction)
		}
	}

	return nil
}

// GetFilterMinCutoff returns the filter_min_cutoff value or the default.
func (c *TuningConfig) GetFilterMinCutoff() float64 {
	if c.FilterMinCutoff == nil {
		return 1.0
	}
	return *c.FilterMinCutoff
}

// GetFilterBeta returns the filter_beta value or the default.
func (c *TuningConfig) GetFilterBeta() float64 {
	if c.FilterBeta == nil {
		return 0.007
	}
	return *c.FilterBeta
}

// GetFilterDerivativeCutoff returns the filter_derivative_cutoff value or the default.
func (c *TuningConfig) GetFilterDerivativeCutoff() float64 {
	if c.FilterDerivativeCutoff == nil {
		return 1.0
	}
	return *c.FilterDerivativeCutoff
}

// GetVisibilityThreshold returns the visibility_threshold value or the default.
func (c *TuningConfig) GetVisibilityThreshold() float64 {
	if c.VisibilityThreshold == nil {
		return 0.5
	}
	return *c.VisibilityThreshold
}

// GetTorsoHeightRatio returns the torso_height_ratio value or the default.
func (c *TuningConfig) GetTorsoHeightRatio() float64 {
	if c.TorsoHeightRatio == nil {
		return 0.30
	}
	return *c.TorsoHeightRatio
}

// GetPhaseWindowSize returns the phase_window_size value or the default.
func (c *TuningConfig) GetPhaseWindowSize() int {
	if c.PhaseWindowSize == nil {
		return 10
	}
	return *c.PhaseWindowSize
}

// GetPhaseRecentSamples returns the phase_recent_samples value or the default.
func (c *TuningConfig) GetPhaseRecentSamples() int {
	if c.PhaseRecentSamples == nil {
		return 5
	}
	return *c.PhaseRecentSamples
}

// GetPreparationMinDuration parses and returns PreparationMinDuration.
func (c *TuningConfig) GetPreparationMinDuration() time.Duration {
	return parseDurationOr(c.PreparationMinDuration, 500*time.Millisecond)
}

// GetContactMinDuration parses and returns ContactMinDuration.
func (c *TuningConfig) GetContactMinDuration() time.Duration {
	return parseDurationOr(c.ContactMinDuration, 100*time.Millisecond)
}

// GetLoadingKneeDropDeg returns the loading_knee_drop_deg value or the default.
func (c *TuningConfig) GetLoadingKneeDropDeg() float64 {
	if c.LoadingKneeDropDeg == nil {
		return 10.0
	}
	return *c.LoadingKneeDropDeg
}

// GetContactVelocityMps returns the contact_velocity_mps value or the default.
func (c *TuningConfig) GetContactVelocityMps() float64 {
	if c.ContactVelocityMps == nil {
		return 12.0
	}
	return *c.ContactVelocityMps
}

// GetContactHeightM returns the contact_height_m value or the default.
func (c *TuningConfig) GetContactHeightM() float64 {
	if c.ContactHeightM == nil {
		return 2.0
	}
	return *c.ContactHeightM
}

// GetContactPeakTolerance returns the contact_peak_tolerance value or the default.
func (c *TuningConfig) GetContactPeakTolerance() float64 {
	if c.ContactPeakTolerance == nil {
		return 0.05
	}
	return *c.ContactPeakTolerance
}

// GetFollowThroughDecayFraction returns the follow_through_decay_fraction value or the default.
func (c *TuningConfig) GetFollowThroughDecayFraction() float64 {
	if c.FollowThroughDecayFraction == nil {
		return 0.70
	}
	return *c.FollowThroughDecayFraction
}

// GetSettleVelocityMps returns the settle_velocity_mps value or the default.
func (c *TuningConfig) GetSettleVelocityMps() float64 {
	if c.SettleVelocityMps == nil {
		return 1.0
	}
	return *c.SettleVelocityMps
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}
