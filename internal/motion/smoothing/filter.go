// Package smoothing implements the One-Euro adaptive low-pass filter used to
// remove detector jitter from landmark positions. The cutoff frequency rises
// with the signal's rate of change, so fast motion passes with little lag and
// a near-stationary signal is smoothed heavily.
package smoothing

import (
	"math"

	"github.com/banshee-data/serve.report/internal/config"
)

// Config holds the fixed parameters of a filter instance.
type Config struct {
	MinCutoff        float64 // Hz, smoothing floor; lower means more smoothing and lag
	Beta             float64 // cutoff gain per unit/s of smoothed derivative
	DerivativeCutoff float64 // Hz, smoothing applied to the derivative estimate
}

// DefaultConfig returns the filter parameters tuned for 30 fps pose landmarks.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MinCutoff:        cfg.GetFilterMinCutoff(),
		Beta:             cfg.GetFilterBeta(),
		DerivativeCutoff: cfg.GetFilterDerivativeCutoff(),
	}
}

// OneEuroFilter smooths a single time-stamped scalar stream.
// The zero value is not usable; construct with NewOneEuroFilter.
type OneEuroFilter struct {
	cfg Config

	initialized bool
	prevValue   float64 // previous filtered value
	prevDeriv   float64 // previous smoothed derivative
	prevTime    float64 // seconds
}

// NewOneEuroFilter creates a filter with the given configuration.
func NewOneEuroFilter(cfg Config) *OneEuroFilter {
	return &OneEuroFilter{cfg: cfg}
}

// Config returns the filter configuration.
func (f *OneEuroFilter) Config() Config {
	return f.cfg
}

// Filter returns the smoothed estimate of value at timestamp (seconds).
//
// The first call returns value unchanged. A timestamp that does not advance
// past the previous call returns the previous output and leaves state intact.
func (f *OneEuroFilter) Filter(value, timestamp float64) float64 {
	if !f.initialized {
		f.initialized = true
		f.prevValue = value
		f.prevDeriv = 0
		f.prevTime = timestamp
		return value
	}

	dt := timestamp - f.prevTime
	if dt <= 0 {
		return f.prevValue
	}

	rawDeriv := (value - f.prevValue) / dt
	deriv := lowPass(rawDeriv, f.prevDeriv, smoothingFactor(f.cfg.DerivativeCutoff, dt))

	cutoff := f.cfg.MinCutoff + f.cfg.Beta*math.Abs(deriv)
	filtered := lowPass(value, f.prevValue, smoothingFactor(cutoff, dt))

	f.prevValue = filtered
	f.prevDeriv = deriv
	f.prevTime = timestamp
	return filtered
}

// Reset clears all state; the next Filter call behaves as a first call.
func (f *OneEuroFilter) Reset() {
	f.initialized = false
	f.prevValue = 0
	f.prevDeriv = 0
	f.prevTime = 0
}

// smoothingFactor returns alpha = 1 / (1 + tau/dt) with tau = 1/(2*pi*cutoff).
func smoothingFactor(cutoff, dt float64) float64 {
	tau := 1.0 / (2 * math.Pi * cutoff)
	return 1.0 / (1.0 + tau/dt)
}

// lowPass moves previous towards current by alpha. The result stays between
// the two inputs and equals previous exactly when they are equal.
func lowPass(current, previous, alpha float64) float64 {
	out := previous + alpha*(current-previous)
	lo, hi := math.Min(previous, current), math.Max(previous, current)
	return math.Max(lo, math.Min(hi, out))
}
