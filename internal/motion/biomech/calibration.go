package biomech

// DefaultTorsoHeightRatio is the torso length as a fraction of standing height.
const DefaultTorsoHeightRatio = 0.30

// ComputeScale returns the real-world metres per model unit implied by a
// measured torso length and the user's height. ok is false when either input
// is non-positive.
func ComputeScale(torsoLength, userHeightMeters, torsoRatio float64) (scale float64, ok bool) {
	if torsoLength <= 0 || userHeightMeters <= 0 || torsoRatio <= 0 {
		return 0, false
	}
	return (userHeightMeters * torsoRatio) / torsoLength, true
}

// Calibration holds the session-stable scale factor and the height that
// produced it. It is owned by a single Extractor.
type Calibration struct {
	UserHeight *float64 `json:"user_height_m,omitempty"`
	Scale      *float64 `json:"scale,omitempty"`
}

// SetUserHeight records a new user height and clears any existing scale so it
// is recomputed on the next eligible frame. A nil or non-positive height
// removes the height.
func (c *Calibration) SetUserHeight(h *float64) {
	c.Scale = nil
	if h == nil || *h <= 0 {
		c.UserHeight = nil
		return
	}
	v := *h
	c.UserHeight = &v
}

// Calibrated reports whether a scale has been computed.
func (c *Calibration) Calibrated() bool {
	return c.Scale != nil
}

// ScaleOrUnit returns the scale, or 1.0 (raw model units) when uncalibrated.
func (c *Calibration) ScaleOrUnit() float64 {
	if c.Scale == nil {
		return 1.0
	}
	return *c.Scale
}

// Reset clears the scale but keeps the user height, forcing recalibration.
func (c *Calibration) Reset() {
	c.Scale = nil
}
