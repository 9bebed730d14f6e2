package biomech

import "math"

// MetricsSnapshot holds one frame's derived measurements. Angles are in
// degrees, heights in metres and velocities in m/s when Calibrated is true;
// otherwise heights and velocities are in raw model units.
type MetricsSnapshot struct {
	Timestamp float64 `json:"timestamp"`

	LeftKneeAngle   *float64 `json:"left_knee_angle,omitempty"`
	RightKneeAngle  *float64 `json:"right_knee_angle,omitempty"`
	LeftElbowAngle  *float64 `json:"left_elbow_angle,omitempty"`
	RightElbowAngle *float64 `json:"right_elbow_angle,omitempty"`

	ShoulderRotation *float64 `json:"shoulder_rotation,omitempty"`
	HipRotation      *float64 `json:"hip_rotation,omitempty"`

	LeftWristHeight    *float64 `json:"left_wrist_height,omitempty"`
	RightWristHeight   *float64 `json:"right_wrist_height,omitempty"`
	LeftWristVelocity  *float64 `json:"left_wrist_velocity,omitempty"`
	RightWristVelocity *float64 `json:"right_wrist_velocity,omitempty"`

	Calibrated bool `json:"calibrated"`
}

// HipShoulderSeparation is |shoulder rotation − hip rotation|, derived on
// demand. Unset unless both rotations are set.
func (m MetricsSnapshot) HipShoulderSeparation() *float64 {
	if m.ShoulderRotation == nil || m.HipRotation == nil {
		return nil
	}
	return Float(math.Abs(*m.ShoulderRotation - *m.HipRotation))
}

// KneeFlexion is the right (drive-leg) knee angle.
func (m MetricsSnapshot) KneeFlexion() *float64 {
	return m.RightKneeAngle
}

// ContactHeight is the right (hitting-arm) wrist height.
func (m MetricsSnapshot) ContactHeight() *float64 {
	return m.RightWristHeight
}

// WristVelocity is the right (hitting-arm) wrist speed.
func (m MetricsSnapshot) WristVelocity() *float64 {
	return m.RightWristVelocity
}

// IsValid reports whether at least one of the phase-relevant metrics is set.
func (m MetricsSnapshot) IsValid() bool {
	return m.LeftKneeAngle != nil ||
		m.RightKneeAngle != nil ||
		m.HipShoulderSeparation() != nil ||
		m.ContactHeight() != nil ||
		m.WristVelocity() != nil
}

// Float returns a pointer to v, for building snapshots in callers and tests.
func Float(v float64) *float64 { return &v }
