package pose

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrKeypointCount is returned when a frame does not carry exactly NumLandmarks keypoints.
	ErrKeypointCount = errors.New("pose frame must contain exactly 33 keypoints")
	// ErrKeypointIndex is returned when a keypoint index is out of range or out of order.
	ErrKeypointIndex = errors.New("keypoint index out of order")
)

// Position is a 3D landmark position. Units are normalised image
// coordinates or world metres depending on the upstream source.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec converts the position to a gonum r3 vector.
func (p Position) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// PositionFromVec converts an r3 vector back to a Position.
func PositionFromVec(v r3.Vec) Position {
	return Position{X: v.X, Y: v.Y, Z: v.Z}
}

// Keypoint is one tracked anatomical landmark in a single frame.
type Keypoint struct {
	Index int `json:"index"`
	Position
	Visibility float64 `json:"visibility"` // in frame and unoccluded, [0,1]
	Presence   float64 `json:"presence"`   // exists in the detected pose, [0,1]
}

// Visible reports whether the keypoint's visibility exceeds threshold.
func (k Keypoint) Visible(threshold float64) bool {
	return k.Visibility > threshold
}

// PoseFrame is the fixed-size set of keypoints detected in one video frame.
type PoseFrame struct {
	Timestamp float64                `json:"timestamp"` // seconds, monotonic per session
	Keypoints [NumLandmarks]Keypoint `json:"keypoints"`
}

// NewPoseFrame builds a PoseFrame from a slice, enforcing the fixed
// vocabulary: exactly NumLandmarks entries with Index equal to position.
// Zero indices are accepted and filled in, since many exporters omit them.
func NewPoseFrame(timestamp float64, keypoints []Keypoint) (PoseFrame, error) {
	frame := PoseFrame{Timestamp: timestamp}
	if len(keypoints) != NumLandmarks {
		return frame, ErrKeypointCount
	}
	for i, kp := range keypoints {
		if kp.Index != i && kp.Index != 0 {
			return frame, ErrKeypointIndex
		}
		kp.Index = i
		frame.Keypoints[i] = kp
	}
	return frame, nil
}
