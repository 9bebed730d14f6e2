// Package biomech turns filtered pose keypoints into per-frame biomechanical
// measurements: joint angles, torso rotations, calibrated wrist heights and
// wrist velocities.
//
// Every measurement is optional. A landmark at or below the visibility
// threshold leaves the dependent field unset rather than fabricating a value.
// Nothing in this package returns an error.
package biomech
