package biomech

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/serve.report/internal/config"
	"github.com/banshee-data/serve.report/internal/monitoring"
	"github.com/banshee-data/serve.report/internal/motion/pose"
	"github.com/banshee-data/serve.report/internal/motion/smoothing"
)

var logf = monitoring.Prefixed("biomech")

// ExtractorConfig holds configuration for the per-frame extractor.
type ExtractorConfig struct {
	Filter              smoothing.Config
	VisibilityThreshold float64 // landmarks must exceed this to be measured
	TorsoHeightRatio    float64 // torso length / standing height
	UserHeight          *float64
}

// DefaultExtractorConfig returns extractor configuration with built-in defaults
// and no user height.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfigFromTuning(config.EmptyTuningConfig())
}

// ExtractorConfigFromTuning builds an ExtractorConfig from a loaded TuningConfig.
func ExtractorConfigFromTuning(cfg *config.TuningConfig) ExtractorConfig {
	return ExtractorConfig{
		Filter:              smoothing.ConfigFromTuning(cfg),
		VisibilityThreshold: cfg.GetVisibilityThreshold(),
		TorsoHeightRatio:    cfg.GetTorsoHeightRatio(),
	}
}

// jointTriple names the three landmarks whose middle one is the joint vertex.
type jointTriple struct{ a, vertex, c int }

var (
	leftKnee   = jointTriple{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle}
	rightKnee  = jointTriple{pose.RightHip, pose.RightKnee, pose.RightAnkle}
	leftElbow  = jointTriple{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist}
	rightElbow = jointTriple{pose.RightShoulder, pose.RightElbow, pose.RightWrist}
)

// Extractor converts PoseFrames into MetricsSnapshots. It owns one filter
// per landmark, the calibration state and the previous frame used for
// velocities. An Extractor serves exactly one subject and is not safe for
// concurrent use.
type Extractor struct {
	cfg         ExtractorConfig
	filters     [pose.NumLandmarks]smoothing.PointFilter
	calibration Calibration

	hasPrev   bool
	prevPos   [pose.NumLandmarks]r3.Vec
	prevTime  float64
	positions [pose.NumLandmarks]r3.Vec // scratch for the current frame
}

// NewExtractor creates an extractor in its freshly-reset state.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	e := &Extractor{cfg: cfg}
	for i := range e.filters {
		e.filters[i] = smoothing.NewPointFilter(cfg.Filter)
	}
	e.calibration.SetUserHeight(cfg.UserHeight)
	return e
}

// SetUserHeight updates the user height in metres. The scale is recomputed
// on the next frame where the torso is visible. nil clears the height.
func (e *Extractor) SetUserHeight(h *float64) {
	e.calibration.SetUserHeight(h)
}

// Calibration returns a copy of the current calibration state.
func (e *Extractor) Calibration() Calibration {
	c := Calibration{}
	if e.calibration.UserHeight != nil {
		c.UserHeight = Float(*e.calibration.UserHeight)
	}
	if e.calibration.Scale != nil {
		c.Scale = Float(*e.calibration.Scale)
	}
	return c
}

// Process runs one frame through filter, calibration and measurement.
func (e *Extractor) Process(frame pose.PoseFrame) MetricsSnapshot {
	ts := frame.Timestamp
	for i := range frame.Keypoints {
		e.positions[i] = e.filters[i].Filter(frame.Keypoints[i].Vec(), ts)
	}

	e.calibrate(frame)

	snap := MetricsSnapshot{
		Timestamp:       ts,
		LeftKneeAngle:   e.jointAngle(frame, leftKnee),
		RightKneeAngle:  e.jointAngle(frame, rightKnee),
		LeftElbowAngle:  e.jointAngle(frame, leftElbow),
		RightElbowAngle: e.jointAngle(frame, rightElbow),

		ShoulderRotation: e.lineRotation(frame, pose.LeftShoulder, pose.RightShoulder),
		HipRotation:      e.lineRotation(frame, pose.LeftHip, pose.RightHip),

		LeftWristHeight:    e.height(frame, pose.LeftWrist),
		RightWristHeight:   e.height(frame, pose.RightWrist),
		LeftWristVelocity:  e.velocity(frame, pose.LeftWrist),
		RightWristVelocity: e.velocity(frame, pose.RightWrist),

		Calibrated: e.calibration.Calibrated(),
	}

	// Stale frames leave the filters untouched, so they must not move the
	// velocity reference either.
	if !e.hasPrev || ts > e.prevTime {
		e.prevPos = e.positions
		e.prevTime = ts
		e.hasPrev = true
	}

	return snap
}

// Reset clears every filter, the previous-frame cache and the calibration
// scale. The user height is kept so the next eligible frame recalibrates.
func (e *Extractor) Reset() {
	for i := range e.filters {
		e.filters[i].Reset()
	}
	e.calibration.Reset()
	e.hasPrev = false
	e.prevTime = 0
	e.prevPos = [pose.NumLandmarks]r3.Vec{}
}

func (e *Extractor) visible(frame pose.PoseFrame, indices ...int) bool {
	for _, i := range indices {
		if !frame.Keypoints[i].Visible(e.cfg.VisibilityThreshold) {
			return false
		}
	}
	return true
}

// calibrate computes the scale once per session, the first time the torso is
// measurable and a user height is known.
func (e *Extractor) calibrate(frame pose.PoseFrame) {
	if e.calibration.Scale != nil || e.calibration.UserHeight == nil {
		return
	}
	if !e.visible(frame, pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip) {
		return
	}

	shoulders := Midpoint(e.positions[pose.LeftShoulder], e.positions[pose.RightShoulder])
	hips := Midpoint(e.positions[pose.LeftHip], e.positions[pose.RightHip])
	torso := r3.Norm(r3.Sub(shoulders, hips))

	scale, ok := ComputeScale(torso, *e.calibration.UserHeight, e.cfg.TorsoHeightRatio)
	if !ok {
		return
	}
	e.calibration.Scale = &scale
	logf("calibrated at t=%.3fs: torso=%.4f height=%.2fm scale=%.4f",
		frame.Timestamp, torso, *e.calibration.UserHeight, scale)
}

func (e *Extractor) jointAngle(frame pose.PoseFrame, j jointTriple) *float64 {
	if !e.visible(frame, j.a, j.vertex, j.c) {
		return nil
	}
	return Float(Angle3D(e.positions[j.a], e.positions[j.vertex], e.positions[j.c]))
}

func (e *Extractor) lineRotation(frame pose.PoseFrame, left, right int) *float64 {
	if !e.visible(frame, left, right) {
		return nil
	}
	return Float(LineRotation(e.positions[left], e.positions[right]))
}

func (e *Extractor) height(frame pose.PoseFrame, idx int) *float64 {
	if !e.visible(frame, idx) {
		return nil
	}
	return Float(e.positions[idx].Y * e.calibration.ScaleOrUnit())
}

func (e *Extractor) velocity(frame pose.PoseFrame, idx int) *float64 {
	if !e.hasPrev || !e.visible(frame, idx) {
		return nil
	}
	dt := frame.Timestamp - e.prevTime
	if dt <= 0 {
		return nil
	}
	dist := r3.Norm(r3.Sub(e.positions[idx], e.prevPos[idx]))
	return Float(dist / dt * e.calibration.ScaleOrUnit())
}
