package biomech

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/serve.report/internal/config"
	"github.com/banshee-data/serve.report/internal/motion/pose"
	"github.com/banshee-data/serve.report/internal/motion/smoothing"
)

func TestAngle3D(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c r3.Vec
		want    float64
	}{
		{"right angle", r3.Vec{X: 1}, r3.Vec{}, r3.Vec{Y: 1}, 90},
		{"collinear", r3.Vec{X: -1}, r3.Vec{}, r3.Vec{X: 1}, 180},
		{"folded", r3.Vec{X: 1}, r3.Vec{}, r3.Vec{X: 2}, 0},
		{"coincident vertex", r3.Vec{}, r3.Vec{}, r3.Vec{Y: 1}, 0},
		{"all coincident", r3.Vec{X: 1}, r3.Vec{X: 1}, r3.Vec{X: 1}, 0},
		{"45 degrees in 3d", r3.Vec{Z: 1}, r3.Vec{}, r3.Vec{Y: 1, Z: 1}, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Angle3D(tt.a, tt.b, tt.c)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestAngle3D_NearlyParallelClamps(t *testing.T) {
	// Rounding can push the cosine just past ±1.
	a := r3.Vec{X: 1e-8, Y: 3}
	c := r3.Vec{X: 1e-8, Y: 7}
	got := Angle3D(a, r3.Vec{}, c)
	assert.False(t, math.IsNaN(got))
	assert.InDelta(t, 0, got, 1e-6)
}

func TestLineRotation(t *testing.T) {
	assert.InDelta(t, 0, LineRotation(r3.Vec{}, r3.Vec{X: 1}), 1e-12)
	assert.InDelta(t, 45, LineRotation(r3.Vec{}, r3.Vec{X: 1, Z: 1}), 1e-12)
	assert.InDelta(t, 90, LineRotation(r3.Vec{}, r3.Vec{Z: 2}), 1e-12)
	assert.InDelta(t, 180, LineRotation(r3.Vec{X: 1}, r3.Vec{}), 1e-12)
	// Height difference does not change rotation about the vertical axis.
	assert.InDelta(t, 45, LineRotation(r3.Vec{Y: 5}, r3.Vec{X: 1, Y: -3, Z: 1}), 1e-12)
}

func TestComputeScale(t *testing.T) {
	scale, ok := ComputeScale(0.3, 1.8, DefaultTorsoHeightRatio)
	require.True(t, ok)
	assert.InDelta(t, 1.8, scale, 1e-12)

	for _, in := range [][3]float64{{0, 1.8, 0.3}, {0.3, 0, 0.3}, {0.3, 1.8, 0}, {-1, 1.8, 0.3}} {
		_, ok := ComputeScale(in[0], in[1], in[2])
		assert.False(t, ok, "inputs %v", in)
	}
}

func TestCalibration(t *testing.T) {
	var c Calibration
	assert.False(t, c.Calibrated())
	assert.Equal(t, 1.0, c.ScaleOrUnit())

	c.SetUserHeight(Float(1.8))
	c.Scale = Float(2.5)
	assert.True(t, c.Calibrated())
	assert.Equal(t, 2.5, c.ScaleOrUnit())

	// New height clears the scale.
	c.SetUserHeight(Float(1.7))
	assert.False(t, c.Calibrated())
	require.NotNil(t, c.UserHeight)
	assert.Equal(t, 1.7, *c.UserHeight)

	// Reset keeps the height.
	c.Scale = Float(3)
	c.Reset()
	assert.False(t, c.Calibrated())
	assert.NotNil(t, c.UserHeight)

	c.SetUserHeight(Float(-1))
	assert.Nil(t, c.UserHeight)
	c.SetUserHeight(nil)
	assert.Nil(t, c.UserHeight)
}

func TestCalibration_JSONRoundTrip(t *testing.T) {
	in := Calibration{UserHeight: Float(1.82), Scale: Float(2.03)}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Calibration
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestMetricsSnapshot_Derived(t *testing.T) {
	var m MetricsSnapshot
	assert.False(t, m.IsValid())
	assert.Nil(t, m.HipShoulderSeparation())

	m.ShoulderRotation = Float(-20)
	assert.Nil(t, m.HipShoulderSeparation())
	assert.False(t, m.IsValid(), "one rotation alone is not a phase metric")

	m.HipRotation = Float(15)
	require.NotNil(t, m.HipShoulderSeparation())
	assert.Equal(t, 35.0, *m.HipShoulderSeparation())
	assert.True(t, m.IsValid())

	m = MetricsSnapshot{RightWristVelocity: Float(3)}
	assert.True(t, m.IsValid())
	assert.Equal(t, 3.0, *m.WristVelocity())

	m = MetricsSnapshot{LeftElbowAngle: Float(120)}
	assert.False(t, m.IsValid())
}

// standingFrame builds a frame with every landmark visible and a simple,
// hand-checkable skeleton.
func standingFrame(ts float64) pose.PoseFrame {
	var f pose.PoseFrame
	f.Timestamp = ts
	for i := range f.Keypoints {
		f.Keypoints[i] = pose.Keypoint{Index: i, Visibility: 0.9, Presence: 0.9}
	}
	set := func(i int, x, y, z float64) {
		f.Keypoints[i].Position = pose.Position{X: x, Y: y, Z: z}
	}
	set(pose.LeftShoulder, -0.2, 1.3, 0)
	set(pose.RightShoulder, 0.2, 1.3, 0)
	set(pose.LeftHip, -0.1, 1.0, 0)
	set(pose.RightHip, 0.1, 1.0, 0.1)

	// Right knee bent at 90°, left leg straight.
	set(pose.RightKnee, 0.1, 0.5, 0.1)
	set(pose.RightAnkle, 0.6, 0.5, 0.1)
	set(pose.LeftKnee, -0.1, 0.5, 0)
	set(pose.LeftAnkle, -0.1, 0.0, 0)

	set(pose.RightElbow, 0.2, 1.6, 0)
	set(pose.RightWrist, 0.2, 1.9, 0)
	set(pose.LeftElbow, -0.2, 1.0, 0)
	set(pose.LeftWrist, -0.2, 0.8, 0)
	return f
}

func TestExtractor_FirstFrame(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())
	snap := e.Process(standingFrame(0))

	assert.Equal(t, 0.0, snap.Timestamp)
	assert.False(t, snap.Calibrated)

	require.NotNil(t, snap.RightKneeAngle)
	assert.InDelta(t, 90, *snap.RightKneeAngle, 1e-9)
	require.NotNil(t, snap.LeftKneeAngle)
	assert.InDelta(t, 180, *snap.LeftKneeAngle, 1e-9)
	require.NotNil(t, snap.RightElbowAngle)
	assert.InDelta(t, 180, *snap.RightElbowAngle, 1e-9)

	require.NotNil(t, snap.ShoulderRotation)
	assert.InDelta(t, 0, *snap.ShoulderRotation, 1e-9)
	require.NotNil(t, snap.HipRotation)
	assert.InDelta(t, math.Atan2(0.1, 0.2)*180/math.Pi, *snap.HipRotation, 1e-9)

	// Uncalibrated heights are raw model units.
	require.NotNil(t, snap.RightWristHeight)
	assert.InDelta(t, 1.9, *snap.RightWristHeight, 1e-9)

	// No previous frame, no velocity.
	assert.Nil(t, snap.RightWristVelocity)
	assert.Nil(t, snap.LeftWristVelocity)
	assert.True(t, snap.IsValid())
}

func TestExtractor_VisibilityGating(t *testing.T) {
	f := standingFrame(0)
	f.Keypoints[pose.RightAnkle].Visibility = 0.5 // not strictly above threshold
	f.Keypoints[pose.LeftHip].Visibility = 0.1
	f.Keypoints[pose.RightWrist].Visibility = 0.2

	e := NewExtractor(DefaultExtractorConfig())
	snap := e.Process(f)

	assert.Nil(t, snap.RightKneeAngle)
	assert.Nil(t, snap.LeftKneeAngle)
	assert.Nil(t, snap.HipRotation)
	assert.Nil(t, snap.HipShoulderSeparation())
	assert.Nil(t, snap.RightWristHeight)
	assert.Nil(t, snap.RightElbowAngle)
	assert.NotNil(t, snap.ShoulderRotation)
	assert.NotNil(t, snap.LeftElbowAngle)
}

func TestExtractor_Velocity(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())
	e.Process(standingFrame(0))

	// Stationary pose gives zero speed.
	snap := e.Process(standingFrame(0.1))
	require.NotNil(t, snap.RightWristVelocity)
	assert.InDelta(t, 0, *snap.RightWristVelocity, 1e-12)

	// Moving the wrist gives a positive speed.
	moved := standingFrame(0.2)
	moved.Keypoints[pose.RightWrist].Y = 2.4
	snap = e.Process(moved)
	require.NotNil(t, snap.RightWristVelocity)
	assert.Greater(t, *snap.RightWristVelocity, 0.0)

	// A repeated timestamp cannot produce a velocity.
	snap = e.Process(standingFrame(0.2))
	assert.Nil(t, snap.RightWristVelocity)

	// Hidden wrist, no velocity.
	hidden := standingFrame(0.3)
	hidden.Keypoints[pose.RightWrist].Visibility = 0
	snap = e.Process(hidden)
	assert.Nil(t, snap.RightWristVelocity)
}

func TestExtractor_VelocityIgnoresRegressedFrame(t *testing.T) {
	cfg := DefaultExtractorConfig()
	cfg.Filter = smoothing.Config{MinCutoff: 1e6, Beta: 0, DerivativeCutoff: 1e6}

	run := func(withRegressed bool) float64 {
		e := NewExtractor(cfg)
		e.Process(standingFrame(0))
		e.Process(standingFrame(0.1))
		if withRegressed {
			stale := e.Process(standingFrame(0.05))
			assert.Nil(t, stale.RightWristVelocity)
		}
		moved := standingFrame(0.2)
		moved.Keypoints[pose.RightWrist].Y += 0.5
		snap := e.Process(moved)
		require.NotNil(t, snap.RightWristVelocity)
		return *snap.RightWristVelocity
	}

	clean := run(false)
	assert.InDelta(t, 5.0, clean, 1e-3)
	assert.InDelta(t, clean, run(true), 1e-9)
}

func TestExtractor_Calibration(t *testing.T) {
	cfg := DefaultExtractorConfig()
	cfg.UserHeight = Float(1.8)
	e := NewExtractor(cfg)

	snap := e.Process(standingFrame(0))
	require.True(t, snap.Calibrated)

	// Torso is shoulder-mid (0,1.3,0) to hip-mid (0,1.0,0.05).
	torso := math.Hypot(0.3, 0.05)
	wantScale := 1.8 * DefaultTorsoHeightRatio / torso
	cal := e.Calibration()
	require.NotNil(t, cal.Scale)
	assert.InDelta(t, wantScale, *cal.Scale, 1e-9)

	require.NotNil(t, snap.RightWristHeight)
	assert.InDelta(t, 1.9*wantScale, *snap.RightWristHeight, 1e-9)

	// Scale stays fixed for the session.
	moved := standingFrame(0.1)
	moved.Keypoints[pose.LeftShoulder].Y = 2.0
	moved.Keypoints[pose.RightShoulder].Y = 2.0
	e.Process(moved)
	assert.InDelta(t, wantScale, *e.Calibration().Scale, 1e-9)

	// Mutating the returned copy does not affect the extractor.
	*cal.Scale = 99
	assert.InDelta(t, wantScale, *e.Calibration().Scale, 1e-9)
}

func TestExtractor_CalibrationWaitsForTorso(t *testing.T) {
	cfg := DefaultExtractorConfig()
	cfg.UserHeight = Float(1.8)
	e := NewExtractor(cfg)

	f := standingFrame(0)
	f.Keypoints[pose.RightHip].Visibility = 0.3
	snap := e.Process(f)
	assert.False(t, snap.Calibrated)

	snap = e.Process(standingFrame(0.1))
	assert.True(t, snap.Calibrated)
}

func TestExtractor_SetUserHeightRecalibrates(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())
	assert.False(t, e.Process(standingFrame(0)).Calibrated)

	e.SetUserHeight(Float(1.6))
	assert.Nil(t, e.Calibration().Scale)
	assert.True(t, e.Process(standingFrame(0.1)).Calibrated)
	first := *e.Calibration().Scale

	e.SetUserHeight(Float(2.0))
	assert.True(t, e.Process(standingFrame(0.2)).Calibrated)
	assert.InDelta(t, first*2.0/1.6, *e.Calibration().Scale, 1e-9)
}

func TestExtractor_Reset(t *testing.T) {
	cfg := DefaultExtractorConfig()
	cfg.UserHeight = Float(1.8)
	e := NewExtractor(cfg)
	e.Process(standingFrame(0))
	e.Process(standingFrame(0.1))

	e.Reset()
	assert.Nil(t, e.Calibration().Scale)
	require.NotNil(t, e.Calibration().UserHeight)

	// After reset the next frame behaves like the first one.
	f := standingFrame(5)
	f.Keypoints[pose.RightWrist].Y = 0.4
	snap := e.Process(f)
	assert.Nil(t, snap.RightWristVelocity)
	assert.True(t, snap.Calibrated)
	require.NotNil(t, snap.RightWristHeight)
	assert.InDelta(t, 0.4*(*e.Calibration().Scale), *snap.RightWristHeight, 1e-9)
}

func TestExtractorConfigFromTuning(t *testing.T) {
	tc := config.EmptyTuningConfig()
	vis := 0.7
	tc.VisibilityThreshold = &vis
	cfg := ExtractorConfigFromTuning(tc)
	assert.Equal(t, 0.7, cfg.VisibilityThreshold)
	assert.Equal(t, DefaultTorsoHeightRatio, cfg.TorsoHeightRatio)
	assert.Nil(t, cfg.UserHeight)
}
