package testutil

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/banshee-data/serve.report/internal/motion/pose"
	"github.com/banshee-data/serve.report/internal/motion/smoothing"
)

// ServeSample is the target right-side kinematics at one instant: knee
// angle in degrees, wrist height and wrist speed in model units.
type ServeSample struct {
	Timestamp   float64
	KneeAngle   float64
	WristSpeed  float64
	WristHeight float64
}

// DemoServe returns one textbook serve starting at offset seconds: rest,
// knee bend into loading, an overhead wrist peak, decay and settle. Fed
// through a pass-through filter it produces exactly one Loading, Contact,
// FollowThrough and Preparation transition.
func DemoServe(offset float64) []ServeSample {
	s := []ServeSample{
		{0.0, 55, 0.5, 1.0},
		{0.1, 55, 0.5, 1.0},
		{0.2, 55, 0.5, 1.0},
		{0.3, 55, 0.5, 1.0},
		{0.45, 45, 0.5, 1.0},
		{0.6, 35, 0.5, 1.0}, // loading
		{0.7, 35, 5, 1.2},
		{0.8, 35, 10, 1.6},
		{0.9, 35, 15, 1.95},
		{1.0, 35, 18.5, 2.1}, // contact
		{1.05, 35, 16, 2.2},
		{1.1, 35, 15, 2.15},
		{1.15, 35, 12, 2.0},
		{1.2, 35, 8, 1.8},   // follow-through
		{1.3, 50, 0.5, 1.8}, // preparation
	}
	for i := range s {
		s[i].Timestamp += offset
	}
	return s
}

// SlowServe returns a serve sampled at 30 fps whose stages are held long
// enough to show through the default landmark filter: a deep knee bend, a
// half-second fast overhead swing, a slow lowering of the arm and a still
// finish. Timestamps start at offset.
func SlowServe(offset float64) []ServeSample {
	const fps = 30
	var s []ServeSample
	for i := 0; i <= 108; i++ {
		t := float64(i) / fps
		sample := ServeSample{Timestamp: t + offset, KneeAngle: 30, WristHeight: 1.0}
		switch {
		case t < 0.8:
			sample.KneeAngle = 90
		case t < 1.0:
			sample.KneeAngle = 90 - 60*(t-0.8)/0.2
		}
		switch {
		case t < 1.3:
		case t < 1.8:
			sample.WristSpeed = 15
			sample.WristHeight = 1.0 + 1.6*(t-1.3)/0.5
		case t < 2.0:
			sample.WristSpeed = 15
			sample.WristHeight = 2.6
		case t < 2.6:
			sample.WristSpeed = 1.5
			sample.WristHeight = 2.6 - 0.8*(t-2.0)/0.6
		default:
			sample.WristHeight = 1.8
		}
		s = append(s, sample)
	}
	return s
}

// PassThroughFilter is a filter configuration with a cutoff so high that
// filtered positions track raw positions to within a few parts per million.
func PassThroughFilter() smoothing.Config {
	return smoothing.Config{MinCutoff: 1e6, Beta: 0, DerivativeCutoff: 1e6}
}

// Skeleton geometry, model units.
const (
	shoulderY   = 1.45
	hipY        = 1.0
	kneeY       = 0.55
	shinLength  = 0.45
	halfWidth   = 0.2
	hipHalfWide = 0.15
)

// SynthesizeFrames builds full 33-landmark frames whose right knee angle,
// right wrist height and right wrist speed reproduce samples. Each sample's
// speed must be reachable, i.e. at least the vertical wrist displacement
// divided by the elapsed time.
func SynthesizeFrames(samples []ServeSample) []pose.PoseFrame {
	frames := make([]pose.PoseFrame, 0, len(samples))
	wristX := halfWidth
	for i, s := range samples {
		if i > 0 {
			prev := samples[i-1]
			dt := s.Timestamp - prev.Timestamp
			dy := s.WristHeight - prev.WristHeight
			step := s.WristSpeed * dt
			wristX += math.Sqrt(math.Max(0, step*step-dy*dy))
		}
		frames = append(frames, standing(s, wristX))
	}
	return frames
}

func standing(s ServeSample, wristX float64) pose.PoseFrame {
	f := pose.PoseFrame{Timestamp: s.Timestamp}
	for i := range f.Keypoints {
		f.Keypoints[i] = pose.Keypoint{Index: i, Visibility: 0.95, Presence: 0.95}
	}
	set := func(i int, x, y, z float64) {
		f.Keypoints[i].Position = pose.Position{X: x, Y: y, Z: z}
	}

	set(pose.Nose, 0, 1.65, 0)
	set(pose.LeftShoulder, -halfWidth, shoulderY, 0)
	set(pose.RightShoulder, halfWidth, shoulderY, 0)
	set(pose.LeftHip, -hipHalfWide, hipY, 0)
	set(pose.RightHip, hipHalfWide, hipY, 0)

	set(pose.LeftKnee, -hipHalfWide, kneeY, 0)
	set(pose.LeftAnkle, -hipHalfWide, kneeY-shinLength, 0)

	// The knee angle is measured from the thigh, which points straight up.
	rad := s.KneeAngle * math.Pi / 180
	set(pose.RightKnee, hipHalfWide, kneeY, 0)
	set(pose.RightAnkle, hipHalfWide+shinLength*math.Sin(rad), kneeY+shinLength*math.Cos(rad), 0)

	set(pose.RightWrist, wristX, s.WristHeight, 0)
	set(pose.RightElbow, (halfWidth+wristX)/2, (shoulderY+s.WristHeight)/2, 0)
	set(pose.LeftElbow, -halfWidth, 1.2, 0)
	set(pose.LeftWrist, -halfWidth, 0.95, 0)
	return f
}

// EncodeJSONL renders frames in the JSONL recording format.
func EncodeJSONL(frames []pose.PoseFrame) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, f := range frames {
		// PoseFrame holds only float64 and int fields, which always encode.
		_ = enc.Encode(f)
	}
	return buf.Bytes()
}
