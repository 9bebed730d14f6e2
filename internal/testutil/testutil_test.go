package testutil

import (
	"bytes"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/serve.report/internal/motion/pose"
)

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
}

func TestServeAndDecode(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
	})
	rec := Serve(h, "/api/sessions")
	AssertStatusCode(t, rec.Code, http.StatusOK)

	var body map[string]string
	DecodeJSON(t, rec, &body)
	assert.Equal(t, "/api/sessions", body["path"])
}

func TestSynthesizeFrames(t *testing.T) {
	samples := DemoServe(0)
	frames := SynthesizeFrames(samples)
	require.Len(t, frames, len(samples))

	for i, f := range frames {
		assert.Equal(t, samples[i].Timestamp, f.Timestamp)
		for j, kp := range f.Keypoints {
			assert.Equal(t, j, kp.Index)
			assert.True(t, kp.Visible(0.5))
		}
		assert.Equal(t, samples[i].WristHeight, f.Keypoints[pose.RightWrist].Y)
	}

	// Raw wrist speed between frames matches the requested speed.
	for i := 1; i < len(frames); i++ {
		dt := frames[i].Timestamp - frames[i-1].Timestamp
		d := r3.Norm(r3.Sub(frames[i].Keypoints[pose.RightWrist].Vec(), frames[i-1].Keypoints[pose.RightWrist].Vec()))
		want := samples[i].WristSpeed
		if dy := math.Abs(samples[i].WristHeight - samples[i-1].WristHeight); dy > want*dt {
			want = dy / dt // unreachable speed, vertical motion only
		}
		assert.InDelta(t, want, d/dt, 1e-9, "frame %d", i)
	}
}

func TestSlowServe(t *testing.T) {
	samples := SlowServe(2)
	require.Len(t, samples, 109)
	assert.Equal(t, 2.0, samples[0].Timestamp)
	assert.InDelta(t, 5.6, samples[len(samples)-1].Timestamp, 1e-9)

	var peakHeight, peakSpeed float64
	for i, s := range samples {
		if i > 0 {
			require.Greater(t, s.Timestamp, samples[i-1].Timestamp)
		}
		peakHeight = math.Max(peakHeight, s.WristHeight)
		peakSpeed = math.Max(peakSpeed, s.WristSpeed)
	}
	assert.Equal(t, 2.6, peakHeight)
	assert.Equal(t, 15.0, peakSpeed)
	assert.Equal(t, 90.0, samples[0].KneeAngle)
	assert.Equal(t, 30.0, samples[len(samples)-1].KneeAngle)
}

func TestEncodeJSONL_ReadsBack(t *testing.T) {
	frames := SynthesizeFrames(DemoServe(0))
	got, err := pose.ReadJSONL(bytes.NewReader(EncodeJSONL(frames)))
	require.NoError(t, err)
	require.Len(t, got, len(frames))
	assert.Equal(t, frames[5], got[5])
}
