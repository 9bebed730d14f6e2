package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/serve.report/internal/db"
	"github.com/banshee-data/serve.report/internal/fsutil"
	"github.com/banshee-data/serve.report/internal/motion/biomech"
	"github.com/banshee-data/serve.report/internal/motion/phases"
	"github.com/banshee-data/serve.report/internal/motion/pose"
	sqlite "github.com/banshee-data/serve.report/internal/motion/storage/sqlite"
	"github.com/banshee-data/serve.report/internal/testutil"
	"github.com/banshee-data/serve.report/internal/timeutil"
)

const passThroughTuning = `{"filter_min_cutoff": 1e6, "filter_beta": 0, "filter_derivative_cutoff": 1e6}`

// newTestAnalyser returns an analyser over an in-memory filesystem holding
// one demo serve at /in/serve.jsonl, plus an on-disk tuning file that
// disables smoothing.
func newTestAnalyser(t *testing.T) (*analyser, *fsutil.MemoryFileSystem, string) {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	mfs.WriteFile("/in/serve.jsonl", testutil.EncodeJSONL(testutil.SynthesizeFrames(testutil.DemoServe(0))))

	tuning := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(tuning, []byte(passThroughTuning), 0o644))

	clock := timeutil.NewMockClock(time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC))
	return &analyser{fs: mfs, clock: clock, out: io.Discard}, mfs, tuning
}

func TestParseFlags(t *testing.T) {
	fs := flag.NewFlagSet("serve-analyse", flag.ContinueOnError)
	cfg, showVersion := parseFlags(fs, []string{
		"-frames", "serve.csv", "-height", "72", "-height-units", "in",
		"-db", "serve.db", "-report-dir", "out", "-json", "-session", "s1",
	})
	assert.False(t, showVersion)
	assert.Equal(t, Config{
		FramesPath: "serve.csv", Height: "72", HeightUnits: "in",
		DBPath: "serve.db", ReportDir: "out", SessionID: "s1", ExportJSON: true,
	}, cfg)

	fs = flag.NewFlagSet("serve-analyse", flag.ContinueOnError)
	_, showVersion = parseFlags(fs, []string{"-version"})
	assert.True(t, showVersion)
}

func TestResolveHeight(t *testing.T) {
	tests := []struct {
		height, unit string
		want         float64
		wantNil      bool
		wantErr      bool
	}{
		{"", "", 0, true, false},
		{"1.8", "", 1.8, false, false},
		{"180cm", "", 1.8, false, false},
		{"180", "cm", 1.8, false, false},
		{"6", "ft", 1.8288, false, false},
		{"70", "in", 1.778, false, false},
		{"tall", "", 0, false, true},
		{"180", "cubits", 0, false, true},
		{"abc", "cm", 0, false, true},
		{"-2", "m", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.height+tt.unit, func(t *testing.T) {
			got, err := resolveHeight(tt.height, tt.unit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, tt.want, *got, 1e-9)
		})
	}
}

func TestRun_DemoServe(t *testing.T) {
	a, _, tuning := newTestAnalyser(t)

	result, err := a.run(Config{FramesPath: "/in/serve.jsonl", ConfigPath: tuning, SessionID: "demo"})
	require.NoError(t, err)

	assert.Equal(t, "demo", result.SessionID)
	assert.Equal(t, 15, result.Frames)
	assert.InDelta(t, 1.3, result.DurationSecs, 1e-9)
	assert.Nil(t, result.Calibration.Scale)

	got := make([]phases.Phase, len(result.Events))
	for i, ev := range result.Events {
		got[i] = ev.Phase
	}
	assert.Equal(t, []phases.Phase{phases.Loading, phases.Contact, phases.FollowThrough, phases.Preparation}, got)
	assert.Len(t, result.Analyses, 1)
	assert.NotEmpty(t, result.Feedback)
	assert.Empty(t, result.ReportFiles)
}

func TestRun_Calibrated(t *testing.T) {
	a, _, tuning := newTestAnalyser(t)

	result, err := a.run(Config{FramesPath: "/in/serve.jsonl", ConfigPath: tuning, Height: "180cm"})
	require.NoError(t, err)
	require.NotNil(t, result.Calibration.Scale)
	// Synthetic torso is 0.45 model units; 1.8 m * 0.30 / 0.45.
	assert.InDelta(t, 1.2, *result.Calibration.Scale, 1e-6)
	assert.Len(t, result.SessionID, 36)
}

func TestRun_CSVAndFormatErrors(t *testing.T) {
	a, mfs, tuning := newTestAnalyser(t)

	var csv bytes.Buffer
	csv.WriteString("timestamp,index,x,y,z,visibility,presence\n")
	for _, f := range testutil.SynthesizeFrames(testutil.DemoServe(0))[:3] {
		for _, k := range f.Keypoints {
			csv.WriteString(strings.Join([]string{
				ftoa(f.Timestamp), itoa(k.Index), ftoa(k.X), ftoa(k.Y), ftoa(k.Z), ftoa(k.Visibility), ftoa(k.Presence),
			}, ",") + "\n")
		}
	}
	mfs.WriteFile("/in/serve.csv", csv.Bytes())

	result, err := a.run(Config{FramesPath: "/in/serve.csv", ConfigPath: tuning})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Frames)

	_, err = a.run(Config{FramesPath: "/in/serve.jsonl", Format: "xml"})
	assert.ErrorContains(t, err, "unknown frame format")

	_, err = a.run(Config{FramesPath: "/in/missing.jsonl"})
	assert.ErrorContains(t, err, "open frames")

	mfs.WriteFile("/in/empty.jsonl", nil)
	_, err = a.run(Config{FramesPath: "/in/empty.jsonl"})
	assert.ErrorContains(t, err, "no frames")

	mfs.WriteFile("/in/short.jsonl", []byte(`{"timestamp":0,"keypoints":[]}`+"\n"))
	_, err = a.run(Config{FramesPath: "/in/short.jsonl"})
	assert.ErrorIs(t, err, pose.ErrKeypointCount)

	_, err = a.run(Config{FramesPath: "/in/serve.jsonl", ConfigPath: "/nope/tuning.json"})
	assert.Error(t, err)

	_, err = a.run(Config{FramesPath: "/in/serve.jsonl", Height: "tall"})
	assert.Error(t, err)
}

func TestRun_Reports(t *testing.T) {
	a, mfs, tuning := newTestAnalyser(t)

	result, err := a.run(Config{
		FramesPath: "/in/serve.jsonl", ConfigPath: tuning, SessionID: "demo",
		ReportDir: "/reports", ExportJSON: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/reports/demo/timeline.html",
		"/reports/demo/timeline.png",
		"/reports/demo/summary.json",
	}, result.ReportFiles)

	html, err := mfs.ReadFile("/reports/demo/timeline.html")
	require.NoError(t, err)
	assert.Contains(t, string(html), "contact")

	png, err := mfs.ReadFile("/reports/demo/timeline.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	data, err := mfs.ReadFile("/reports/demo/summary.json")
	require.NoError(t, err)
	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "demo", summary["session_id"])
	assert.EqualValues(t, 15, summary["frames"])

	_, err = a.run(Config{FramesPath: "/in/serve.jsonl", SessionID: "../escape", ReportDir: "/reports"})
	assert.ErrorContains(t, err, "report directory")
}

func TestRun_PersistsSession(t *testing.T) {
	a, _, tuning := newTestAnalyser(t)
	dbPath := filepath.Join(t.TempDir(), "serve.db")

	result, err := a.run(Config{FramesPath: "/in/serve.jsonl", ConfigPath: tuning, SessionID: "stored", DBPath: dbPath})
	require.NoError(t, err)
	assert.Zero(t, result.SinkErrors)

	database, err := db.NewDB(dbPath)
	require.NoError(t, err)
	defer database.Close()
	store := sqlite.NewSessionStore(database.DB)

	sess, err := store.GetSession("stored")
	require.NoError(t, err)
	assert.Equal(t, "serve.jsonl", sess.Source)
	assert.Equal(t, 15, sess.Frames)
	require.NotNil(t, sess.FinishedAt)

	events, err := store.ListPhaseEvents("stored")
	require.NoError(t, err)
	assert.Len(t, events, 4)

	// Re-using a session ID is rejected before any frame is processed.
	_, err = a.run(Config{FramesPath: "/in/serve.jsonl", SessionID: "stored", DBPath: dbPath})
	assert.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	a, _, tuning := newTestAnalyser(t)
	result, err := a.run(Config{FramesPath: "/in/serve.jsonl", ConfigPath: tuning, SessionID: "demo"})
	require.NoError(t, err)
	require.Len(t, result.Analyses, 1)
	result.Calibration = biomech.Calibration{UserHeight: biomech.Float(1.8), Scale: biomech.Float(1.2)}

	var buf bytes.Buffer
	printSummary(&buf, result)
	out := buf.String()
	for _, want := range []string{"Session: demo", "Frames: 15", "Calibration: 1.200", "loading", "follow_through", "overall="} {
		assert.Contains(t, out, want)
	}

	result.Calibration.Scale = nil
	result.Analyses[0].ContactQuality = nil
	buf.Reset()
	printSummary(&buf, result)
	assert.Contains(t, buf.String(), "Calibration: none")
	assert.Contains(t, buf.String(), "contact=n/a")
}
