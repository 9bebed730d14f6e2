package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/serve.report/internal/config"
	"github.com/banshee-data/serve.report/internal/db"
	"github.com/banshee-data/serve.report/internal/fsutil"
	"github.com/banshee-data/serve.report/internal/motion/biomech"
	"github.com/banshee-data/serve.report/internal/motion/pipeline"
	"github.com/banshee-data/serve.report/internal/motion/pose"
	"github.com/banshee-data/serve.report/internal/motion/report"
	sqlite "github.com/banshee-data/serve.report/internal/motion/storage/sqlite"
	"github.com/banshee-data/serve.report/internal/security"
	"github.com/banshee-data/serve.report/internal/timeutil"
	"github.com/banshee-data/serve.report/internal/units"
)

// Config holds the options of one analysis run.
type Config struct {
	FramesPath  string
	Format      string
	Height      string
	HeightUnits string
	ConfigPath  string
	DBPath      string
	ReportDir   string
	SessionID   string
	ExportJSON  bool
	Quiet       bool
}

// AnalysisResult is the printed and exported outcome of a run.
type AnalysisResult struct {
	Source           string   `json:"source"`
	UserHeightM      *float64 `json:"user_height_m,omitempty"`
	DurationSecs     float64  `json:"duration_secs"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	ReportFiles      []string `json:"report_files,omitempty"`
	pipeline.Summary
}

type analyser struct {
	fs    fsutil.FileSystem
	clock timeutil.Clock
	out   io.Writer
}

func (a *analyser) run(cfg Config) (*AnalysisResult, error) {
	tuning := config.EmptyTuningConfig()
	if cfg.ConfigPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(cfg.ConfigPath); err != nil {
			return nil, err
		}
	}

	height, err := resolveHeight(cfg.Height, cfg.HeightUnits)
	if err != nil {
		return nil, err
	}

	frames, err := a.readFrames(cfg.FramesPath, cfg.Format)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames in %s", cfg.FramesPath)
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	var sinks []pipeline.Sink
	var store *sqlite.SessionStore
	if cfg.DBPath != "" {
		database, err := db.NewDB(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		defer database.Close()

		store = sqlite.NewSessionStore(database.DB).WithClock(a.clock)
		if err := store.CreateSession(&sqlite.Session{
			SessionID:   sessionID,
			Source:      filepath.Base(cfg.FramesPath),
			UserHeightM: height,
		}); err != nil {
			return nil, err
		}
		sinks = append(sinks, store)
	}

	session := pipeline.NewSession(sessionID, pipeline.ConfigFromTuning(tuning), sinks...)
	session.SetUserHeight(height)

	start := a.clock.Now()
	snapshots := make([]biomech.MetricsSnapshot, 0, len(frames))
	for _, f := range frames {
		res := session.ProcessFrame(f)
		snapshots = append(snapshots, res.Snapshot)
	}
	elapsed := a.clock.Since(start)

	result := &AnalysisResult{
		Source:           cfg.FramesPath,
		UserHeightM:      height,
		DurationSecs:     frames[len(frames)-1].Timestamp - frames[0].Timestamp,
		ProcessingTimeMs: elapsed.Milliseconds(),
		Summary:          session.Summary(),
	}

	if store != nil {
		if err := store.FinishSession(sessionID, result.Frames, result.Calibration); err != nil {
			return nil, err
		}
	}

	if cfg.ReportDir != "" {
		files, err := a.writeReports(cfg, result, snapshots)
		if err != nil {
			return nil, err
		}
		result.ReportFiles = files
	}
	return result, nil
}

// resolveHeight reads -height with optional -height-units. An empty height
// disables calibration.
func resolveHeight(height, unit string) (*float64, error) {
	if height == "" {
		return nil, nil
	}
	if unit != "" {
		v, err := strconv.ParseFloat(strings.TrimSpace(height), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid -height %q for -height-units %s: %w", height, unit, err)
		}
		m, err := units.LengthToMeters(v, unit)
		if err != nil {
			return nil, err
		}
		if m <= 0 {
			return nil, fmt.Errorf("height must be positive, got %s", height)
		}
		return &m, nil
	}
	m, err := units.ParseHeight(height)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (a *analyser) readFrames(path, format string) ([]pose.PoseFrame, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = "csv"
		default:
			format = "jsonl"
		}
	}

	f, err := a.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frames: %w", err)
	}
	defer f.Close()

	switch format {
	case "jsonl", "json":
		return pose.ReadJSONL(f)
	case "csv":
		return pose.ReadCSV(f)
	default:
		return nil, fmt.Errorf("unknown frame format %q (valid: jsonl, csv)", format)
	}
}

func (a *analyser) writeReports(cfg Config, result *AnalysisResult, snapshots []biomech.MetricsSnapshot) ([]string, error) {
	dir, err := security.SafeJoin(cfg.ReportDir, result.SessionID)
	if err != nil {
		return nil, fmt.Errorf("report directory: %w", err)
	}
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	title := fmt.Sprintf("Serve session %s (%s)", result.SessionID, filepath.Base(cfg.FramesPath))

	var html bytes.Buffer
	if err := report.RenderHTML(&html, title, snapshots, result.Events); err != nil {
		return nil, err
	}
	var png bytes.Buffer
	if _, err := report.WritePNG(&png, title, snapshots); err != nil {
		return nil, err
	}

	outputs := []struct {
		name string
		data []byte
	}{
		{"timeline.html", html.Bytes()},
		{"timeline.png", png.Bytes()},
	}
	if cfg.ExportJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("JSON marshal: %w", err)
		}
		outputs = append(outputs, struct {
			name string
			data []byte
		}{"summary.json", data})
	}

	var files []string
	for _, o := range outputs {
		path := filepath.Join(dir, o.name)
		if err := a.writeFile(path, o.data); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

func (a *analyser) writeFile(path string, data []byte) error {
	w, err := a.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return w.Close()
}

func printSummary(w io.Writer, r *AnalysisResult) {
	fmt.Fprintln(w, "\n========== Serve Analysis Summary ==========")
	fmt.Fprintf(w, "Session: %s\n", r.SessionID)
	fmt.Fprintf(w, "File: %s\n", r.Source)
	fmt.Fprintf(w, "Frames: %d over %.2f s (processed in %d ms)\n", r.Frames, r.DurationSecs, r.ProcessingTimeMs)
	if r.Calibration.Scale != nil {
		fmt.Fprintf(w, "Calibration: %.3f m per model unit (height %.2f m)\n", *r.Calibration.Scale, *r.Calibration.UserHeight)
	} else {
		fmt.Fprintln(w, "Calibration: none (heights and speeds in model units)")
	}

	fmt.Fprintln(w, "\nPhase transitions:")
	for _, ev := range r.Events {
		dur := "-"
		if ev.Duration != nil {
			dur = (time.Duration(*ev.Duration * float64(time.Second))).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "  %8.3fs  %-15s %s\n", ev.Timestamp, ev.Phase, dur)
	}

	fmt.Fprintln(w, "\nServe quality:")
	for i, qa := range r.Analyses {
		fmt.Fprintf(w, "  #%d  loading=%s contact=%s overall=%s\n",
			i+1, score(qa.LoadingQuality), score(qa.ContactQuality), score(qa.OverallQuality))
	}

	fmt.Fprintln(w, "\nFeedback:")
	for _, it := range r.Feedback {
		fmt.Fprintf(w, "  [%s] %s: %s\n", it.Severity, it.Category, it.Message)
	}
	for _, f := range r.ReportFiles {
		fmt.Fprintf(w, "Report: %s\n", f)
	}
	if r.SinkErrors > 0 {
		fmt.Fprintf(w, "Persistence errors: %d\n", r.SinkErrors)
	}
	fmt.Fprintln(w, "============================================")
}

func score(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', 0, 64)
}
