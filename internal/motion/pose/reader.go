package pose

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/serve.report/internal/monitoring"
)

var logf = monitoring.Prefixed("pose")

// jsonFrame is the on-disk JSONL shape: one object per line.
type jsonFrame struct {
	Timestamp float64    `json:"timestamp"`
	Keypoints []Keypoint `json:"keypoints"`
}

// ReadJSONL decodes newline-delimited JSON pose frames. Blank lines are
// skipped. A structurally invalid frame aborts the read with its line number.
func ReadJSONL(r io.Reader) ([]PoseFrame, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var frames []PoseFrame
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var jf jsonFrame
		if err := json.Unmarshal([]byte(text), &jf); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode frame: %w", line, err)
		}
		frame, err := NewPoseFrame(jf.Timestamp, jf.Keypoints)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read frames: %w", err)
	}
	return frames, nil
}

// csvColumns lists the required long-format CSV header columns.
var csvColumns = []string{"timestamp", "index", "x", "y", "z", "visibility", "presence"}

// ReadCSV decodes long-format CSV: one row per keypoint, rows of the same
// frame sharing a timestamp and appearing consecutively. Unparsable rows are
// logged and skipped; a frame left with the wrong keypoint count is an error.
func ReadCSV(r io.Reader) ([]PoseFrame, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	colMap := make(map[string]int)
	for i, col := range header {
		colMap[strings.TrimSpace(strings.ToLower(col))] = i
	}
	for _, col := range csvColumns {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("CSV header missing column %q", col)
		}
	}

	var (
		frames  []PoseFrame
		pending []Keypoint
		current float64
		started bool
		row     = 1
	)

	flush := func() error {
		if !started {
			return nil
		}
		frame, err := NewPoseFrame(current, pending)
		if err != nil {
			return fmt.Errorf("frame at t=%.3f: %w", current, err)
		}
		frames = append(frames, frame)
		pending = pending[:0]
		return nil
	}

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			logf("skipping CSV row %d: %v", row, err)
			continue
		}

		ts, kp, err := parseCSVRow(rec, colMap)
		if err != nil {
			logf("skipping CSV row %d: %v", row, err)
			continue
		}

		if !started || ts != current {
			if err := flush(); err != nil {
				return nil, err
			}
			current = ts
			started = true
		}
		pending = append(pending, kp)
	}

	if err := flush(); err != nil {
		return nil, err
	}
	return frames, nil
}

func parseCSVRow(rec []string, colMap map[string]int) (float64, Keypoint, error) {
	get := func(col string) (float64, error) {
		idx := colMap[col]
		if idx >= len(rec) {
			return 0, fmt.Errorf("missing %s", col)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", col, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid %s: non-finite value %q", col, rec[idx])
		}
		return v, nil
	}

	var vals [7]float64
	for i, col := range csvColumns {
		v, err := get(col)
		if err != nil {
			return 0, Keypoint{}, err
		}
		vals[i] = v
	}

	kp := Keypoint{
		Index:      int(vals[1]),
		Position:   Position{X: vals[2], Y: vals[3], Z: vals[4]},
		Visibility: vals[5],
		Presence:   vals[6],
	}
	return vals[0], kp, nil
}
