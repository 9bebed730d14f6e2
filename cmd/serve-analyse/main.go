// Command serve-analyse replays a recorded pose stream through the serve
// analysis pipeline, prints the detected phases and feedback, and optionally
// persists the session and writes timeline reports.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/serve.report/internal/fsutil"
	"github.com/banshee-data/serve.report/internal/timeutil"
	"github.com/banshee-data/serve.report/internal/version"
)

func main() {
	cfg, showVersion := parseFlags(flag.CommandLine, os.Args[1:])
	if showVersion {
		fmt.Println(version.String("serve-analyse"))
		return
	}
	if cfg.FramesPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -frames is required")
		flag.CommandLine.Usage()
		os.Exit(2)
	}

	a := &analyser{fs: fsutil.OSFileSystem{}, clock: timeutil.RealClock{}, out: os.Stdout}
	result, err := a.run(cfg)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	if !cfg.Quiet {
		printSummary(a.out, result)
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, bool) {
	var cfg Config
	var showVersion bool

	fs.StringVar(&cfg.FramesPath, "frames", "", "Path to recorded pose frames (required)")
	fs.StringVar(&cfg.Format, "format", "", "Frame format: jsonl or csv (default: from file extension)")
	fs.StringVar(&cfg.Height, "height", "", "Player height, e.g. 1.82, 182cm, 6ft (enables metric calibration)")
	fs.StringVar(&cfg.HeightUnits, "height-units", "", "Units for a bare -height number: m, cm, in, ft")
	fs.StringVar(&cfg.ConfigPath, "config", "", "Path to tuning config JSON (default: built-in defaults)")
	fs.StringVar(&cfg.DBPath, "db", "", "SQLite database path (optional, for persistence)")
	fs.StringVar(&cfg.ReportDir, "report-dir", "", "Directory for HTML/PNG timeline reports (optional)")
	fs.StringVar(&cfg.SessionID, "session", "", "Session ID (default: random UUID)")
	fs.BoolVar(&cfg.ExportJSON, "json", false, "Write the session summary as JSON into the report directory")
	fs.BoolVar(&cfg.Quiet, "quiet", false, "Suppress the printed summary")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		w := fs.Output()
		fmt.Fprintf(w, "Usage: serve-analyse -frames FILE [options]\n\n")
		fmt.Fprintf(w, "Replays a pose recording through smoothing, biomechanics, phase\n")
		fmt.Fprintf(w, "detection and feedback, one frame at a time.\n\n")
		fmt.Fprintf(w, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  serve-analyse -frames serve.jsonl -height 182cm\n")
		fmt.Fprintf(w, "  serve-analyse -frames serve.csv -db serve.db -report-dir ./reports -json\n")
	}

	// flag.ExitOnError handles bad flags for the command line set.
	_ = fs.Parse(args)
	return cfg, showVersion
}
