// Package pipeline wires the per-frame analysis stages together: one
// Session owns an extractor, a phase detector and an evaluator, and fans its
// results out to any number of sinks.
package pipeline

import (
	"github.com/google/uuid"

	"github.com/banshee-data/serve.report/internal/config"
	"github.com/banshee-data/serve.report/internal/monitoring"
	"github.com/banshee-data/serve.report/internal/motion/biomech"
	"github.com/banshee-data/serve.report/internal/motion/feedback"
	"github.com/banshee-data/serve.report/internal/motion/phases"
	"github.com/banshee-data/serve.report/internal/motion/pose"
)

var logf = monitoring.Prefixed("pipeline")

// Sink receives session output as it is produced. RecordPhaseEvent may be
// called twice for the same seq: once when the event is emitted and again
// when its duration is backfilled.
type Sink interface {
	RecordSnapshot(sessionID string, s biomech.MetricsSnapshot) error
	RecordPhaseEvent(sessionID string, seq int, ev phases.PhaseEvent) error
	RecordFeedback(sessionID string, items []feedback.FeedbackItem) error
	RecordAnalysis(sessionID string, qa feedback.QualityAnalysis) error
}

// Config bundles the stage configurations of a session.
type Config struct {
	Extractor biomech.ExtractorConfig
	Detector  phases.DetectorConfig
}

// DefaultConfig returns stage configurations with built-in defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds stage configurations from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Extractor: biomech.ExtractorConfigFromTuning(cfg),
		Detector:  phases.DetectorConfigFromTuning(cfg),
	}
}

// FrameResult is everything one frame produced. Event, Feedback and Analysis
// are only set on frames that caused a phase transition.
type FrameResult struct {
	Snapshot biomech.MetricsSnapshot   `json:"snapshot"`
	Event    *phases.PhaseEvent        `json:"event,omitempty"`
	Feedback []feedback.FeedbackItem   `json:"feedback,omitempty"`
	Analysis *feedback.QualityAnalysis `json:"analysis,omitempty"`
}

// Summary is the accumulated output of a session, for persistence or
// display at session end.
type Summary struct {
	SessionID   string                     `json:"session_id"`
	Frames      int                        `json:"frames"`
	Calibration biomech.Calibration        `json:"calibration"`
	Events      []phases.PhaseEvent        `json:"events"`
	Feedback    []feedback.FeedbackItem    `json:"feedback"`
	Analyses    []feedback.QualityAnalysis `json:"analyses"`
	SinkErrors  int                        `json:"sink_errors"`
}

// Session analyses one subject's frame stream. Frames must be delivered in
// non-decreasing timestamp order from a single goroutine.
type Session struct {
	id        string
	extractor *biomech.Extractor
	detector  *phases.Detector
	evaluator *feedback.Evaluator
	sinks     []Sink

	frames     int
	seqBase    int // events persisted before the last Reset
	events     []phases.PhaseEvent
	feedback   []feedback.FeedbackItem
	analyses   []feedback.QualityAnalysis
	sinkErrors int
}

// NewSession creates a session. An empty id is replaced with a UUID.
func NewSession(id string, cfg Config, sinks ...Sink) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	return &Session{
		id:        id,
		extractor: biomech.NewExtractor(cfg.Extractor),
		detector:  phases.NewDetector(cfg.Detector),
		evaluator: feedback.NewEvaluator(),
		sinks:     sinks,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Phase returns the current serve phase.
func (s *Session) Phase() phases.Phase { return s.detector.CurrentPhase() }

// SetUserHeight updates the subject's height in metres; calibration is
// recomputed on the next frame with a visible torso.
func (s *Session) SetUserHeight(h *float64) {
	s.extractor.SetUserHeight(h)
}

// ProcessFrame runs one frame through every stage.
func (s *Session) ProcessFrame(frame pose.PoseFrame) FrameResult {
	s.frames++
	snap := s.extractor.Process(frame)
	res := FrameResult{Snapshot: snap}
	s.emit(func(k Sink) error { return k.RecordSnapshot(s.id, snap) })

	ev := s.detector.Update(snap)
	if ev == nil {
		return res
	}
	res.Event = ev
	s.recordEvent()

	switch ev.Phase {
	case phases.FollowThrough:
		if cycle, ok := s.detector.CurrentCycle(); ok {
			res.Feedback = s.evaluator.Evaluate(cycle)
			s.feedback = append(s.feedback, res.Feedback...)
			items := res.Feedback
			s.emit(func(k Sink) error { return k.RecordFeedback(s.id, items) })
		}
	case phases.Preparation:
		if cycle, ok := s.detector.ServeQualityAnalysis(); ok {
			qa := s.evaluator.Score(cycle)
			res.Analysis = &qa
			s.analyses = append(s.analyses, qa)
			s.emit(func(k Sink) error { return k.RecordAnalysis(s.id, qa) })
		}
	}
	return res
}

// recordEvent mirrors the detector's latest transition into the session and
// sinks, including the duration just backfilled on the previous event.
// Detector history is drained so it stays bounded.
func (s *Session) recordEvent() {
	if prev, seq, ok := s.detector.PreviousEvent(); ok {
		if seq < len(s.events) {
			s.events[seq] = prev
		}
		s.emit(func(k Sink) error { return k.RecordPhaseEvent(s.id, s.seqBase+seq, prev) })
	}

	history := s.detector.History()
	last := history[len(history)-1]
	seq := s.detector.LastEventSeq()
	s.events = append(s.events, last)
	s.emit(func(k Sink) error { return k.RecordPhaseEvent(s.id, s.seqBase+seq, last) })

	s.detector.DrainHistory()
}

func (s *Session) emit(fn func(Sink) error) {
	for _, k := range s.sinks {
		if err := fn(k); err != nil {
			s.sinkErrors++
			logf("session %s: sink error: %v", s.id, err)
		}
	}
}

// Reset returns every stage to its initial state and clears accumulated
// output. The user height and session ID are kept, and sink event sequence
// numbers continue from where they were so persisted events are not
// overwritten.
func (s *Session) Reset() {
	s.seqBase += s.detector.LastEventSeq() + 1
	s.extractor.Reset()
	s.detector.Reset()
	s.frames = 0
	s.events = nil
	s.feedback = nil
	s.analyses = nil
	s.sinkErrors = 0
}

// Summary returns copies of everything the session has produced.
func (s *Session) Summary() Summary {
	return Summary{
		SessionID:   s.id,
		Frames:      s.frames,
		Calibration: s.extractor.Calibration(),
		Events:      append([]phases.PhaseEvent(nil), s.events...),
		Feedback:    append([]feedback.FeedbackItem(nil), s.feedback...),
		Analyses:    append([]feedback.QualityAnalysis(nil), s.analyses...),
		SinkErrors:  s.sinkErrors,
	}
}
