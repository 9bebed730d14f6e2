package phases

import (
	"time"

	"github.com/banshee-data/serve.report/internal/config"
	"github.com/banshee-data/serve.report/internal/monitoring"
	"github.com/banshee-data/serve.report/internal/motion/biomech"
)

var logf = monitoring.Prefixed("phases")

// minEvaluationSamples is the number of windowed snapshots required before
// any transition is considered.
const minEvaluationSamples = 3

// DetectorConfig holds the transition thresholds.
type DetectorConfig struct {
	WindowSize    int // sliding window capacity
	RecentSamples int // samples used by trend and peak checks

	PreparationMinDuration time.Duration
	LoadingKneeDropDeg     float64 // knee angle decrease across the recent samples

	ContactVelocity      float64 // wrist speed that must be exceeded, m/s
	ContactHeight        float64 // wrist height that must be exceeded, m
	ContactPeakTolerance float64 // fraction below the recent max height still counted as peak

	ContactMinDuration         time.Duration
	FollowThroughDecayFraction float64 // fraction of peak velocity that must be undercut

	SettleVelocity float64 // wrist speed below which the player is back at rest, m/s
}

// DefaultDetectorConfig returns the built-in thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfigFromTuning(config.EmptyTuningConfig())
}

// DetectorConfigFromTuning builds a DetectorConfig from a loaded TuningConfig.
func DetectorConfigFromTuning(cfg *config.TuningConfig) DetectorConfig {
	return DetectorConfig{
		WindowSize:                 cfg.GetPhaseWindowSize(),
		RecentSamples:              cfg.GetPhaseRecentSamples(),
		PreparationMinDuration:     cfg.GetPreparationMinDuration(),
		LoadingKneeDropDeg:         cfg.GetLoadingKneeDropDeg(),
		ContactVelocity:            cfg.GetContactVelocityMps(),
		ContactHeight:              cfg.GetContactHeightM(),
		ContactPeakTolerance:       cfg.GetContactPeakTolerance(),
		ContactMinDuration:         cfg.GetContactMinDuration(),
		FollowThroughDecayFraction: cfg.GetFollowThroughDecayFraction(),
		SettleVelocity:             cfg.GetSettleVelocityMps(),
	}
}

// Detector is the serve phase state machine. It starts in Preparation and
// cycles indefinitely. A Detector serves one subject and is not safe for
// concurrent use.
type Detector struct {
	cfg DetectorConfig

	phase      Phase
	phaseStart float64
	started    bool // phaseStart is meaningful
	window     window
	peakVel    float64

	history []PhaseEvent
	seq     int // sequence number of history[0]

	loading   *PhaseEvent // entries of the cycle in progress
	contact   *PhaseEvent
	completed *ServeCycle // most recently finished cycle
}

// NewDetector creates a detector in Preparation with empty history.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.WindowSize < minEvaluationSamples {
		cfg.WindowSize = minEvaluationSamples
	}
	if cfg.RecentSamples < 2 {
		cfg.RecentSamples = 2
	}
	return &Detector{
		cfg:    cfg,
		phase:  Preparation,
		window: newWindow(cfg.WindowSize),
	}
}

// Config returns the detector configuration.
func (d *Detector) Config() DetectorConfig { return d.cfg }

// CurrentPhase returns the phase the detector is in.
func (d *Detector) CurrentPhase() Phase { return d.phase }

// WindowLen returns the number of snapshots in the sliding window.
func (d *Detector) WindowLen() int { return d.window.len() }

// PeakVelocity returns the highest wrist speed seen since the last
// Preparation entry.
func (d *Detector) PeakVelocity() float64 { return d.peakVel }

// History returns a copy of the retained phase events, oldest first.
func (d *Detector) History() []PhaseEvent {
	out := make([]PhaseEvent, len(d.history))
	copy(out, d.history)
	return out
}

// HistorySeq returns the sequence number of the first retained event.
// Sequence numbers count every event since the last Reset and are not
// affected by DrainHistory.
func (d *Detector) HistorySeq() int { return d.seq }

// DrainHistory removes and returns every event whose duration is final,
// that is all but the most recent one. Use it to bound memory in long
// sessions once the events have been persisted.
func (d *Detector) DrainHistory() []PhaseEvent {
	if len(d.history) < 2 {
		return nil
	}
	n := len(d.history) - 1
	out := make([]PhaseEvent, n)
	copy(out, d.history[:n])
	d.history = append(d.history[:0], d.history[n:]...)
	d.seq += n
	return out
}

// Update feeds one snapshot to the detector. It returns the transition
// event when the snapshot moved the detector to a new phase, or nil.
func (d *Detector) Update(s biomech.MetricsSnapshot) *PhaseEvent {
	d.window.push(s)
	if v := s.WristVelocity(); v != nil && *v > d.peakVel {
		d.peakVel = *v
	}
	if !d.started {
		d.phaseStart = s.Timestamp
		d.started = true
	}

	if d.window.len() < minEvaluationSamples {
		return nil
	}

	var next bool
	switch d.phase {
	case Preparation:
		next = d.shouldLoad(s)
	case Loading:
		next = d.shouldContact(s)
	case Contact:
		next = d.shouldFollowThrough(s)
	case FollowThrough:
		next = d.shouldSettle(s)
	}
	if !next {
		return nil
	}
	ev := d.transition(d.phase.Next(), s)
	return &ev
}

func (d *Detector) elapsed(ts float64) float64 { return ts - d.phaseStart }

func (d *Detector) shouldLoad(s biomech.MetricsSnapshot) bool {
	if d.elapsed(s.Timestamp) < d.cfg.PreparationMinDuration.Seconds() {
		return false
	}
	first, last, ok := endpoints(d.window.recent(d.cfg.RecentSamples), kneeFlexion)
	if !ok {
		return false
	}
	return first-last > d.cfg.LoadingKneeDropDeg
}

func (d *Detector) shouldContact(s biomech.MetricsSnapshot) bool {
	v, h := s.WristVelocity(), s.ContactHeight()
	if v == nil || h == nil {
		return false
	}
	if *v <= d.cfg.ContactVelocity || *h <= d.cfg.ContactHeight {
		return false
	}
	peak, ok := maxOf(d.window.recent(d.cfg.RecentSamples), contactHeight)
	if !ok {
		return false
	}
	return *h >= peak*(1-d.cfg.ContactPeakTolerance)
}

func (d *Detector) shouldFollowThrough(s biomech.MetricsSnapshot) bool {
	if d.elapsed(s.Timestamp) < d.cfg.ContactMinDuration.Seconds() {
		return false
	}
	v := s.WristVelocity()
	if v == nil || *v >= d.peakVel*d.cfg.FollowThroughDecayFraction {
		return false
	}
	first, last, ok := endpoints(d.window.recent(d.cfg.RecentSamples), contactHeight)
	if !ok {
		return false
	}
	return first > last
}

func (d *Detector) shouldSettle(s biomech.MetricsSnapshot) bool {
	v := s.WristVelocity()
	return v != nil && *v < d.cfg.SettleVelocity
}

// transition backfills the prior event's duration, appends the new event
// and updates cycle bookkeeping.
func (d *Detector) transition(to Phase, s biomech.MetricsSnapshot) PhaseEvent {
	if n := len(d.history); n > 0 {
		dur := s.Timestamp - d.history[n-1].Timestamp
		d.history[n-1].Duration = &dur
	}

	ev := PhaseEvent{Phase: to, Timestamp: s.Timestamp, Snapshot: s}
	d.history = append(d.history, ev)
	logf("%s -> %s at t=%.3fs (peak wrist %.2f)", d.phase, to, s.Timestamp, d.peakVel)

	switch to {
	case Loading:
		d.loading, d.contact = &ev, nil
	case Contact:
		d.contact = &ev
	case Preparation:
		if d.loading != nil && d.contact != nil {
			d.completed = &ServeCycle{Loading: *d.loading, Contact: *d.contact}
		}
		d.loading, d.contact = nil, nil
		d.peakVel = 0
	}

	d.phase = to
	d.phaseStart = s.Timestamp
	return ev
}

// PreviousEvent returns the event before the most recent one, which after a
// transition carries the just-backfilled duration.
func (d *Detector) PreviousEvent() (PhaseEvent, int, bool) {
	n := len(d.history)
	if n < 2 {
		return PhaseEvent{}, 0, false
	}
	return d.history[n-2], d.seq + n - 2, true
}

// LastEventSeq returns the sequence number of the most recent event, or -1.
func (d *Detector) LastEventSeq() int {
	return d.seq + len(d.history) - 1
}

// CurrentCycle returns the Loading and Contact entries of the serve in
// progress. ok is false until both have happened in this cycle.
func (d *Detector) CurrentCycle() (ServeCycle, bool) {
	if d.loading == nil || d.contact == nil {
		return ServeCycle{}, false
	}
	return ServeCycle{Loading: *d.loading, Contact: *d.contact}, true
}

// ServeQualityAnalysis returns the representative snapshots of the most
// recent complete serve. ok is false until one full four-phase cycle has
// been observed.
func (d *Detector) ServeQualityAnalysis() (ServeCycle, bool) {
	if d.completed == nil {
		return ServeCycle{}, false
	}
	return *d.completed, true
}

// Reset returns the detector to a freshly constructed state.
func (d *Detector) Reset() {
	d.phase = Preparation
	d.phaseStart = 0
	d.started = false
	d.window.clear()
	d.peakVel = 0
	d.history = nil
	d.seq = 0
	d.loading, d.contact, d.completed = nil, nil, nil
}
