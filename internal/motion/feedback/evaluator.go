package feedback

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/serve.report/internal/motion/biomech"
	"github.com/banshee-data/serve.report/internal/motion/phases"
)

// Evaluator turns phase-keyed metrics into feedback and quality scores.
// It holds no per-session state and is safe for concurrent use.
type Evaluator struct {
	// NewID generates item IDs. Defaults to random UUIDs.
	NewID func() string
}

// NewEvaluator returns an evaluator that assigns UUIDs to items.
func NewEvaluator() *Evaluator {
	return &Evaluator{NewID: func() string { return uuid.New().String() }}
}

// EvaluateMetric assesses a single value against rule. It returns nil when
// the value is unset.
func (e *Evaluator) EvaluateMetric(rule Rule, value *float64, ts float64) *FeedbackItem {
	if value == nil {
		return nil
	}
	v := *value
	band := rule.Classify(v)
	item := &FeedbackItem{
		ID:           e.newID(),
		Severity:     band.Severity,
		Category:     rule.Category,
		Message:      band.Describe(v),
		Suggestion:   band.Suggestion,
		CurrentValue: &v,
		Timestamp:    ts,
	}
	if band.Impact != "" {
		impact := band.Impact
		item.Impact = &impact
	}
	if rule.IdealRange != "" {
		ideal := rule.IdealRange
		item.IdealRange = &ideal
	}
	return item
}

// Score computes the quality analysis of a serve cycle. Loading quality
// averages knee flexion and hip-shoulder separation at Loading entry;
// contact quality averages contact height and wrist velocity at Contact
// entry; overall averages the two. Unset metrics are left out of averages.
func (e *Evaluator) Score(cycle phases.ServeCycle) QualityAnalysis {
	ld, ct := cycle.Loading.Snapshot, cycle.Contact.Snapshot

	loading := mean(
		scoreOf(KneeFlexionRule, ld.KneeFlexion()),
		scoreOf(HipShoulderSeparationRule, ld.HipShoulderSeparation()),
	)
	contact := mean(
		scoreOf(ContactHeightRule, ct.ContactHeight()),
		scoreOf(WristVelocityRule, ct.WristVelocity()),
	)
	return QualityAnalysis{
		LoadingQuality: loading,
		ContactQuality: contact,
		OverallQuality: mean(loading, contact),
		LoadingAt:      cycle.Loading.Timestamp,
		ContactAt:      cycle.Contact.Timestamp,
	}
}

// Evaluate produces the feedback for a serve cycle: the overall item first
// (when a score exists), then one item per measured metric ordered worst
// severity first. Items are stamped with the Contact entry time.
func (e *Evaluator) Evaluate(cycle phases.ServeCycle) []FeedbackItem {
	ld, ct := cycle.Loading.Snapshot, cycle.Contact.Snapshot
	ts := cycle.Contact.Timestamp

	var shoulderTurn *float64
	if ld.ShoulderRotation != nil {
		shoulderTurn = biomech.Float(math.Abs(*ld.ShoulderRotation))
	}

	candidates := []*FeedbackItem{
		e.EvaluateMetric(KneeFlexionRule, ld.KneeFlexion(), ts),
		e.EvaluateMetric(HipShoulderSeparationRule, ld.HipShoulderSeparation(), ts),
		e.EvaluateMetric(TorsoRotationRule, shoulderTurn, ts),
		e.EvaluateMetric(ContactHeightRule, ct.ContactHeight(), ts),
		e.EvaluateMetric(ElbowAngleRule, ct.RightElbowAngle, ts),
		e.EvaluateMetric(WristVelocityRule, ct.WristVelocity(), ts),
	}

	items := make([]FeedbackItem, 0, len(candidates)+1)
	for _, it := range candidates {
		if it != nil {
			items = append(items, *it)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Severity.Rank(), items[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return categoryRank(items[i].Category) < categoryRank(items[j].Category)
	})

	if overall := e.Score(cycle).OverallQuality; overall != nil {
		if it := e.EvaluateMetric(OverallRule, overall, ts); it != nil {
			items = append([]FeedbackItem{*it}, items...)
		}
	}
	return items
}

func (e *Evaluator) newID() string {
	if e.NewID == nil {
		return uuid.New().String()
	}
	return e.NewID()
}

func scoreOf(rule Rule, v *float64) *float64 {
	if v == nil {
		return nil
	}
	return biomech.Float(rule.Score(*v))
}

// mean averages the set values, or returns nil when none are set.
func mean(vals ...*float64) *float64 {
	set := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v != nil {
			set = append(set, *v)
		}
	}
	if len(set) == 0 {
		return nil
	}
	return biomech.Float(stat.Mean(set, nil))
}
