package feedback

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/serve.report/internal/motion/biomech"
	"github.com/banshee-data/serve.report/internal/motion/phases"
)

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityExcellent.Rank(), SeverityGood.Rank())
	assert.Less(t, SeverityGood.Rank(), SeverityWarning.Rank())
	assert.Less(t, SeverityWarning.Rank(), SeverityCritical.Rank())
	assert.Greater(t, Severity("unknown").Rank(), SeverityCritical.Rank())
}

func TestRules_BandCoverage(t *testing.T) {
	for _, rule := range Rules {
		t.Run(string(rule.Category), func(t *testing.T) {
			require.Equal(t, SeverityCritical, rule.Fallback.Severity)
			for v := -100.0; v <= 300.0; v += 0.05 {
				matches := 0
				for _, b := range rule.Bands {
					if b.Contains(v) {
						matches++
					}
				}
				require.LessOrEqual(t, matches, 1, "overlapping bands at %v", v)

				band := rule.Classify(v)
				if matches == 0 {
					require.Equal(t, SeverityCritical, band.Severity, "value %v", v)
				}
				require.Contains(t, []Severity{SeverityExcellent, SeverityGood, SeverityWarning, SeverityCritical}, band.Severity)
			}
		})
	}
}

func TestRules_TiersAreDistinct(t *testing.T) {
	for _, rule := range Rules {
		seen := map[Severity]bool{}
		for _, b := range rule.Bands {
			assert.False(t, seen[b.Severity], "%s repeats %s", rule.Category, b.Severity)
			assert.NotEqual(t, SeverityCritical, b.Severity)
			assert.Less(t, b.Min, b.Max)
			seen[b.Severity] = true
			assert.Contains(t, b.Message, "%")
		}
		assert.Contains(t, rule.Fallback.Message, "%")
	}
}

func TestKneeFlexionRule(t *testing.T) {
	tests := []struct {
		value float64
		want  Severity
	}{
		{55, SeverityExcellent},
		{50, SeverityExcellent},
		{60, SeverityExcellent},
		{60.5, SeverityCritical},
		{45, SeverityGood},
		{35, SeverityWarning},
		{29.9, SeverityCritical},
		{-20, SeverityCritical},
		{math.NaN(), SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.value), func(t *testing.T) {
			assert.Equal(t, tt.want, KneeFlexionRule.Classify(tt.value).Severity)
		})
	}
}

func TestRule_Score(t *testing.T) {
	tests := []struct {
		rule  Rule
		value float64
		want  float64
	}{
		{KneeFlexionRule, 55, ScoreFull},
		{KneeFlexionRule, 60, ScoreFull},
		{KneeFlexionRule, 62, ScoreLow},
		{KneeFlexionRule, 45, ScorePartial},
		{KneeFlexionRule, 35, ScoreLow},
		{HipShoulderSeparationRule, 45, ScoreFull},
		{HipShoulderSeparationRule, 30, ScorePartial},
		{ContactHeightRule, 2.6, ScoreFull},
		{ContactHeightRule, 3.5, ScoreFull},
		{ContactHeightRule, 3.6, ScoreLow},
		{ContactHeightRule, 2.3, ScorePartial},
		{ContactHeightRule, 2.1, ScoreLow},
		{WristVelocityRule, 18, ScoreFull},
		{WristVelocityRule, 15, ScorePartial},
		{WristVelocityRule, 5, ScoreLow},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%v", tt.rule.Category, tt.value), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Score(tt.value))
		})
	}
}

func TestScoredRules_AgreeWithFeedback(t *testing.T) {
	for _, rule := range ScoredRules {
		t.Run(string(rule.Category), func(t *testing.T) {
			for v := -100.0; v <= 300.0; v += 0.05 {
				sev := rule.Classify(v).Severity
				score := rule.Score(v)
				switch sev {
				case SeverityExcellent:
					require.Equal(t, ScoreFull, score, "value %v", v)
				case SeverityGood:
					require.Equal(t, ScorePartial, score, "value %v", v)
				default:
					require.Equal(t, ScoreLow, score, "%s value %v", sev, v)
				}
			}
		})
	}
}

func TestEvaluator_OutOfRangeMetricsScoreLow(t *testing.T) {
	e := &Evaluator{NewID: fixedIDs()}
	items := e.Evaluate(cycleOf(
		biomech.MetricsSnapshot{RightKneeAngle: biomech.Float(62)},
		biomech.MetricsSnapshot{
			RightWristHeight:   biomech.Float(3.6),
			RightWristVelocity: biomech.Float(18),
		},
	))
	require.NotEmpty(t, items)
	overall := items[0]
	require.Equal(t, CategoryOverall, overall.Category)
	// Knee 62 and height 3.6 are past the elite bands: loading 40,
	// contact (40+100)/2 = 70, overall 55.
	require.NotNil(t, overall.CurrentValue)
	assert.InDelta(t, 55, *overall.CurrentValue, 1e-9)
	assert.Equal(t, SeverityWarning, overall.Severity)
	for _, it := range items[1:] {
		if it.Category == CategoryKneeFlexion || it.Category == CategoryContactHeight {
			assert.Equal(t, SeverityCritical, it.Severity, it.Category)
		}
	}
}

func cycleOf(loading, contact biomech.MetricsSnapshot) phases.ServeCycle {
	return phases.ServeCycle{
		Loading: phases.PhaseEvent{Phase: phases.Loading, Timestamp: loading.Timestamp, Snapshot: loading},
		Contact: phases.PhaseEvent{Phase: phases.Contact, Timestamp: contact.Timestamp, Snapshot: contact},
	}
}

func fixedIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("item-%d", n)
	}
}

func TestEvaluator_Score(t *testing.T) {
	e := NewEvaluator()

	cycle := cycleOf(
		biomech.MetricsSnapshot{
			Timestamp:        0.6,
			RightKneeAngle:   biomech.Float(55), // 100
			ShoulderRotation: biomech.Float(10),
			HipRotation:      biomech.Float(-20), // separation 30 -> 70
		},
		biomech.MetricsSnapshot{
			Timestamp:          1.0,
			RightWristHeight:   biomech.Float(2.3), // 70
			RightWristVelocity: biomech.Float(18),  // 100
		},
	)
	qa := e.Score(cycle)
	require.NotNil(t, qa.LoadingQuality)
	require.NotNil(t, qa.ContactQuality)
	require.NotNil(t, qa.OverallQuality)
	assert.InDelta(t, 85, *qa.LoadingQuality, 1e-9)
	assert.InDelta(t, 85, *qa.ContactQuality, 1e-9)
	assert.InDelta(t, 85, *qa.OverallQuality, 1e-9)
	assert.Equal(t, 0.6, qa.LoadingAt)
	assert.Equal(t, 1.0, qa.ContactAt)
}

func TestEvaluator_ScoreExcludesUnset(t *testing.T) {
	e := NewEvaluator()

	// Only knee flexion measured: loading is its score alone, not halved.
	qa := e.Score(cycleOf(
		biomech.MetricsSnapshot{RightKneeAngle: biomech.Float(40)},
		biomech.MetricsSnapshot{},
	))
	require.NotNil(t, qa.LoadingQuality)
	assert.Equal(t, ScorePartial, *qa.LoadingQuality)
	assert.Nil(t, qa.ContactQuality)
	require.NotNil(t, qa.OverallQuality)
	assert.Equal(t, ScorePartial, *qa.OverallQuality)

	qa = e.Score(phases.ServeCycle{})
	assert.Nil(t, qa.LoadingQuality)
	assert.Nil(t, qa.ContactQuality)
	assert.Nil(t, qa.OverallQuality)
}

func TestEvaluator_EvaluateMetric(t *testing.T) {
	e := &Evaluator{NewID: fixedIDs()}
	assert.Nil(t, e.EvaluateMetric(ContactHeightRule, nil, 1))

	item := e.EvaluateMetric(ContactHeightRule, biomech.Float(2.1), 1.25)
	require.NotNil(t, item)
	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, SeverityWarning, item.Severity)
	assert.Equal(t, CategoryContactHeight, item.Category)
	assert.Equal(t, "Low contact height of 2.10 m", item.Message)
	assert.NotEmpty(t, item.Suggestion)
	require.NotNil(t, item.Impact)
	require.NotNil(t, item.CurrentValue)
	assert.Equal(t, 2.1, *item.CurrentValue)
	require.NotNil(t, item.IdealRange)
	assert.Equal(t, 1.25, item.Timestamp)

	// Bands without an impact leave it unset.
	item = e.EvaluateMetric(ContactHeightRule, biomech.Float(2.3), 0)
	assert.Equal(t, SeverityGood, item.Severity)
	assert.Nil(t, item.Impact)
}

func TestEvaluator_Evaluate(t *testing.T) {
	e := &Evaluator{NewID: fixedIDs()}

	cycle := cycleOf(
		biomech.MetricsSnapshot{
			Timestamp:        0.6,
			RightKneeAngle:   biomech.Float(35), // warning
			ShoulderRotation: biomech.Float(-70),
			HipRotation:      biomech.Float(-20), // separation 50: excellent; turn 70: excellent
		},
		biomech.MetricsSnapshot{
			Timestamp:          1.0,
			RightWristHeight:   biomech.Float(1.5), // critical
			RightWristVelocity: biomech.Float(20),  // excellent
		},
	)
	items := e.Evaluate(cycle)

	got := make([]Category, len(items))
	for i, it := range items {
		got[i] = it.Category
		assert.Equal(t, 1.0, it.Timestamp)
	}
	want := []Category{
		CategoryOverall,
		CategoryContactHeight,         // critical
		CategoryKneeFlexion,           // warning
		CategoryHipShoulderSeparation, // excellent
		CategoryTorsoRotation,         // excellent
		CategoryWristVelocity,         // excellent
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("feedback order mismatch (-want +got):\n%s", diff)
	}

	// Loading (40+100)/2 = 70, contact (40+100)/2 = 70, overall 70.
	overall := items[0]
	require.NotNil(t, overall.CurrentValue)
	assert.InDelta(t, 70, *overall.CurrentValue, 1e-9)
	assert.Equal(t, SeverityGood, overall.Severity)
	assert.True(t, strings.HasSuffix(overall.Message, "70"))

	ids := map[string]bool{}
	for _, it := range items {
		ids[it.ID] = true
	}
	assert.Len(t, ids, len(items))
}

func TestEvaluator_EvaluateNothingMeasured(t *testing.T) {
	e := NewEvaluator()
	assert.Empty(t, e.Evaluate(phases.ServeCycle{}))
}

func TestEvaluator_DefaultIDsAreUUIDs(t *testing.T) {
	var e Evaluator
	item := e.EvaluateMetric(KneeFlexionRule, biomech.Float(55), 0)
	require.NotNil(t, item)
	assert.Len(t, item.ID, 36)
}
