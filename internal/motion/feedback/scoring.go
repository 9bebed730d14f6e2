package feedback

// Quality scores per metric.
const (
	ScoreFull    = 100.0
	ScorePartial = 70.0
	ScoreLow     = 40.0
)

// TierScore collapses a severity onto the three score tiers: Excellent
// scores 100, Good 70, and Warning or Critical 40.
func TierScore(sev Severity) float64 {
	switch sev {
	case SeverityExcellent:
		return ScoreFull
	case SeverityGood:
		return ScorePartial
	default:
		return ScoreLow
	}
}

// Score returns the quality score of v. It is read off the same bands as
// the feedback text, so a value's score and severity always agree.
func (r Rule) Score(v float64) float64 {
	return TierScore(r.Classify(v).Severity)
}

// ScoredRules are the metrics that feed the quality analysis.
var ScoredRules = []Rule{
	KneeFlexionRule,
	HipShoulderSeparationRule,
	ContactHeightRule,
	WristVelocityRule,
}
