// Package feedback maps serve metrics onto elite reference bands to produce
// severity-ranked FeedbackItems and 0–100 quality scores.
//
// All boundaries live in declarative tables (bands.go, scoring.go); the
// evaluator itself has no per-metric branching.
package feedback

// Severity ranks an assessment, best first.
type Severity string

const (
	// SeverityExcellent indicates the metric is inside the elite band
	SeverityExcellent Severity = "excellent"
	// SeverityGood indicates the metric is close to the elite band
	SeverityGood Severity = "good"
	// SeverityWarning indicates the metric needs attention
	SeverityWarning Severity = "warning"
	// SeverityCritical indicates the metric is far outside the reference range
	SeverityCritical Severity = "critical"
)

// Rank orders severities by decreasing quality: Excellent is 0, Critical 3.
// Unknown values rank after Critical.
func (s Severity) Rank() int {
	switch s {
	case SeverityExcellent:
		return 0
	case SeverityGood:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	}
	return 4
}

// Category is the aspect of the serve an item assesses.
type Category string

const (
	CategoryKneeFlexion           Category = "knee-flexion"
	CategoryHipShoulderSeparation Category = "hip-shoulder-separation"
	CategoryContactHeight         Category = "contact-height"
	CategoryWristVelocity         Category = "wrist-velocity"
	CategoryElbowAngle            Category = "elbow-angle"
	CategoryTorsoRotation         Category = "torso-rotation"
	CategoryOverall               Category = "overall"
)

// categoryOrder breaks severity ties when ranking items.
var categoryOrder = []Category{
	CategoryOverall,
	CategoryKneeFlexion,
	CategoryHipShoulderSeparation,
	CategoryTorsoRotation,
	CategoryContactHeight,
	CategoryElbowAngle,
	CategoryWristVelocity,
}

func categoryRank(c Category) int {
	for i, cat := range categoryOrder {
		if cat == c {
			return i
		}
	}
	return len(categoryOrder)
}

// FeedbackItem is one human-facing assessment of a metric.
type FeedbackItem struct {
	ID           string   `json:"id"`
	Severity     Severity `json:"severity"`
	Category     Category `json:"category"`
	Message      string   `json:"message"`
	Suggestion   string   `json:"suggestion"`
	Impact       *string  `json:"impact,omitempty"`
	CurrentValue *float64 `json:"current_value,omitempty"`
	IdealRange   *string  `json:"ideal_range,omitempty"`
	Timestamp    float64  `json:"timestamp"`
}

// QualityAnalysis summarises one completed serve. A score is nil when none
// of its metrics were measured.
type QualityAnalysis struct {
	LoadingQuality *float64 `json:"loading_quality,omitempty"`
	ContactQuality *float64 `json:"contact_quality,omitempty"`
	OverallQuality *float64 `json:"overall_quality,omitempty"`
	LoadingAt      float64  `json:"loading_at"`
	ContactAt      float64  `json:"contact_at"`
}
