package feedback

import (
	"fmt"
	"math"
)

// Band is one severity tier of a metric: values in [Min, Max) match, or
// [Min, Max] when IncludeMax is set. Message is a format string receiving
// the measured value.
type Band struct {
	Min, Max   float64
	IncludeMax bool
	Severity   Severity
	Message    string
	Suggestion string
	Impact     string
}

// Contains reports whether v falls in the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && (v < b.Max || (b.IncludeMax && v == b.Max))
}

// Rule is the ordered band table of one metric. Values that match no band
// fall through to Fallback, which is always Critical.
type Rule struct {
	Category   Category
	Unit       string
	IdealRange string
	Bands      []Band
	Fallback   Band
}

// Classify returns the first band containing v, or the fallback.
func (r Rule) Classify(v float64) Band {
	for _, b := range r.Bands {
		if b.Contains(v) {
			return b
		}
	}
	return r.Fallback
}

// Describe renders the band's message for v.
func (b Band) Describe(v float64) string {
	return fmt.Sprintf(b.Message, v)
}

var inf = math.Inf(1)

// Feedback band tables, elite reference ranges.
var (
	KneeFlexionRule = Rule{
		Category:   CategoryKneeFlexion,
		Unit:       "°",
		IdealRange: "50–60° knee bend",
		Bands: []Band{
			{Min: 50, Max: 60, IncludeMax: true, Severity: SeverityExcellent,
				Message:    "Excellent knee bend of %.0f° during loading",
				Suggestion: "Keep loading the legs this deeply on every serve",
				Impact:     "Full leg drive contributes up to 20% of racquet speed"},
			{Min: 40, Max: 50, Severity: SeverityGood,
				Message:    "Good knee bend of %.0f°",
				Suggestion: "Sit a little deeper into the trophy position",
				Impact:     "Another 5–10° of bend adds roughly 1–2 m/s at contact"},
			{Min: 30, Max: 40, Severity: SeverityWarning,
				Message:    "Shallow knee bend of %.0f°",
				Suggestion: "Bend both knees as the toss goes up and push up into the ball",
				Impact:     "Serving mostly with the arm costs 10–15% of potential speed"},
		},
		Fallback: Band{Severity: SeverityCritical,
			Message:    "Knee bend of %.0f° is outside the effective range",
			Suggestion: "Practise the knee bend without a ball: load, pause, drive up",
			Impact:     "Little or no leg drive; higher shoulder load"},
	}

	HipShoulderSeparationRule = Rule{
		Category:   CategoryHipShoulderSeparation,
		Unit:       "°",
		IdealRange: "40–60° separation",
		Bands: []Band{
			{Min: 40, Max: 60, IncludeMax: true, Severity: SeverityExcellent,
				Message:    "Excellent hip-shoulder separation of %.0f°",
				Suggestion: "Maintain this coil as you load",
				Impact:     "Trunk rotation is storing energy efficiently"},
			{Min: 30, Max: 40, Severity: SeverityGood,
				Message:    "Good hip-shoulder separation of %.0f°",
				Suggestion: "Turn the shoulders slightly further than the hips",
			},
			{Min: 20, Max: 30, Severity: SeverityWarning,
				Message:    "Limited hip-shoulder separation of %.0f°",
				Suggestion: "Point the front shoulder at the target during the toss",
				Impact:     "Reduced trunk contribution to serve speed"},
		},
		Fallback: Band{Severity: SeverityCritical,
			Message:    "Hip-shoulder separation of %.0f° is outside the effective range",
			Suggestion: "Drill shoulder turn against a fixed hip position",
			Impact:     "Power comes almost entirely from the arm"},
	}

	ContactHeightRule = Rule{
		Category:   CategoryContactHeight,
		Unit:       "m",
		IdealRange: "2.5–3.5 m",
		Bands: []Band{
			{Min: 2.5, Max: 3.5, IncludeMax: true, Severity: SeverityExcellent,
				Message:    "Excellent contact height of %.2f m",
				Suggestion: "Keep reaching up to the ball at full extension",
				Impact:     "High contact opens the service box angle"},
			{Min: 2.2, Max: 2.5, Severity: SeverityGood,
				Message:    "Good contact height of %.2f m",
				Suggestion: "Toss slightly higher and extend through the hitting shoulder",
			},
			{Min: 2.0, Max: 2.2, Severity: SeverityWarning,
				Message:    "Low contact height of %.2f m",
				Suggestion: "Hit the ball at the top of your reach, not as it drops",
				Impact:     "Lower contact narrows the margin over the net"},
		},
		Fallback: Band{Severity: SeverityCritical,
			Message:    "Contact height of %.2f m is outside the effective range",
			Suggestion: "Check the toss placement and arm extension at contact",
			Impact:     "Serve trajectory is forced flat into the net"},
	}

	WristVelocityRule = Rule{
		Category:   CategoryWristVelocity,
		Unit:       "m/s",
		IdealRange: "18–40 m/s",
		Bands: []Band{
			{Min: 18, Max: 40, IncludeMax: true, Severity: SeverityExcellent,
				Message:    "Excellent wrist speed of %.1f m/s at contact",
				Suggestion: "Keep the arm loose to maintain this racquet speed",
				Impact:     "Racquet-head speed is in the elite range"},
			{Min: 14, Max: 18, Severity: SeverityGood,
				Message:    "Good wrist speed of %.1f m/s",
				Suggestion: "Let the racquet drop further behind the back before swinging up",
			},
			{Min: 10, Max: 14, Severity: SeverityWarning,
				Message:    "Low wrist speed of %.1f m/s",
				Suggestion: "Accelerate through contact and relax the grip",
				Impact:     "Serve speed is limited by the swing"},
		},
		Fallback: Band{Severity: SeverityCritical,
			Message:    "Wrist speed of %.1f m/s is outside the effective range",
			Suggestion: "Work on a continuous swing from the trophy position",
			Impact:     "Little pace is transferred to the ball"},
	}

	ElbowAngleRule = Rule{
		Category:   CategoryElbowAngle,
		Unit:       "°",
		IdealRange: "≥165° at contact",
		Bands: []Band{
			{Min: 165, Max: inf, Severity: SeverityExcellent,
				Message:    "Hitting arm fully extended at %.0f°",
				Suggestion: "Keep reaching up through the ball"},
			{Min: 150, Max: 165, Severity: SeverityGood,
				Message:    "Hitting arm nearly extended at %.0f°",
				Suggestion: "Reach a little higher to straighten the arm at contact"},
			{Min: 135, Max: 150, Severity: SeverityWarning,
				Message:    "Bent hitting arm at contact (%.0f°)",
				Suggestion: "Make contact at the top of your reach",
				Impact:     "A bent arm lowers the contact point"},
		},
		Fallback: Band{Severity: SeverityCritical,
			Message:    "Hitting arm strongly bent at contact (%.0f°)",
			Suggestion: "Let the ball come to full arm extension before striking",
			Impact:     "Higher elbow load and lower contact"},
	}

	TorsoRotationRule = Rule{
		Category:   CategoryTorsoRotation,
		Unit:       "°",
		IdealRange: "60–100° shoulder turn",
		Bands: []Band{
			{Min: 60, Max: 100, IncludeMax: true, Severity: SeverityExcellent,
				Message:    "Excellent shoulder turn of %.0f° in the loading phase",
				Suggestion: "Keep turning the back towards the net"},
			{Min: 45, Max: 60, Severity: SeverityGood,
				Message:    "Good shoulder turn of %.0f°",
				Suggestion: "Rotate the shoulders a little further during the toss"},
			{Min: 30, Max: 45, Severity: SeverityWarning,
				Message:    "Limited shoulder turn of %.0f°",
				Suggestion: "Start sideways and turn the shoulders past the baseline",
				Impact:     "Less trunk rotation available for the swing"},
		},
		Fallback: Band{Severity: SeverityCritical,
			Message:    "Shoulder turn of %.0f° is outside the effective range",
			Suggestion: "Check the stance and shoulder alignment at the start of the serve"},
	}

	OverallRule = Rule{
		Category:   CategoryOverall,
		Unit:       "",
		IdealRange: "85–100",
		Bands: []Band{
			{Min: 85, Max: inf, Severity: SeverityExcellent,
				Message:    "Excellent serve, quality score %.0f",
				Suggestion: "Repeat this motion and build consistency"},
			{Min: 70, Max: 85, Severity: SeverityGood,
				Message:    "Solid serve, quality score %.0f",
				Suggestion: "Focus on the lowest-rated item below"},
			{Min: 50, Max: 70, Severity: SeverityWarning,
				Message:    "Serve needs work, quality score %.0f",
				Suggestion: "Address the warnings below one at a time"},
		},
		Fallback: Band{Severity: SeverityCritical,
			Message:    "Serve mechanics need attention, quality score %.0f",
			Suggestion: "Start with the critical items below"},
	}
)

// Rules lists every metric feedback table.
var Rules = []Rule{
	KneeFlexionRule,
	HipShoulderSeparationRule,
	TorsoRotationRule,
	ContactHeightRule,
	ElbowAngleRule,
	WristVelocityRule,
	OverallRule,
}
