package report

import (
	"fmt"

	"github.com/banshee-data/serve.report/internal/motion/biomech"
)

// Series is one plotted metric.
type Series struct {
	Name  string
	Unit  string
	Value func(biomech.MetricsSnapshot) *float64
}

// TimelineSeries are the metrics drawn on every timeline, in legend order.
var TimelineSeries = []Series{
	{Name: "Knee flexion", Unit: "deg", Value: biomech.MetricsSnapshot.KneeFlexion},
	{Name: "Hip-shoulder separation", Unit: "deg", Value: biomech.MetricsSnapshot.HipShoulderSeparation},
	{Name: "Wrist height", Unit: "m", Value: biomech.MetricsSnapshot.ContactHeight},
	{Name: "Wrist velocity", Unit: "m/s", Value: biomech.MetricsSnapshot.WristVelocity},
}

// Label is the legend text of s.
func (s Series) Label() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.Unit)
}

func timeLabel(ts float64) string {
	return fmt.Sprintf("%.3f", ts)
}
