package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/serve.report/internal/motion/biomech"
	"github.com/banshee-data/serve.report/internal/motion/phases"
)

// missing is how echarts marks a gap in a line.
const missing = "-"

// RenderHTML writes an interactive timeline page of the session's metrics
// with a vertical marker at every phase transition.
func RenderHTML(w io.Writer, title string, snapshots []biomech.MetricsSnapshot, events []phases.PhaseEvent) error {
	labels := make([]string, len(snapshots))
	for i, s := range snapshots {
		labels[i] = timeLabel(s.Timestamp)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle(snapshots, events)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)", NameLocation: "middle", NameGap: 25}),
	)
	line.SetXAxis(labels)

	for i, series := range TimelineSeries {
		data := make([]opts.LineData, len(snapshots))
		for j, s := range snapshots {
			if v := series.Value(s); v != nil {
				data[j] = opts.LineData{Value: *v}
			} else {
				data[j] = opts.LineData{Value: missing}
			}
		}
		var seriesOpts []charts.SeriesOpts
		if i == 0 {
			seriesOpts = phaseMarkers(snapshots, labels, events)
		}
		line.AddSeries(series.Label(), data, seriesOpts...)
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(line)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render timeline: %w", err)
	}
	return nil
}

// phaseMarkers places each event on the first frame at or after its
// timestamp. Events after the last frame are dropped.
func phaseMarkers(snapshots []biomech.MetricsSnapshot, labels []string, events []phases.PhaseEvent) []charts.SeriesOpts {
	var out []charts.SeriesOpts
	for _, ev := range events {
		idx := markerIndex(snapshots, ev.Timestamp)
		if idx < 0 {
			continue
		}
		out = append(out, charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{
			Name:  string(ev.Phase),
			XAxis: labels[idx],
		}))
	}
	return out
}

func markerIndex(snapshots []biomech.MetricsSnapshot, ts float64) int {
	i := sort.Search(len(snapshots), func(i int) bool { return snapshots[i].Timestamp >= ts })
	if i == len(snapshots) {
		return -1
	}
	return i
}

func subtitle(snapshots []biomech.MetricsSnapshot, events []phases.PhaseEvent) string {
	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, string(ev.Phase))
	}
	s := fmt.Sprintf("frames=%d transitions=%d", len(snapshots), len(events))
	if len(names) > 0 {
		s += " " + strings.Join(names, " > ")
	}
	return s
}
