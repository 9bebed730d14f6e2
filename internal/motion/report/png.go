package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/serve.report/internal/motion/biomech"
)

var palette = []color.Color{
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
}

// WritePNG encodes a stacked static timeline, one panel per metric, as a
// PNG. Frames where a metric is unset are skipped. Returns the number of
// panels that had data.
func WritePNG(w io.Writer, title string, snapshots []biomech.MetricsSnapshot) (int, error) {
	rows := len(TimelineSeries)
	plots := make([][]*plot.Plot, rows)
	drawn := 0

	for i, series := range TimelineSeries {
		p := plot.New()
		if i == 0 {
			p.Title.Text = title
		}
		p.X.Label.Text = "Time (s)"
		p.Y.Label.Text = series.Label()

		pts := make(plotter.XYs, 0, len(snapshots))
		for _, s := range snapshots {
			if v := series.Value(s); v != nil {
				pts = append(pts, plotter.XY{X: s.Timestamp, Y: *v})
			}
		}
		if len(pts) > 0 {
			l, err := plotter.NewLine(pts)
			if err != nil {
				return drawn, fmt.Errorf("%s line: %w", series.Name, err)
			}
			l.Color = palette[i%len(palette)]
			l.Width = vg.Points(1)
			p.Add(l)
			drawn++
		}
		plots[i] = []*plot.Plot{p}
	}

	width, height := 14*vg.Inch, vg.Length(rows)*3*vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: rows, Cols: 1, PadY: vg.Points(8)}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return drawn, fmt.Errorf("write png: %w", err)
	}
	return drawn, nil
}
