// Package report renders scoring results as charts, markdown and JSON.
package report

import (
	"bytes"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/hed1ad/gasguard/pkg/anomaly"
)

// Chart dimensions.
const (
	chartWidth  = 10 * vg.Inch
	chartHeight = 6 * vg.Inch
)

var (
	normalColor  = color.NRGBA{R: 0x1f, G: 0x4e, B: 0xd8, A: 0xb3}
	anomalyColor = color.NRGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xb3}
)

// LabelColor returns the colour used for l in every chart.
func LabelColor(l anomaly.Label) color.Color {
	if l == anomaly.Anomaly {
		return anomalyColor
	}
	return normalColor
}

// BarChart renders the count of readings per label as SVG.
func BarChart(c anomaly.Counts) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Normal vs anomalous readings"
	p.Y.Label.Text = "Readings"

	values := []struct {
		label anomaly.Label
		count int
	}{
		{anomaly.Normal, c.Normal},
		{anomaly.Anomaly, c.Anomaly},
	}
	for i, v := range values {
		bars, err := plotter.NewBarChart(plotter.Values{float64(v.count)}, vg.Points(80))
		if err != nil {
			return nil, errors.Wrap(err, "bar chart")
		}
		bars.Color = LabelColor(v.label)
		bars.LineStyle.Width = 0
		bars.XMin = float64(i)
		p.Add(bars)
	}
	p.NominalX(anomaly.Normal.String(), anomaly.Anomaly.String())
	p.Y.Min = 0
	if c.Total() == 0 {
		p.Y.Max = 1
	}

	return render(p)
}

// ScatterPlot renders delta time against hourly consumption, coloured by label, as SVG.
func ScatterPlot(points []anomaly.Point) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Anomalies vs Delta Time"
	p.X.Label.Text = "Delta Time (hours)"
	p.Y.Label.Text = "Hourly consumption variation"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	groups := map[anomaly.Label]plotter.XYs{}
	for _, pt := range points {
		groups[pt.Label] = append(groups[pt.Label], plotter.XY{X: pt.DeltaTime, Y: pt.Consumption})
	}

	for _, l := range []anomaly.Label{anomaly.Normal, anomaly.Anomaly} {
		xys := groups[l]
		if len(xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, errors.Wrap(err, "scatter plot")
		}
		s.GlyphStyle.Color = LabelColor(l)
		s.GlyphStyle.Radius = vg.Points(3)
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
		p.Legend.Add(l.String(), s)
	}
	if len(points) == 0 {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
	}

	return render(p)
}

func render(p *plot.Plot) ([]byte, error) {
	w, err := p.WriterTo(chartWidth, chartHeight, "svg")
	if err != nil {
		return nil, errors.Wrap(err, "create svg canvas")
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "render svg")
	}
	return buf.Bytes(), nil
}
