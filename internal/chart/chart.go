// Package chart renders the pipeline's bar charts with gonum/plot.
package chart

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
)

// SkyBlue is the default bar fill.
var SkyBlue = color.RGBA{R: 135, G: 206, B: 235, A: 255}

// Bar describes one bar chart. Labels and Values are parallel.
type Bar struct {
	Title  string
	XLabel string
	YLabel string
	Legend string

	Labels []string
	Values []float64

	// Width and Height default to 10x6 inches.
	Width, Height vg.Length
	Color         color.Color
}

// Render draws b and saves it to path. The image format follows the file
// extension (.png, .svg, .pdf, ...). The parent directory must exist.
func Render(path string, b Bar) error {
	if len(b.Labels) != len(b.Values) {
		return fmt.Errorf("chart: %d labels for %d values", len(b.Labels), len(b.Values))
	}

	p := plot.New()
	p.Title.Text = b.Title
	p.X.Label.Text = b.XLabel
	p.Y.Label.Text = b.YLabel

	if len(b.Values) > 0 {
		w := vg.Points(20)
		bars, err := plotter.NewBarChart(plotter.Values(b.Values), w)
		if err != nil {
			return fmt.Errorf("chart: %w", err)
		}
		bars.Color = b.Color
		if bars.Color == nil {
			bars.Color = SkyBlue
		}
		bars.LineStyle.Width = 0
		p.Add(bars)
		p.Y.Min = 0
		if b.Legend != "" {
			p.Legend.Add(b.Legend, bars)
			p.Legend.Top = true
		}
		p.NominalX(b.Labels...)
	}

	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YTop

	width, height := b.Width, b.Height
	if width == 0 {
		width = 10 * vg.Inch
	}
	if height == 0 {
		height = 6 * vg.Inch
	}
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("chart: save %s: %w", path, err)
	}
	return nil
}
