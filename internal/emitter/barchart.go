package emitter

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	chartWidth  = 20 * vg.Centimeter
	chartHeight = 12 * vg.Centimeter
)

// newBarChart builds a grouped bar chart of "empirical probability per queue
// size", one bar group per occupancy and one bar per distribution.
func newBarChart(dists []Distribution) (*plot.Plot, error) {
	if len(dists) == 0 {
		return nil, fmt.Errorf("no distributions to plot")
	}

	seen := make(map[int]bool)
	for _, d := range dists {
		for _, s := range d.Shares {
			seen[s.Occupancy] = true
		}
	}
	sizes := make([]int, 0, len(seen))
	for occ := range seen {
		sizes = append(sizes, occ)
	}
	sort.Ints(sizes)
	column := make(map[int]int, len(sizes))
	names := make([]string, len(sizes))
	for i, occ := range sizes {
		column[occ] = i
		names[i] = strconv.Itoa(occ)
	}

	p := plot.New()
	p.Title.Text = "Queue occupancy distribution"
	p.X.Label.Text = "queue size"
	p.Y.Label.Text = "empirical probability"
	p.Legend.Top = true

	barWidth := vg.Points(40) / vg.Length(len(dists))
	for i, d := range dists {
		values := make(plotter.Values, len(sizes))
		for _, s := range d.Shares {
			values[column[s.Occupancy]] = s.Fraction
		}
		bars, err := plotter.NewBarChart(values, barWidth)
		if err != nil {
			return nil, fmt.Errorf("failed to build bars for %s: %w", d.Label, err)
		}
		bars.LineStyle.Width = 0
		bars.Color = plotutil.Color(i)
		bars.Offset = barWidth * vg.Length(2*i-len(dists)+1) / 2
		p.Add(bars)
		p.Legend.Add(d.Label, bars)
	}
	p.NominalX(names...)
	return p, nil
}

// WriteBarChart renders the distributions as a PNG image to w.
func WriteBarChart(w io.Writer, dists []Distribution) error {
	p, err := newBarChart(dists)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(chartWidth, chartHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}

// WriteBarChartFile saves the distributions as an image; the format follows
// the extension of path (".png" for the queue summary).
func WriteBarChartFile(path string, dists []Distribution) error {
	p, err := newBarChart(dists)
	if err != nil {
		return err
	}
	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return nil
}
