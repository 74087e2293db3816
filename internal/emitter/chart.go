package emitter

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"TraceSpectra/internal/stats"
)

// Distribution is one labeled occupancy distribution of a chart.
type Distribution struct {
	Label  string
	Shares []stats.OccupancyShare
}

// WriteChart draws each distribution as a horizontal bar chart of
// "empirical probability per queue size". Bars are scaled so that the largest
// fraction across all distributions spans width characters.
func WriteChart(w io.Writer, dists []Distribution, width int) error {
	peak := 0.0
	for _, d := range dists {
		for _, s := range d.Shares {
			peak = math.Max(peak, s.Fraction)
		}
	}

	bw := bufio.NewWriter(w)
	for i, d := range dists {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "%s\n", d.Label)
		fmt.Fprintf(bw, "%8s | %-*s | %s\n", "qsize", width, "", "probability")
		for _, s := range d.Shares {
			bar := 0
			if peak > 0 {
				bar = int(math.Round(s.Fraction / peak * float64(width)))
			}
			fmt.Fprintf(bw, "%8d | %-*s | %.6f\n", s.Occupancy, width, strings.Repeat("#", bar), s.Fraction)
		}
	}
	return bw.Flush()
}

// WriteChartFile writes the chart to path.
func WriteChartFile(path string, dists []Distribution, width int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()
	if err := WriteChart(f, dists, width); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return f.Close()
}
