package emitter

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"TraceSpectra/internal/model"
)

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

func formatQuantile(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// PrintReport renders a report as a two-column table: each quantile, then max,
// average and count.
func PrintReport(w io.Writer, r *model.Report) {
	title := r.Kind
	if r.Unit != "" {
		title = fmt.Sprintf("%s (%s)", r.Kind, r.Unit)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Statistic", title})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, qv := range r.Quantiles {
		table.Append([]string{formatQuantile(qv.Quantile), formatValue(qv.Value)})
	}
	table.Append([]string{"max", formatValue(r.Max)})
	table.Append([]string{"avg", formatValue(r.Mean)})
	table.Append([]string{"count", strconv.Itoa(r.Count)})
	table.Render()
}

// PrintClassCounts renders the sizes of the foreground and background classes.
func PrintClassCounts(w io.Writer, fg, bg int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Class", "Flows"})
	table.Append([]string{"bg_flows", strconv.Itoa(bg)})
	table.Append([]string{"fg_flows", strconv.Itoa(fg)})
	table.Render()
}

// QueueAverage is one row of the busiest-queue table.
type QueueAverage struct {
	Source       string
	Device       int
	Port         int
	Samples      int
	Mean         float64
	TimeWeighted float64
	LowerBound   float64
}

// PrintQueueAverages renders the per-queue averages.
func PrintQueueAverages(w io.Writer, rows []QueueAverage) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Device", "Port", "Samples", "Mean", "Time-weighted", "Lower bound"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, r := range rows {
		table.Append([]string{
			strconv.Itoa(r.Device),
			strconv.Itoa(r.Port),
			strconv.Itoa(r.Samples),
			formatValue(r.Mean),
			formatValue(r.TimeWeighted),
			formatValue(r.LowerBound),
		})
	}
	table.Render()
}
