package analysis

import (
	"fmt"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/flowmon"
	"TraceSpectra/internal/model"
	"TraceSpectra/internal/stats"
	"TraceSpectra/internal/summary"
)

// Report kinds.
const (
	KindFCT        = "fct"
	KindQueueMeans = "queue_means"
	KindFlowmonFCT = "flowmon_fct"
)

// FlowCompletion summarizes the elapsed completion times of a flow summary.
// Flows lacking an enqueue or a receive are skipped and counted.
func FlowCompletion(entries []model.FlowEntry, cfg config.StatsConfig) (*model.Report, int, error) {
	policy, err := stats.ParseRounding(cfg.Rounding)
	if err != nil {
		return nil, 0, err
	}
	fcts, skipped := summary.CompletionTimes(entries)
	if len(fcts) == 0 {
		return nil, skipped, fmt.Errorf("no completed flows in summary: %w", stats.ErrEmptySequence)
	}
	report, err := stats.Describe(KindFCT, fcts, cfg.Quantiles, policy)
	if err != nil {
		return nil, skipped, err
	}
	report.Unit = "s"
	return report, skipped, nil
}

// FlowmonResult is the outcome of a flow monitor completion-time analysis.
type FlowmonResult struct {
	Foreground int
	Background int
	// Samples are sorted completion times. In CDF mode they are milliseconds
	// after warm-up, otherwise microseconds since simulation start.
	Samples []float64
	// Report is nil in CDF mode.
	Report *model.Report
}

// FlowmonQuantiles are the quantiles reported for flow monitor completion times.
var FlowmonQuantiles = []float64{0.50, 0.90, 0.99}

// FlowmonCompletion joins the classifier and stats tables of doc and
// summarizes the completion times of one traffic class.
func FlowmonCompletion(doc *flowmon.Document, cfg config.ClassifierConfig, background, cdf bool) (*FlowmonResult, error) {
	accounting, err := flowmon.ParseAccounting(cfg.Accounting)
	if err != nil {
		return nil, err
	}
	classes := flowmon.Classify(doc, cfg)
	res := &FlowmonResult{}
	res.Foreground, res.Background = classes.ClassCounts()

	ids := classes.Foreground
	if background {
		ids = classes.Background
	}
	micros := stats.Sorted(stats.Apply(flowmon.CompletionSamples(doc.Stats, ids, accounting), stats.NanosToMicros))
	if len(micros) == 0 {
		return res, fmt.Errorf("no completion samples for the selected class: %w", stats.ErrEmptySequence)
	}

	toMillisAfterWarmup := stats.Chain(stats.WarmupOffset(cfg.WarmupMicros), stats.MicrosToMillis)
	if cdf {
		res.Samples = stats.Apply(micros, toMillisAfterWarmup)
		return res, nil
	}
	res.Samples = micros
	report, err := stats.Describe(KindFlowmonFCT, stats.Apply(micros, toMillisAfterWarmup), FlowmonQuantiles, stats.OneBasedPercent)
	if err != nil {
		return nil, err
	}
	report.Unit = "ms"
	res.Report = report
	return res, nil
}
