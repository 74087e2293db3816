package stats

import (
	"time"

	"TraceSpectra/internal/model"
)

// DefaultQuantiles are the tail quantiles reported for completion times.
var DefaultQuantiles = []float64{0.50, 0.90, 0.95, 0.99, 0.999}

// Describe summarizes xs into a report holding count, min, max, mean and the
// requested quantiles. xs does not need to be sorted.
func Describe(kind string, xs []float64, quantiles []float64, policy RoundingPolicy) (*model.Report, error) {
	if len(xs) == 0 {
		return nil, ErrEmptySequence
	}
	sorted := Sorted(xs)
	mean, err := Average(sorted)
	if err != nil {
		return nil, err
	}
	report := &model.Report{
		Kind:      kind,
		Count:     len(sorted),
		Min:       sorted[0],
		Max:       sorted[len(sorted)-1],
		Mean:      mean,
		Quantiles: make([]model.QuantileValue, 0, len(quantiles)),
		CreatedAt: time.Now().UTC(),
	}
	for _, q := range quantiles {
		v, err := Percentile(sorted, q, policy)
		if err != nil {
			return nil, err
		}
		report.Quantiles = append(report.Quantiles, model.QuantileValue{Quantile: q, Value: v})
	}
	return report, nil
}
