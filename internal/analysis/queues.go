package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/charmbracelet/log"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/emitter"
	"TraceSpectra/internal/model"
	"TraceSpectra/internal/stats"
	"TraceSpectra/internal/summary"
)

// QueueResult is the outcome of a queue summary analysis.
type QueueResult struct {
	// Busiest holds the top-K series by mean occupancy, busiest first.
	Busiest       []emitter.QueueAverage
	Distributions []emitter.Distribution
	// Means summarizes the mean occupancy of every selected series.
	Means *model.Report
}

type candidate struct {
	series *model.QueueSeries
	avg    emitter.QueueAverage
}

// QueueOccupancy selects the series of devices in [lower, upper), ranks them
// by mean occupancy and computes time-weighted averages and occupancy
// distributions for the busiest ones.
func QueueOccupancy(series []*model.QueueSeries, lower, upper int, cfg *config.Config) (*QueueResult, error) {
	policy, err := stats.ParseRounding(cfg.Stats.Rounding)
	if err != nil {
		return nil, err
	}

	var candidates []candidate
	for _, s := range series {
		device, port, err := summary.ParseSourceID(s.Source)
		if err != nil {
			return nil, err
		}
		if device < lower || device >= upper || len(s.Samples) == 0 {
			continue
		}
		sorted := s.Sorted()
		mean, err := stats.MeanOccupancy(sorted.Samples)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate{
			series: sorted,
			avg: emitter.QueueAverage{
				Source:  s.Source,
				Device:  device,
				Port:    port,
				Samples: len(sorted.Samples),
				Mean:    mean,
			},
		})
	}
	if len(candidates) == 0 {
		return nil, stats.ErrEmptySequence
	}

	means := make([]float64, len(candidates))
	for i, c := range candidates {
		means[i] = c.avg.Mean
	}
	report, err := stats.Describe(KindQueueMeans, means, cfg.Stats.Quantiles, policy)
	if err != nil {
		return nil, err
	}
	report.Unit = "packets"

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].avg.Mean > candidates[j].avg.Mean
	})
	if len(candidates) > cfg.Queue.TopK {
		candidates = candidates[:cfg.Queue.TopK]
	}

	res := &QueueResult{Means: report}
	for i, c := range candidates {
		avg := c.avg
		avg.TimeWeighted, avg.LowerBound = math.NaN(), math.NaN()
		if twa, err := stats.TimeWeightedAverage(c.series.Samples); err == nil {
			avg.TimeWeighted = twa
		} else {
			log.Warnf("No time-weighted average for %s: %v", c.series.Source, err)
		}
		if lb, err := stats.TimeWeightedAverageLowerBound(c.series.Samples); err == nil {
			avg.LowerBound = lb
		}
		res.Busiest = append(res.Busiest, avg)

		if shares, err := stats.OccupancyDistribution(c.series.Samples); err == nil {
			res.Distributions = append(res.Distributions, emitter.Distribution{
				Label:  queueLabel(i, c.series.Source),
				Shares: shares,
			})
		}
	}
	return res, nil
}

func queueLabel(rank int, source string) string {
	return fmt.Sprintf("q%d %s", rank+1, source)
}
