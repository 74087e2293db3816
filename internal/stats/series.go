package stats

import (
	"fmt"
	"sort"

	"TraceSpectra/internal/model"
)

func checkSeries(samples []model.QueueSample) (float64, error) {
	if len(samples) < 2 {
		return 0, fmt.Errorf("%w: need at least 2 samples, got %d", ErrInsufficientData, len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].Time < samples[i-1].Time {
			return 0, fmt.Errorf("%w: timestamps decrease at sample %d", ErrInsufficientData, i)
		}
	}
	span := samples[len(samples)-1].Time - samples[0].Time
	if span == 0 {
		return 0, fmt.Errorf("series spans no time: %w", ErrDivisionByZero)
	}
	return span, nil
}

// TimeWeightedAverage returns sum(v[i] * (t[i] - t[i-1])) / (t[n-1] - t[0]):
// each occupancy is weighted by the interval that ends at it.
func TimeWeightedAverage(samples []model.QueueSample) (float64, error) {
	span, err := checkSeries(samples)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for i := 1; i < len(samples); i++ {
		sum += float64(samples[i].Occupancy) * (samples[i].Time - samples[i-1].Time)
	}
	return sum / span, nil
}

// TimeWeightedAverageLowerBound weights each occupancy by the interval that
// starts at it, i.e. the value held until the next sample.
func TimeWeightedAverageLowerBound(samples []model.QueueSample) (float64, error) {
	span, err := checkSeries(samples)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for i := 1; i < len(samples); i++ {
		sum += float64(samples[i-1].Occupancy) * (samples[i].Time - samples[i-1].Time)
	}
	return sum / span, nil
}

// OccupancyShare is the fraction of time a queue spent at one occupancy.
type OccupancyShare struct {
	Occupancy int
	Fraction  float64
}

// OccupancyDistribution returns, per occupancy value, the fraction of the
// series' time span attributed to it, ordered by occupancy. Intervals are
// attributed the same way as TimeWeightedAverage.
func OccupancyDistribution(samples []model.QueueSample) ([]OccupancyShare, error) {
	span, err := checkSeries(samples)
	if err != nil {
		return nil, err
	}
	freq := make(map[int]float64)
	for i := 1; i < len(samples); i++ {
		freq[samples[i].Occupancy] += (samples[i].Time - samples[i-1].Time) / span
	}
	out := make([]OccupancyShare, 0, len(freq))
	for occ, f := range freq {
		out = append(out, OccupancyShare{Occupancy: occ, Fraction: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Occupancy < out[j].Occupancy })
	return out, nil
}

// MeanOccupancy returns the unweighted mean of a series' occupancy samples.
func MeanOccupancy(samples []model.QueueSample) (float64, error) {
	xs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = float64(s.Occupancy)
	}
	return Average(xs)
}
