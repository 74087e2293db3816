package stats

import (
	"errors"
	"math"
	"testing"

	"TraceSpectra/internal/model"
)

func TestPercentile_Policies(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	tests := []struct {
		q        float64
		policy   RoundingPolicy
		expected float64
	}{
		{0.9, ZeroBased, 30},
		{0.9, OneBasedPercent, 40},
		{0.5, ZeroBased, 20},
		{0.5, OneBasedPercent, 20},
		{0.99, ZeroBased, 30},
		{0.99, OneBasedPercent, 40},
		{0, ZeroBased, 10},
		{0, OneBasedPercent, 10},
		{1, ZeroBased, 40},
		{1, OneBasedPercent, 40},
	}
	for _, tt := range tests {
		got, err := Percentile(sorted, tt.q, tt.policy)
		if err != nil {
			t.Fatalf("Percentile(%v, %v) failed: %v", tt.q, tt.policy, err)
		}
		if got != tt.expected {
			t.Errorf("Percentile(%v, %v) = %v, want %v", tt.q, tt.policy, got, tt.expected)
		}
	}
}

func TestPercentile_OneBasedExactMultiples(t *testing.T) {
	// 90% of 10 elements must select the 9th element, not round below it.
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got, err := Percentile(sorted, 0.9, OneBasedPercent)
	if err != nil {
		t.Fatalf("Percentile failed: %v", err)
	}
	if got != 9 {
		t.Errorf("Expected 9, got %v", got)
	}
}

func TestPercentile_BoundsAndMonotonicity(t *testing.T) {
	sorted := Sorted([]float64{5, 3, 9, 1, 7, 2, 8})
	for _, policy := range []RoundingPolicy{ZeroBased, OneBasedPercent} {
		if v, _ := Percentile(sorted, 0, policy); v != sorted[0] {
			t.Errorf("%v: percentile(0) = %v, want min %v", policy, v, sorted[0])
		}
		if v, _ := Percentile(sorted, 1, policy); v != sorted[len(sorted)-1] {
			t.Errorf("%v: percentile(1) = %v, want max %v", policy, v, sorted[len(sorted)-1])
		}
		prev := math.Inf(-1)
		for q := 0.0; q <= 1.0; q += 0.05 {
			v, err := Percentile(sorted, q, policy)
			if err != nil {
				t.Fatalf("%v: Percentile(%v) failed: %v", policy, q, err)
			}
			if v < prev {
				t.Errorf("%v: percentile not monotone at q=%v", policy, q)
			}
			prev = v
		}
	}
}

func TestPercentile_Errors(t *testing.T) {
	if _, err := Percentile(nil, 0.5, ZeroBased); !errors.Is(err, ErrEmptySequence) {
		t.Errorf("Expected ErrEmptySequence, got %v", err)
	}
	for _, q := range []float64{-0.1, 1.5, math.NaN()} {
		if _, err := Percentile([]float64{1}, q, ZeroBased); !errors.Is(err, ErrInvalidQuantile) {
			t.Errorf("q=%v: expected ErrInvalidQuantile, got %v", q, err)
		}
	}
}

func TestParseRounding(t *testing.T) {
	if p, err := ParseRounding("one_based_percent"); err != nil || p != OneBasedPercent {
		t.Errorf("Expected OneBasedPercent, got %v (%v)", p, err)
	}
	if p, err := ParseRounding("zero_based"); err != nil || p != ZeroBased {
		t.Errorf("Expected ZeroBased, got %v (%v)", p, err)
	}
	if _, err := ParseRounding("nearest"); err == nil {
		t.Errorf("Expected error for unknown policy")
	}
}

func TestAverage(t *testing.T) {
	if _, err := Average(nil); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("Expected ErrDivisionByZero, got %v", err)
	}
	got, err := Average([]float64{1, 2, 3})
	if err != nil || got != 2.0 {
		t.Errorf("Average([1 2 3]) = %v, %v; want 2.0", got, err)
	}
}

func TestSortedDoesNotMutate(t *testing.T) {
	in := []float64{3, 1, 2}
	out := Sorted(in)
	if in[0] != 3 || out[0] != 1 || out[2] != 3 {
		t.Errorf("Unexpected Sorted behavior: in=%v out=%v", in, out)
	}
	if m, _ := Max(in); m != 3 {
		t.Errorf("Max = %v, want 3", m)
	}
}

func samples(pairs ...float64) []model.QueueSample {
	out := make([]model.QueueSample, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.QueueSample{Occupancy: int(pairs[i]), Time: pairs[i+1]})
	}
	return out
}

func TestTimeWeightedAverage(t *testing.T) {
	// occupancy 1 at t=0, 3 at t=1, 1 at t=3, 0 at t=4
	s := samples(1, 0, 3, 1, 1, 3, 0, 4)

	got, err := TimeWeightedAverage(s)
	if err != nil {
		t.Fatalf("TimeWeightedAverage failed: %v", err)
	}
	// (3*1 + 1*2 + 0*1) / 4
	if got != 1.25 {
		t.Errorf("TimeWeightedAverage = %v, want 1.25", got)
	}

	lb, err := TimeWeightedAverageLowerBound(s)
	if err != nil {
		t.Fatalf("TimeWeightedAverageLowerBound failed: %v", err)
	}
	// (1*1 + 3*2 + 1*1) / 4
	if lb != 2.0 {
		t.Errorf("TimeWeightedAverageLowerBound = %v, want 2.0", lb)
	}
}

func TestTimeWeightedAverage_Errors(t *testing.T) {
	if _, err := TimeWeightedAverage(samples(1, 0)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData for one sample, got %v", err)
	}
	if _, err := TimeWeightedAverage(samples(1, 2, 2, 1)); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData for unsorted samples, got %v", err)
	}
	if _, err := TimeWeightedAverage(samples(1, 2, 2, 2)); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("Expected ErrDivisionByZero for zero span, got %v", err)
	}
}

func TestOccupancyDistribution(t *testing.T) {
	s := samples(1, 0, 3, 1, 1, 3, 0, 4)
	dist, err := OccupancyDistribution(s)
	if err != nil {
		t.Fatalf("OccupancyDistribution failed: %v", err)
	}
	want := []OccupancyShare{{Occupancy: 0, Fraction: 0.25}, {Occupancy: 1, Fraction: 0.5}, {Occupancy: 3, Fraction: 0.25}}
	if len(dist) != len(want) {
		t.Fatalf("Expected %d shares, got %v", len(want), dist)
	}
	total := 0.0
	for i := range want {
		if dist[i] != want[i] {
			t.Errorf("Share %d: expected %+v, got %+v", i, want[i], dist[i])
		}
		total += dist[i].Fraction
	}
	if math.Abs(total-1) > 1e-12 {
		t.Errorf("Fractions should sum to 1, got %v", total)
	}
}

func TestMeanOccupancy(t *testing.T) {
	got, err := MeanOccupancy(samples(1, 0, 3, 1, 2, 2))
	if err != nil || got != 2 {
		t.Errorf("MeanOccupancy = %v, %v; want 2", got, err)
	}
}

func TestDescribe(t *testing.T) {
	r, err := Describe("fct", []float64{4, 1, 3, 2}, []float64{0.5, 0.9}, ZeroBased)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if r.Kind != "fct" || r.Count != 4 || r.Min != 1 || r.Max != 4 || r.Mean != 2.5 {
		t.Errorf("Unexpected report %+v", r)
	}
	if v, ok := r.Quantile(0.5); !ok || v != 2 {
		t.Errorf("Expected p50 = 2, got %v (%v)", v, ok)
	}
	if v, ok := r.Quantile(0.9); !ok || v != 3 {
		t.Errorf("Expected p90 = 3, got %v (%v)", v, ok)
	}
	if _, err := Describe("fct", nil, DefaultQuantiles, ZeroBased); !errors.Is(err, ErrEmptySequence) {
		t.Errorf("Expected ErrEmptySequence, got %v", err)
	}
}

func TestTransforms(t *testing.T) {
	toMillisAfterWarmup := Chain(NanosToMicros, WarmupOffset(1e6), Divide(1000))
	got := Apply([]float64{1.5e9, 2e9}, toMillisAfterWarmup)
	if got[0] != 500 || got[1] != 1000 {
		t.Errorf("Unexpected transformed values %v", got)
	}
	if Scale(2)(3) != 6 || Offset(-1)(3) != 2 {
		t.Errorf("Scale/Offset misbehave")
	}
	if Chain()(7) != 7 {
		t.Errorf("Empty chain should be the identity")
	}
}
