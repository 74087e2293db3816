package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrEmptySequence is returned when an order statistic is requested of no samples.
	ErrEmptySequence = errors.New("empty sequence")
	// ErrInvalidQuantile is returned for quantiles outside [0, 1].
	ErrInvalidQuantile = errors.New("quantile out of range [0, 1]")
	// ErrDivisionByZero is returned when a mean has no weight to divide by.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrInsufficientData is returned when a series is too short or not time-ordered.
	ErrInsufficientData = errors.New("insufficient data")
)

// RoundingPolicy selects how a quantile is mapped to an index of a sorted sequence.
type RoundingPolicy int

const (
	// ZeroBased picks index floor((n-1)*p).
	ZeroBased RoundingPolicy = iota
	// OneBasedPercent picks index floor((100p*n + 100p)/100) - 1, clamped to [0, n-1].
	OneBasedPercent
)

func (p RoundingPolicy) String() string {
	switch p {
	case ZeroBased:
		return "zero_based"
	case OneBasedPercent:
		return "one_based_percent"
	}
	return fmt.Sprintf("RoundingPolicy(%d)", int(p))
}

// ParseRounding maps a configuration value to a RoundingPolicy.
func ParseRounding(s string) (RoundingPolicy, error) {
	switch s {
	case "zero_based", "":
		return ZeroBased, nil
	case "one_based_percent":
		return OneBasedPercent, nil
	}
	return 0, fmt.Errorf("unknown rounding policy %q", s)
}

// Index returns the position of quantile p in a sorted sequence of length n.
func (p RoundingPolicy) Index(n int, q float64) (int, error) {
	if n <= 0 {
		return 0, ErrEmptySequence
	}
	if math.IsNaN(q) || q < 0 || q > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidQuantile, q)
	}
	var idx int
	switch p {
	case OneBasedPercent:
		// Quantiles are carried in millionths so that e.g. 0.9*10 does not
		// land just below an integer.
		pm := int64(math.Round(q * 1e6))
		idx = int((pm*int64(n)+pm)/1e6) - 1
	default:
		idx = int(math.Floor(float64(n-1) * q))
	}
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx, nil
}

// Sorted returns an ascending copy of xs.
func Sorted(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	sort.Float64s(out)
	return out
}

// Percentile returns the element of the ascending slice sorted at quantile q.
func Percentile(sorted []float64, q float64, policy RoundingPolicy) (float64, error) {
	idx, err := policy.Index(len(sorted), q)
	if err != nil {
		return 0, err
	}
	return sorted[idx], nil
}

// Average returns the arithmetic mean of xs.
func Average(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, fmt.Errorf("average of empty sequence: %w", ErrDivisionByZero)
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs)), nil
}

// Max returns the largest element of xs.
func Max(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmptySequence
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return m, nil
}
