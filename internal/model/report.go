package model

import "time"

// QuantileValue is one order statistic of a report.
type QuantileValue struct {
	Quantile float64 `json:"quantile"`
	Value    float64 `json:"value"`
}

// Report is the scalar summary of a sample distribution. It is what the
// console emitter prints and what the API, publisher and ClickHouse sink ship.
type Report struct {
	RunID     string          `json:"run_id"`
	Kind      string          `json:"kind"`
	Unit      string          `json:"unit,omitempty"`
	Count     int             `json:"count"`
	Min       float64         `json:"min"`
	Max       float64         `json:"max"`
	Mean      float64         `json:"mean"`
	Quantiles []QuantileValue `json:"quantiles"`
	CreatedAt time.Time       `json:"created_at"`
}

// Quantile returns the value recorded for q, if present.
func (r *Report) Quantile(q float64) (float64, bool) {
	for _, qv := range r.Quantiles {
		if qv.Quantile == q {
			return qv.Value, true
		}
	}
	return 0, false
}
