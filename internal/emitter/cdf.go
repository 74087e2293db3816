package emitter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCDF writes the empirical CDF of an ascending sample slice as CSV rows
// of value and cumulative fraction.
func WriteCDF(w io.Writer, sorted []float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"value", "cdf"}); err != nil {
		return fmt.Errorf("failed to write CDF header: %w", err)
	}
	n := float64(len(sorted))
	for i, v := range sorted {
		row := []string{
			strconv.FormatFloat(v, 'g', -1, 64),
			strconv.FormatFloat(float64(i+1)/n, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CDF row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
