package summary

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"TraceSpectra/internal/model"
	"TraceSpectra/pkg/tracefile"
)

// WriteQueues writes one line per source, ordered by source id:
// sourceId [occ, ...] [t, ...]
// Each series is written sorted by time.
func WriteQueues(w io.Writer, snap model.QueueSnapshot) error {
	bw := bufio.NewWriter(w)
	for _, src := range snap.Sources() {
		s := snap.Series[src].Sorted()
		occ := make([]string, len(s.Samples))
		ts := make([]string, len(s.Samples))
		for i, smp := range s.Samples {
			occ[i] = strconv.Itoa(smp.Occupancy)
			ts[i] = formatFloat(smp.Time)
		}
		_, err := fmt.Fprintf(bw, "%s [%s] [%s]\n", src, strings.Join(occ, ", "), strings.Join(ts, ", "))
		if err != nil {
			return fmt.Errorf("failed to write queue summary: %w", err)
		}
	}
	return bw.Flush()
}

// ReadQueues parses a queue summary. Besides the two-list form written by
// WriteQueues it accepts a single combined list holding all occupancies
// followed by all timestamps.
func ReadQueues(r io.Reader) ([]*model.QueueSeries, error) {
	var out []*model.QueueSeries
	err := tracefile.ScanLines(r, func(lineNo int, line string) error {
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			return nil
		}
		s, err := parseQueueTokens(tokens)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read queue summary: %w", err)
	}
	return out, nil
}

func parseQueueTokens(tokens []string) (*model.QueueSeries, error) {
	var values []float64
	for _, tok := range tokens[1:] {
		tok = strings.NewReplacer("[", "", "]", "", ",", "").Replace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q", tok)
		}
		values = append(values, v)
	}
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("source %s: odd number of values (%d)", tokens[0], len(values))
	}

	half := len(values) / 2
	s := &model.QueueSeries{Source: tokens[0]}
	for i := 0; i < half; i++ {
		occ := values[i]
		if occ < 0 || occ != float64(int(occ)) {
			return nil, fmt.Errorf("source %s: occupancy %v is not a non-negative integer", tokens[0], occ)
		}
		s.Append(int(occ), values[half+i])
	}
	return s, nil
}

// ParseSourceID extracts the device and port numbers from a trace source id
// such as "/NodeList/3/DeviceList/1/".
func ParseSourceID(src string) (device, port int, err error) {
	parts := strings.Split(src, "/")
	if len(parts) < 5 {
		return 0, 0, fmt.Errorf("malformed source id %q", src)
	}
	device, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed device in source id %q", src)
	}
	port, err = strconv.Atoi(parts[4])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed port in source id %q", src)
	}
	return device, port, nil
}
