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

const flowFields = 9

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteFlows writes one line per flow, ordered by flow key:
// proto srcip dstip srcport dstport minEnqueue maxReceive enqueueCount receiveCount
func WriteFlows(w io.Writer, snap model.FlowSnapshot) error {
	bw := bufio.NewWriter(w)
	for _, e := range snap.Entries() {
		k, r := e.Key, e.Record
		_, err := fmt.Fprintf(bw, "%s %s %s %d %d %s %s %d %d\n",
			k.Protocol, k.SrcIP, k.DstIP, k.SrcPort, k.DstPort,
			formatFloat(r.MinEnqueue), formatFloat(r.MaxReceive), r.EnqueueCount, r.ReceiveCount)
		if err != nil {
			return fmt.Errorf("failed to write flow summary: %w", err)
		}
	}
	return bw.Flush()
}

// ReadFlows parses a flow summary written by WriteFlows.
func ReadFlows(r io.Reader) ([]model.FlowEntry, error) {
	var entries []model.FlowEntry
	err := tracefile.ScanLines(r, func(lineNo int, line string) error {
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			return nil
		}
		if len(tokens) != flowFields {
			return fmt.Errorf("line %d: expected %d fields, got %d", lineNo, flowFields, len(tokens))
		}
		entry, err := parseFlowTokens(tokens)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read flow summary: %w", err)
	}
	return entries, nil
}

func parseFlowTokens(tokens []string) (model.FlowEntry, error) {
	var e model.FlowEntry
	srcPort, err := strconv.ParseUint(tokens[3], 10, 16)
	if err != nil {
		return e, fmt.Errorf("bad source port %q", tokens[3])
	}
	dstPort, err := strconv.ParseUint(tokens[4], 10, 16)
	if err != nil {
		return e, fmt.Errorf("bad destination port %q", tokens[4])
	}
	minEnq, err := strconv.ParseFloat(tokens[5], 64)
	if err != nil {
		return e, fmt.Errorf("bad min enqueue time %q", tokens[5])
	}
	maxRecv, err := strconv.ParseFloat(tokens[6], 64)
	if err != nil {
		return e, fmt.Errorf("bad max receive time %q", tokens[6])
	}
	nEnq, err := strconv.ParseUint(tokens[7], 10, 64)
	if err != nil {
		return e, fmt.Errorf("bad enqueue count %q", tokens[7])
	}
	nRecv, err := strconv.ParseUint(tokens[8], 10, 64)
	if err != nil {
		return e, fmt.Errorf("bad receive count %q", tokens[8])
	}
	e.Key = model.FlowKey{
		Protocol: tokens[0],
		SrcIP:    tokens[1],
		DstIP:    tokens[2],
		SrcPort:  uint16(srcPort),
		DstPort:  uint16(dstPort),
	}
	e.Record = model.FlowRecord{
		MinEnqueue:   minEnq,
		MaxReceive:   maxRecv,
		EnqueueCount: nEnq,
		ReceiveCount: nRecv,
	}
	return e, nil
}

// CompletionTimes returns the elapsed completion time of every completed flow,
// and the number of flows skipped because they lack an enqueue or a receive.
func CompletionTimes(entries []model.FlowEntry) (fcts []float64, skipped int) {
	for _, e := range entries {
		if !e.Record.Completed() {
			skipped++
			continue
		}
		fcts = append(fcts, e.Record.Elapsed())
	}
	return fcts, skipped
}
