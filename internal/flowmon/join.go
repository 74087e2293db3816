package flowmon

import (
	"fmt"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/model"
)

// Predicate selects classifier records.
type Predicate func(model.ClassifierRecord) bool

// SourcePortIs matches flows sent from port.
func SourcePortIs(port uint16) Predicate {
	return func(r model.ClassifierRecord) bool {
		return r.SourcePort == port
	}
}

// FlowSet is a set of simulator flow ids.
type FlowSet map[string]struct{}

// Contains reports whether id is in the set.
func (s FlowSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Match returns the ids of the classifier records accepted by pred.
func Match(records []model.ClassifierRecord, pred Predicate) FlowSet {
	ids := make(FlowSet)
	for _, r := range records {
		if pred(r) {
			ids[r.FlowID] = struct{}{}
		}
	}
	return ids
}

// Classes splits flows into the foreground and background traffic classes.
type Classes struct {
	Foreground FlowSet
	Background FlowSet
}

// Classify splits the document's flows by the configured source ports.
func Classify(doc *Document, cfg config.ClassifierConfig) Classes {
	return Classes{
		Foreground: Match(doc.Classifier, SourcePortIs(cfg.ForegroundPort)),
		Background: Match(doc.Classifier, SourcePortIs(cfg.BackgroundPort)),
	}
}

// ClassCounts returns |foreground| and |background|.
func (c Classes) ClassCounts() (fg, bg int) {
	return len(c.Foreground), len(c.Background)
}

// Accounting selects how a completion time is derived from a stats record.
type Accounting int

const (
	// LastReceive uses the last receive timestamp itself, i.e. time since simulation start.
	LastReceive Accounting = iota
	// Elapsed uses last receive minus first transmit.
	Elapsed
)

// ParseAccounting maps a configuration value to an Accounting.
func ParseAccounting(s string) (Accounting, error) {
	switch s {
	case "last_receive", "":
		return LastReceive, nil
	case "elapsed":
		return Elapsed, nil
	}
	return 0, fmt.Errorf("unknown accounting %q", s)
}

// CompletionSamples returns one completion time per stats record whose flow id
// is in ids, in the stats table's order and unit.
func CompletionSamples(stats []model.FlowStatsRecord, ids FlowSet, acc Accounting) []float64 {
	var samples []float64
	for _, r := range stats {
		if !ids.Contains(r.FlowID) {
			continue
		}
		if acc == Elapsed {
			samples = append(samples, r.TimeLastRx-r.TimeFirstTx)
		} else {
			samples = append(samples, r.TimeLastRx)
		}
	}
	return samples
}
