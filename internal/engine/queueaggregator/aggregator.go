package queueaggregator

import (
	"errors"
	"fmt"
	"sort"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/factory"
	"TraceSpectra/internal/model"
)

// ModeName is the registry name of the queue-length mode.
const ModeName = "queue"

var (
	// ErrSequenceViolation is returned when a dequeue has no matching enqueue.
	ErrSequenceViolation = errors.New("queue sequence violation")
	// ErrOverlappingSources is returned when merged state tracks a source that
	// is already tracked here; occupancies of both sides would be wrong.
	ErrOverlappingSources = errors.New("queue state overlaps on a source")
)

func init() {
	factory.RegisterMode(ModeName, func(cfg *config.Config) (model.Accumulator, error) {
		return New(), nil
	})
}

// SequenceError reports an impossible event order on one trace source.
type SequenceError struct {
	Source string
	Time   float64
	Reason string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("%v: source %s at t=%v: %s", ErrSequenceViolation, e.Source, e.Time, e.Reason)
}

func (e *SequenceError) Unwrap() error {
	return ErrSequenceViolation
}

// Aggregator tracks the occupancy time series of every trace source.
// It has exactly one writer and is not safe for concurrent use.
type Aggregator struct {
	series    map[string]*model.QueueSeries
	occupancy map[string]int
	counters  model.EventCounters
}

// New creates an empty queue-length aggregator.
func New() *Aggregator {
	return &Aggregator{
		series:    make(map[string]*model.QueueSeries),
		occupancy: make(map[string]int),
	}
}

// Name returns the mode name.
func (a *Aggregator) Name() string {
	return ModeName
}

func (a *Aggregator) seriesFor(source string) *model.QueueSeries {
	s, ok := a.series[source]
	if !ok {
		s = &model.QueueSeries{Source: source}
		a.series[source] = s
	}
	return s
}

// Process applies one event. Enqueues and dequeues move the source's occupancy
// and append a sample; receives and drops only touch the global counters.
func (a *Aggregator) Process(ev *model.Event) error {
	switch ev.Type {
	case model.EventEnqueue:
		a.occupancy[ev.Source]++
		a.seriesFor(ev.Source).Append(a.occupancy[ev.Source], ev.Time)
	case model.EventDequeue:
		occ, seen := a.occupancy[ev.Source]
		if !seen {
			return &SequenceError{Source: ev.Source, Time: ev.Time, Reason: "dequeue before any enqueue"}
		}
		if occ == 0 {
			return &SequenceError{Source: ev.Source, Time: ev.Time, Reason: "dequeue from an empty queue"}
		}
		a.occupancy[ev.Source] = occ - 1
		a.seriesFor(ev.Source).Append(occ-1, ev.Time)
	}
	a.counters.Count(ev.Type)
	return nil
}

// Merge folds another queue-length aggregator into this one. Both sides must
// track disjoint sources.
func (a *Aggregator) Merge(other model.Accumulator) error {
	o, ok := other.(*Aggregator)
	if !ok {
		return fmt.Errorf("cannot merge %T into queue aggregator", other)
	}
	return a.mergeState(o.series, o.occupancy, o.counters)
}

func (a *Aggregator) mergeState(series map[string]*model.QueueSeries, occupancy map[string]int, counters model.EventCounters) error {
	for src := range occupancy {
		if _, dup := a.occupancy[src]; dup {
			return fmt.Errorf("%w: %s", ErrOverlappingSources, src)
		}
	}
	for src := range series {
		if _, dup := a.series[src]; dup {
			return fmt.Errorf("%w: %s", ErrOverlappingSources, src)
		}
	}
	for src, s := range series {
		a.series[src] = s.Clone()
	}
	for src, occ := range occupancy {
		a.occupancy[src] = occ
	}
	a.counters.Add(counters)
	return nil
}

// OrderDependentKeys returns the tracked sources in lexical order. The
// occupancy of a source depends on every earlier event of that source.
func (a *Aggregator) OrderDependentKeys() []string {
	keys := make([]string, 0, len(a.occupancy))
	for src := range a.occupancy {
		keys = append(keys, src)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a deep copy of the current state as a model.QueueSnapshot.
func (a *Aggregator) Snapshot() interface{} {
	series := make(map[string]*model.QueueSeries, len(a.series))
	for src, s := range a.series {
		series[src] = s.Clone()
	}
	occupancy := make(map[string]int, len(a.occupancy))
	for src, occ := range a.occupancy {
		occupancy[src] = occ
	}
	return model.QueueSnapshot{
		Name:      ModeName,
		Series:    series,
		Occupancy: occupancy,
		Counters:  a.counters,
	}
}

// Restore merges a previously taken model.QueueSnapshot into the current
// state. The snapshot must not share sources with the current state.
func (a *Aggregator) Restore(snapshot interface{}) error {
	snap, ok := snapshot.(model.QueueSnapshot)
	if !ok {
		return fmt.Errorf("invalid snapshot type for queue aggregator: expected model.QueueSnapshot, got %T", snapshot)
	}
	return a.mergeState(snap.Series, snap.Occupancy, snap.Counters)
}

// Counters returns the global event counts.
func (a *Aggregator) Counters() model.EventCounters {
	return a.counters
}

// Reset clears all series, occupancies and counters.
func (a *Aggregator) Reset() {
	a.series = make(map[string]*model.QueueSeries)
	a.occupancy = make(map[string]int)
	a.counters = model.EventCounters{}
}

// SourceCount returns the number of distinct trace sources seen.
func (a *Aggregator) SourceCount() int {
	return len(a.series)
}

// Occupancy returns the current occupancy of a source.
func (a *Aggregator) Occupancy(source string) int {
	return a.occupancy[source]
}

// Series returns a copy of the series recorded for a source.
func (a *Aggregator) Series(source string) (*model.QueueSeries, bool) {
	s, ok := a.series[source]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}
