package flowaggregator

import (
	"errors"
	"fmt"
	"math"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/factory"
	"TraceSpectra/internal/model"
)

// ModeName is the registry name of the flow-completion mode.
const ModeName = "flow"

var (
	// ErrDropObserved is returned for drop events when drops are configured as fatal.
	ErrDropObserved = errors.New("drop event observed")
	// ErrMissingFlowRecord is returned for a dequeue or receive of a flow that
	// was never enqueued, when missing records are configured as fatal.
	ErrMissingFlowRecord = errors.New("missing flow record")
)

func init() {
	factory.RegisterMode(ModeName, func(cfg *config.Config) (model.Accumulator, error) {
		return New(Options{
			FailOnDrop:          cfg.FailOnDrop(ModeName),
			FailOnMissingRecord: cfg.Runner.MissingFlowRecord == "fail",
		}), nil
	})
}

// Options selects which irregular events abort a run.
type Options struct {
	FailOnDrop bool
	// FailOnMissingRecord rejects dequeues and receives of flows without an
	// enqueue. Otherwise a receive creates the record with a +Inf MinEnqueue.
	FailOnMissingRecord bool
}

// NewRecord returns a record whose bounds are the sentinels +Inf/-Inf, so that
// the first observed enqueue and receive always replace them.
func NewRecord() *model.FlowRecord {
	return &model.FlowRecord{
		MinEnqueue: math.Inf(1),
		MaxReceive: math.Inf(-1),
	}
}

// MergeRecord folds src into dst.
func MergeRecord(dst *model.FlowRecord, src model.FlowRecord) {
	dst.MinEnqueue = math.Min(dst.MinEnqueue, src.MinEnqueue)
	dst.MaxReceive = math.Max(dst.MaxReceive, src.MaxReceive)
	dst.EnqueueCount += src.EnqueueCount
	dst.ReceiveCount += src.ReceiveCount
}

// Aggregator accumulates per-flow completion statistics keyed by 5-tuple.
// It has exactly one writer and is not safe for concurrent use.
type Aggregator struct {
	flows    map[model.FlowKey]*model.FlowRecord
	counters model.EventCounters
	opts     Options
}

// New creates an empty flow-completion aggregator.
func New(opts Options) *Aggregator {
	return &Aggregator{
		flows: make(map[model.FlowKey]*model.FlowRecord),
		opts:  opts,
	}
}

// Name returns the mode name.
func (a *Aggregator) Name() string {
	return ModeName
}

// record returns the flow's record, creating it on first reference.
func (a *Aggregator) record(key model.FlowKey) *model.FlowRecord {
	rec, ok := a.flows[key]
	if !ok {
		rec = NewRecord()
		a.flows[key] = rec
	}
	return rec
}

// Process applies one event. Enqueues and receives update the flow's record;
// dequeues and drops only touch the global counters.
func (a *Aggregator) Process(ev *model.Event) error {
	if ev.Type == model.EventDequeue || ev.Type == model.EventReceive {
		if err := a.checkEnqueued(ev); err != nil {
			return err
		}
	}
	a.counters.Count(ev.Type)
	switch ev.Type {
	case model.EventEnqueue:
		rec := a.record(ev.Flow)
		rec.MinEnqueue = math.Min(rec.MinEnqueue, ev.Time)
		rec.EnqueueCount++
	case model.EventReceive:
		rec := a.record(ev.Flow)
		rec.MaxReceive = math.Max(rec.MaxReceive, ev.Time)
		rec.ReceiveCount++
	case model.EventDrop:
		if a.opts.FailOnDrop {
			return fmt.Errorf("%w: flow %v at t=%v", ErrDropObserved, ev.Flow, ev.Time)
		}
	}
	return nil
}

func (a *Aggregator) checkEnqueued(ev *model.Event) error {
	if !a.opts.FailOnMissingRecord {
		return nil
	}
	if rec, ok := a.flows[ev.Flow]; ok && rec.EnqueueCount > 0 {
		return nil
	}
	return fmt.Errorf("%w: %v of flow %v at t=%v before any enqueue", ErrMissingFlowRecord, ev.Type, ev.Flow, ev.Time)
}

// Merge folds another flow-completion aggregator into this one.
func (a *Aggregator) Merge(other model.Accumulator) error {
	o, ok := other.(*Aggregator)
	if !ok {
		return fmt.Errorf("cannot merge %T into flow aggregator", other)
	}
	for key, rec := range o.flows {
		MergeRecord(a.record(key), *rec)
	}
	a.counters.Add(o.counters)
	return nil
}

// Snapshot returns a deep copy of the current state as a model.FlowSnapshot.
func (a *Aggregator) Snapshot() interface{} {
	records := make(map[model.FlowKey]model.FlowRecord, len(a.flows))
	for key, rec := range a.flows {
		records[key] = *rec
	}
	return model.FlowSnapshot{
		Name:     ModeName,
		Records:  records,
		Counters: a.counters,
	}
}

// Restore merges a previously taken model.FlowSnapshot into the current state.
func (a *Aggregator) Restore(snapshot interface{}) error {
	snap, ok := snapshot.(model.FlowSnapshot)
	if !ok {
		return fmt.Errorf("invalid snapshot type for flow aggregator: expected model.FlowSnapshot, got %T", snapshot)
	}
	for key, rec := range snap.Records {
		MergeRecord(a.record(key), rec)
	}
	a.counters.Add(snap.Counters)
	return nil
}

// Counters returns the global event counts.
func (a *Aggregator) Counters() model.EventCounters {
	return a.counters
}

// Reset clears all flows and counters.
func (a *Aggregator) Reset() {
	a.flows = make(map[model.FlowKey]*model.FlowRecord)
	a.counters = model.EventCounters{}
}

// FlowCount returns the number of distinct flows seen.
func (a *Aggregator) FlowCount() int {
	return len(a.flows)
}

// GetFlow returns a copy of the record for key.
func (a *Aggregator) GetFlow(key model.FlowKey) (model.FlowRecord, bool) {
	rec, ok := a.flows[key]
	if !ok {
		return model.FlowRecord{}, false
	}
	return *rec, true
}
