package model

// Accumulator defines the common interface of an analysis mode, allowing the
// flow-completion and queue-length aggregators to be driven interchangeably.
type Accumulator interface {
	// Name returns the analysis mode name.
	Name() string

	// Process applies a single parsed event to the accumulated state.
	Process(ev *Event) error

	// Merge folds the state of another accumulator of the same mode into this one.
	Merge(other Accumulator) error

	// Snapshot returns a deep copy of the current state
	// (FlowSnapshot or QueueSnapshot).
	Snapshot() interface{}

	// Restore merges a previously taken snapshot into the current state.
	Restore(snapshot interface{}) error

	// Counters returns the global per-type event counts.
	Counters() EventCounters

	// Reset clears all state.
	Reset()
}

// OrderDependent is implemented by accumulators whose per-entity state
// depends on every earlier event of that entity, across input files. Partial
// states built from separate files can only be merged when their keys are
// disjoint.
type OrderDependent interface {
	OrderDependentKeys() []string
}
