package queueaggregator

import (
	"errors"
	"testing"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/factory"
	"TraceSpectra/internal/model"
)

const (
	srcA = "/NodeList/0/DeviceList/1/"
	srcB = "/NodeList/1/DeviceList/2/"
)

func ev(t model.EventType, ts float64, src string) model.Event {
	return model.Event{Type: t, Time: ts, Source: src}
}

func feed(t *testing.T, agg *Aggregator, events ...model.Event) {
	t.Helper()
	for i := range events {
		if err := agg.Process(&events[i]); err != nil {
			t.Fatalf("Process(%v) failed: %v", events[i], err)
		}
	}
}

func TestAggregator_OccupancySeries(t *testing.T) {
	agg := New()
	feed(t, agg,
		ev(model.EventEnqueue, 0.1, srcA),
		ev(model.EventEnqueue, 0.2, srcA),
		ev(model.EventDequeue, 0.3, srcA),
		ev(model.EventReceive, 0.35, srcB),
		ev(model.EventDequeue, 0.4, srcA),
		ev(model.EventDrop, 0.45, srcA),
	)

	s, ok := agg.Series(srcA)
	if !ok {
		t.Fatalf("Series for %s missing", srcA)
	}
	want := []model.QueueSample{
		{Occupancy: 1, Time: 0.1},
		{Occupancy: 2, Time: 0.2},
		{Occupancy: 1, Time: 0.3},
		{Occupancy: 0, Time: 0.4},
	}
	if len(s.Samples) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(s.Samples))
	}
	for i := range want {
		if s.Samples[i] != want[i] {
			t.Errorf("Sample %d: expected %+v, got %+v", i, want[i], s.Samples[i])
		}
	}
	if !s.IsMonotonic() || s.Unordered {
		t.Errorf("Single-trace series should be monotonic")
	}
	if agg.Occupancy(srcA) != 0 {
		t.Errorf("Expected final occupancy 0, got %d", agg.Occupancy(srcA))
	}
	if agg.SourceCount() != 1 {
		t.Errorf("Receive events must not create series, got %d sources", agg.SourceCount())
	}

	c := agg.Counters()
	if c.Enqueued != 2 || c.Dequeued != 2 || c.Received != 1 || c.Dropped != 1 {
		t.Errorf("Unexpected counters %+v", c)
	}
}

func TestAggregator_DequeueBeforeEnqueue(t *testing.T) {
	agg := New()
	err := agg.Process(&model.Event{Type: model.EventDequeue, Time: 0.1, Source: srcA})
	if !errors.Is(err, ErrSequenceViolation) {
		t.Fatalf("Expected ErrSequenceViolation, got %v", err)
	}
	var se *SequenceError
	if !errors.As(err, &se) || se.Source != srcA {
		t.Errorf("Expected SequenceError carrying the source, got %v", err)
	}
}

func TestAggregator_NegativeOccupancy(t *testing.T) {
	agg := New()
	feed(t, agg, ev(model.EventEnqueue, 0.1, srcA), ev(model.EventDequeue, 0.2, srcA))
	err := agg.Process(&model.Event{Type: model.EventDequeue, Time: 0.3, Source: srcA})
	if !errors.Is(err, ErrSequenceViolation) {
		t.Fatalf("Expected ErrSequenceViolation, got %v", err)
	}
	if agg.Occupancy(srcA) != 0 {
		t.Errorf("Occupancy must never go negative, got %d", agg.Occupancy(srcA))
	}
}

func TestAggregator_RepeatedInputExtendsSeries(t *testing.T) {
	events := []model.Event{
		ev(model.EventEnqueue, 0.1, srcA),
		ev(model.EventDequeue, 0.2, srcA),
	}
	agg := New()
	feed(t, agg, events...)
	feed(t, agg, events...)

	s, _ := agg.Series(srcA)
	if len(s.Samples) != 4 {
		t.Fatalf("Expected series to double to 4 samples, got %d", len(s.Samples))
	}
	if !s.Unordered {
		t.Errorf("Replayed timestamps should mark the series unordered")
	}
	sorted := s.Sorted()
	if !sorted.IsMonotonic() {
		t.Errorf("Sorted series should be monotonic")
	}
	if agg.Counters().Enqueued != 2 {
		t.Errorf("Expected doubled enqueue count, got %d", agg.Counters().Enqueued)
	}
}

func TestAggregator_Merge(t *testing.T) {
	left := New()
	feed(t, left, ev(model.EventEnqueue, 0.5, srcA), ev(model.EventEnqueue, 0.6, srcA))
	right := New()
	feed(t, right,
		ev(model.EventEnqueue, 0.2, srcB),
		ev(model.EventDequeue, 0.3, srcB),
		ev(model.EventEnqueue, 0.4, srcB),
	)

	if err := left.Merge(right); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if left.Occupancy(srcA) != 2 || left.Occupancy(srcB) != 1 {
		t.Errorf("Expected occupancies 2 and 1, got %d and %d", left.Occupancy(srcA), left.Occupancy(srcB))
	}
	b, _ := left.Series(srcB)
	if len(b.Samples) != 3 || b.Unordered {
		t.Errorf("Merged series should be copied as-is, got %+v", b)
	}
	if left.Counters().Enqueued != 4 || left.Counters().Dequeued != 1 {
		t.Errorf("Unexpected merged counters %+v", left.Counters())
	}
	if got := left.OrderDependentKeys(); len(got) != 2 || got[0] != srcA || got[1] != srcB {
		t.Errorf("Unexpected keys %v", got)
	}
}

func TestAggregator_MergeRejectsSharedSource(t *testing.T) {
	// The second partial starts srcA at occupancy 0, which a sequential run
	// would have continued from 2.
	left := New()
	feed(t, left, ev(model.EventEnqueue, 0.1, srcA), ev(model.EventEnqueue, 0.2, srcA))
	right := New()
	feed(t, right,
		ev(model.EventEnqueue, 0.3, srcA),
		ev(model.EventDequeue, 0.4, srcA),
		ev(model.EventEnqueue, 0.5, srcB),
	)

	err := left.Merge(right)
	if !errors.Is(err, ErrOverlappingSources) {
		t.Fatalf("Expected ErrOverlappingSources, got %v", err)
	}
	if left.SourceCount() != 1 || left.Occupancy(srcA) != 2 || left.Counters().Enqueued != 2 {
		t.Errorf("Failed merge must leave the state untouched")
	}

	restored := New()
	feed(t, restored, ev(model.EventEnqueue, 0.1, srcA))
	if err := restored.Restore(left.Snapshot()); !errors.Is(err, ErrOverlappingSources) {
		t.Errorf("Restore over a tracked source should fail, got %v", err)
	}
}

func TestAggregator_SnapshotRestore(t *testing.T) {
	agg := New()
	feed(t, agg, ev(model.EventEnqueue, 0.1, srcA))
	snap := agg.Snapshot().(model.QueueSnapshot)

	feed(t, agg, ev(model.EventEnqueue, 0.2, srcA))
	if len(snap.Series[srcA].Samples) != 1 {
		t.Errorf("Snapshot was not a deep copy")
	}
	if got := snap.Sources(); len(got) != 1 || got[0] != srcA {
		t.Errorf("Unexpected snapshot sources %v", got)
	}

	restored := New()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.Occupancy(srcA) != 1 {
		t.Errorf("Expected restored occupancy 1, got %d", restored.Occupancy(srcA))
	}
	// A dequeue after restore continues from the restored occupancy.
	feed(t, restored, ev(model.EventDequeue, 0.3, srcA))
	if restored.Occupancy(srcA) != 0 {
		t.Errorf("Expected occupancy 0 after dequeue, got %d", restored.Occupancy(srcA))
	}
	if err := restored.Restore(model.FlowSnapshot{}); err == nil {
		t.Errorf("Restore should reject a flow snapshot")
	}

	restored.Reset()
	if restored.SourceCount() != 0 || restored.Counters().Total() != 0 {
		t.Errorf("Reset should clear all state")
	}
}

func TestFactoryRegistration(t *testing.T) {
	acc, err := factory.Create(ModeName, config.Default())
	if err != nil {
		t.Fatalf("factory.Create failed: %v", err)
	}
	if acc.Name() != ModeName {
		t.Errorf("Expected mode %q, got %q", ModeName, acc.Name())
	}
}
