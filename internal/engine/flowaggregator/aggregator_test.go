package flowaggregator

import (
	"errors"
	"math"
	"testing"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/factory"
	"TraceSpectra/internal/model"
)

var (
	flowA = model.FlowKey{Protocol: "6", SrcIP: "10.1.1.1", DstIP: "10.1.2.2", SrcPort: 3000, DstPort: 4000}
	flowB = model.FlowKey{Protocol: "6", SrcIP: "10.1.1.2", DstIP: "10.1.2.2", SrcPort: 3001, DstPort: 4000}
)

func feed(t *testing.T, agg *Aggregator, events ...model.Event) {
	t.Helper()
	for i := range events {
		if err := agg.Process(&events[i]); err != nil {
			t.Fatalf("Process(%v) failed: %v", events[i], err)
		}
	}
}

func TestAggregator_EnqueueThenReceive(t *testing.T) {
	agg := New(Options{FailOnDrop: true})
	feed(t, agg,
		model.Event{Type: model.EventEnqueue, Time: 0.0, Flow: flowA},
		model.Event{Type: model.EventReceive, Time: 0.5, Flow: flowA},
	)

	rec, ok := agg.GetFlow(flowA)
	if !ok {
		t.Fatalf("Flow record missing")
	}
	want := model.FlowRecord{MinEnqueue: 0.0, MaxReceive: 0.5, EnqueueCount: 1, ReceiveCount: 1}
	if rec != want {
		t.Errorf("Expected %+v, got %+v", want, rec)
	}
}

func TestAggregator_MinMaxAndInvariant(t *testing.T) {
	agg := New(Options{})
	feed(t, agg,
		model.Event{Type: model.EventEnqueue, Time: 0.3, Flow: flowA},
		model.Event{Type: model.EventEnqueue, Time: 0.1, Flow: flowA},
		model.Event{Type: model.EventDequeue, Time: 0.2, Flow: flowA},
		model.Event{Type: model.EventReceive, Time: 0.9, Flow: flowA},
		model.Event{Type: model.EventReceive, Time: 0.4, Flow: flowA},
		model.Event{Type: model.EventDrop, Time: 0.5, Flow: flowB},
		model.Event{Type: model.EventReceive, Time: 0.7, Flow: flowB},
	)

	rec, _ := agg.GetFlow(flowA)
	if rec.MinEnqueue != 0.1 || rec.MaxReceive != 0.9 || rec.EnqueueCount != 2 || rec.ReceiveCount != 2 {
		t.Errorf("Unexpected record %+v", rec)
	}

	snap := agg.Snapshot().(model.FlowSnapshot)
	for key, r := range snap.Records {
		if r.Completed() && r.MinEnqueue > r.MaxReceive {
			t.Errorf("Flow %v violates minEnqueue <= maxReceive: %+v", key, r)
		}
	}

	// A flow only seen at the receiver keeps its enqueue sentinel.
	recB, _ := agg.GetFlow(flowB)
	if recB.Completed() || recB.EnqueueCount != 0 || recB.ReceiveCount != 1 {
		t.Errorf("Unexpected receive-only record %+v", recB)
	}

	c := agg.Counters()
	if c.Enqueued != 2 || c.Dequeued != 1 || c.Dropped != 1 || c.Received != 3 {
		t.Errorf("Unexpected counters %+v", c)
	}
	if agg.FlowCount() != 2 {
		t.Errorf("Expected 2 flows, got %d", agg.FlowCount())
	}
}

func TestAggregator_DequeueDoesNotCreateRecord(t *testing.T) {
	agg := New(Options{})
	feed(t, agg, model.Event{Type: model.EventDequeue, Time: 0.1, Flow: flowA})
	if agg.FlowCount() != 0 {
		t.Errorf("Dequeue events should not create flow records")
	}
}

func TestAggregator_FailOnDrop(t *testing.T) {
	agg := New(Options{FailOnDrop: true})
	err := agg.Process(&model.Event{Type: model.EventDrop, Time: 0.5, Flow: flowA})
	if !errors.Is(err, ErrDropObserved) {
		t.Fatalf("Expected ErrDropObserved, got %v", err)
	}
	if agg.Counters().Dropped != 1 {
		t.Errorf("Drop should still be counted")
	}
}

func TestAggregator_MissingFlowRecord(t *testing.T) {
	tolerant := New(Options{})
	feed(t, tolerant, model.Event{Type: model.EventReceive, Time: 0.5, Flow: flowA})
	rec, ok := tolerant.GetFlow(flowA)
	if !ok || rec.EnqueueCount != 0 || rec.ReceiveCount != 1 || !math.IsInf(rec.MinEnqueue, 1) {
		t.Errorf("Receive without enqueue should create a record with a +Inf MinEnqueue, got %+v", rec)
	}

	strict := New(Options{FailOnMissingRecord: true})
	for _, et := range []model.EventType{model.EventReceive, model.EventDequeue} {
		err := strict.Process(&model.Event{Type: et, Time: 0.5, Flow: flowA})
		if !errors.Is(err, ErrMissingFlowRecord) {
			t.Fatalf("Expected ErrMissingFlowRecord for %v, got %v", et, err)
		}
	}
	if strict.FlowCount() != 0 || strict.Counters().Total() != 0 {
		t.Errorf("Rejected events must not change the state")
	}

	feed(t, strict,
		model.Event{Type: model.EventEnqueue, Time: 0.1, Flow: flowA},
		model.Event{Type: model.EventDequeue, Time: 0.2, Flow: flowA},
		model.Event{Type: model.EventReceive, Time: 0.5, Flow: flowA},
	)
	if rec, _ := strict.GetFlow(flowA); rec.ReceiveCount != 1 {
		t.Errorf("Receive after enqueue should be accepted, got %+v", rec)
	}
}

func TestAggregator_RepeatedInputIsAdditive(t *testing.T) {
	events := []model.Event{
		{Type: model.EventEnqueue, Time: 0.0, Flow: flowA},
		{Type: model.EventDequeue, Time: 0.1, Flow: flowA},
		{Type: model.EventReceive, Time: 0.5, Flow: flowA},
	}
	agg := New(Options{FailOnDrop: true})
	feed(t, agg, events...)
	once := agg.Counters()
	feed(t, agg, events...)

	rec, _ := agg.GetFlow(flowA)
	if rec.EnqueueCount != 2 || rec.ReceiveCount != 2 {
		t.Errorf("Per-flow counts should double, got %+v", rec)
	}
	twice := agg.Counters()
	if twice.Total() != 2*once.Total() || twice.Dequeued != 2*once.Dequeued {
		t.Errorf("Global counters should double: once %+v, twice %+v", once, twice)
	}
}

func TestAggregator_Merge(t *testing.T) {
	left := New(Options{})
	feed(t, left,
		model.Event{Type: model.EventEnqueue, Time: 0.2, Flow: flowA},
		model.Event{Type: model.EventReceive, Time: 0.6, Flow: flowA},
	)
	right := New(Options{})
	feed(t, right,
		model.Event{Type: model.EventEnqueue, Time: 0.1, Flow: flowA},
		model.Event{Type: model.EventReceive, Time: 0.4, Flow: flowA},
		model.Event{Type: model.EventEnqueue, Time: 0.3, Flow: flowB},
	)

	if err := left.Merge(right); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	rec, _ := left.GetFlow(flowA)
	want := model.FlowRecord{MinEnqueue: 0.1, MaxReceive: 0.6, EnqueueCount: 2, ReceiveCount: 2}
	if rec != want {
		t.Errorf("Expected merged %+v, got %+v", want, rec)
	}
	if left.FlowCount() != 2 {
		t.Errorf("Expected 2 flows after merge, got %d", left.FlowCount())
	}
	if left.Counters().Enqueued != 3 {
		t.Errorf("Expected summed enqueue count 3, got %d", left.Counters().Enqueued)
	}
}

type otherAccumulator struct{ model.Accumulator }

func TestAggregator_MergeRejectsOtherModes(t *testing.T) {
	if err := New(Options{}).Merge(otherAccumulator{}); err == nil {
		t.Fatalf("Expected error merging a different accumulator type")
	}
}

func TestAggregator_SnapshotRestore(t *testing.T) {
	agg := New(Options{})
	feed(t, agg,
		model.Event{Type: model.EventEnqueue, Time: 0.0, Flow: flowA},
		model.Event{Type: model.EventReceive, Time: 0.5, Flow: flowA},
	)
	snap := agg.Snapshot()

	// Mutating the aggregator must not affect the snapshot.
	feed(t, agg, model.Event{Type: model.EventReceive, Time: 0.9, Flow: flowA})
	if got := snap.(model.FlowSnapshot).Records[flowA].MaxReceive; got != 0.5 {
		t.Errorf("Snapshot was not a deep copy, MaxReceive=%v", got)
	}

	restored := New(Options{})
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	rec, _ := restored.GetFlow(flowA)
	if rec.MinEnqueue != 0.0 || rec.MaxReceive != 0.5 || rec.ReceiveCount != 1 {
		t.Errorf("Unexpected restored record %+v", rec)
	}
	if err := restored.Restore(model.QueueSnapshot{}); err == nil {
		t.Errorf("Restore should reject a queue snapshot")
	}

	restored.Reset()
	if restored.FlowCount() != 0 || restored.Counters().Total() != 0 {
		t.Errorf("Reset should clear all state")
	}
}

func TestFactoryRegistration(t *testing.T) {
	acc, err := factory.Create(ModeName, config.Default())
	if err != nil {
		t.Fatalf("factory.Create failed: %v", err)
	}
	agg, ok := acc.(*Aggregator)
	if !ok {
		t.Fatalf("Expected *Aggregator, got %T", acc)
	}
	if !agg.opts.FailOnDrop {
		t.Errorf("Flow mode should fail on drops by default")
	}
	if agg.opts.FailOnMissingRecord {
		t.Errorf("Missing flow records should be tolerated by default")
	}

	cfg := config.Default()
	cfg.Runner.MissingFlowRecord = "fail"
	acc, _ = factory.Create(ModeName, cfg)
	if !acc.(*Aggregator).opts.FailOnMissingRecord {
		t.Errorf("runner.missing_flow_record=fail should reach the aggregator")
	}
}
