package model

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/gopacket/layers"
)

// EventType is the single-character marker at the start of a trace line.
type EventType byte

const (
	EventEnqueue EventType = '+'
	EventDequeue EventType = '-'
	EventDrop    EventType = 'd'
	EventReceive EventType = 'r'
)

// ParseEventType maps a marker token to its EventType.
func ParseEventType(tok string) (EventType, bool) {
	if len(tok) != 1 {
		return 0, false
	}
	switch t := EventType(tok[0]); t {
	case EventEnqueue, EventDequeue, EventDrop, EventReceive:
		return t, true
	}
	return 0, false
}

func (t EventType) String() string {
	switch t {
	case EventEnqueue:
		return "enqueue"
	case EventDequeue:
		return "dequeue"
	case EventDrop:
		return "drop"
	case EventReceive:
		return "receive"
	}
	return fmt.Sprintf("unknown(%q)", byte(t))
}

// FlowKey represents the 5-tuple of a simulated flow, as it appears in the trace.
type FlowKey struct {
	Protocol string
	SrcIP    string
	DstIP    string
	SrcPort  uint16
	DstPort  uint16
}

func (k FlowKey) String() string {
	return fmt.Sprintf("%s %s:%d->%s:%d", k.Protocol, k.SrcIP, k.SrcPort, k.DstIP, k.DstPort)
}

// ProtocolName resolves a numeric IP protocol token (e.g. "17") to its name ("UDP").
// Non-numeric tokens are returned unchanged.
func (k FlowKey) ProtocolName() string {
	n, err := strconv.ParseUint(k.Protocol, 10, 8)
	if err != nil {
		return k.Protocol
	}
	return layers.IPProtocol(n).String()
}

// Less orders flow keys field by field; used to make outputs deterministic.
func (k FlowKey) Less(o FlowKey) bool {
	if k.Protocol != o.Protocol {
		return k.Protocol < o.Protocol
	}
	if k.SrcIP != o.SrcIP {
		return k.SrcIP < o.SrcIP
	}
	if k.DstIP != o.DstIP {
		return k.DstIP < o.DstIP
	}
	if k.SrcPort != o.SrcPort {
		return k.SrcPort < o.SrcPort
	}
	return k.DstPort < o.DstPort
}

// Event is one parsed trace line.
type Event struct {
	Type EventType
	Time float64
	// Source identifies the device/queue that emitted the event. Empty when the
	// trace layout carries no source token.
	Source string
	Flow   FlowKey
}

// EventCounters holds global per-type event counts.
type EventCounters struct {
	Enqueued uint64
	Dequeued uint64
	Dropped  uint64
	Received uint64
}

// Count increments the counter matching t.
func (c *EventCounters) Count(t EventType) {
	switch t {
	case EventEnqueue:
		c.Enqueued++
	case EventDequeue:
		c.Dequeued++
	case EventDrop:
		c.Dropped++
	case EventReceive:
		c.Received++
	}
}

// Add sums o into c.
func (c *EventCounters) Add(o EventCounters) {
	c.Enqueued += o.Enqueued
	c.Dequeued += o.Dequeued
	c.Dropped += o.Dropped
	c.Received += o.Received
}

// Total returns the number of events of all types.
func (c EventCounters) Total() uint64 {
	return c.Enqueued + c.Dequeued + c.Dropped + c.Received
}

// FlowRecord accumulates per-flow statistics in flow-completion mode.
type FlowRecord struct {
	MinEnqueue   float64
	MaxReceive   float64
	EnqueueCount uint64
	ReceiveCount uint64
}

// Completed reports whether both an enqueue and a receive were observed.
func (r FlowRecord) Completed() bool {
	return r.EnqueueCount > 0 && r.ReceiveCount > 0
}

// Elapsed returns MaxReceive - MinEnqueue, the flow completion time under
// elapsed accounting.
func (r FlowRecord) Elapsed() float64 {
	return r.MaxReceive - r.MinEnqueue
}

// FlowEntry pairs a flow key with its record.
type FlowEntry struct {
	Key    FlowKey
	Record FlowRecord
}

// FlowSnapshot is a point-in-time copy of a flow-completion accumulator.
type FlowSnapshot struct {
	Name     string
	Records  map[FlowKey]FlowRecord
	Counters EventCounters
}

// Entries returns the snapshot's records ordered by flow key.
func (s FlowSnapshot) Entries() []FlowEntry {
	entries := make([]FlowEntry, 0, len(s.Records))
	for k, r := range s.Records {
		entries = append(entries, FlowEntry{Key: k, Record: r})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key.Less(entries[j].Key) })
	return entries
}

// QueueSample is one (occupancy, timestamp) point of a queue series.
type QueueSample struct {
	Occupancy int
	Time      float64
}

// QueueSeries is the occupancy time series of a single trace source.
type QueueSeries struct {
	Source  string
	Samples []QueueSample
	// Unordered is set once a sample older than its predecessor was appended
	// (after a merge or a repeated trace).
	Unordered bool
}

// Append adds a sample, tracking whether the series is still time-ordered.
func (s *QueueSeries) Append(occupancy int, t float64) {
	if n := len(s.Samples); n > 0 && t < s.Samples[n-1].Time {
		s.Unordered = true
	}
	s.Samples = append(s.Samples, QueueSample{Occupancy: occupancy, Time: t})
}

// IsMonotonic reports whether timestamps are non-decreasing.
func (s *QueueSeries) IsMonotonic() bool {
	for i := 1; i < len(s.Samples); i++ {
		if s.Samples[i].Time < s.Samples[i-1].Time {
			return false
		}
	}
	return true
}

// Sorted returns a copy of the series stably sorted by timestamp.
func (s *QueueSeries) Sorted() *QueueSeries {
	out := s.Clone()
	if out.Unordered || !out.IsMonotonic() {
		sort.SliceStable(out.Samples, func(i, j int) bool { return out.Samples[i].Time < out.Samples[j].Time })
	}
	out.Unordered = false
	return out
}

// Clone returns a deep copy.
func (s *QueueSeries) Clone() *QueueSeries {
	samples := make([]QueueSample, len(s.Samples))
	copy(samples, s.Samples)
	return &QueueSeries{Source: s.Source, Samples: samples, Unordered: s.Unordered}
}

// Occupancies returns the occupancy column.
func (s *QueueSeries) Occupancies() []int {
	out := make([]int, len(s.Samples))
	for i, smp := range s.Samples {
		out[i] = smp.Occupancy
	}
	return out
}

// Times returns the timestamp column.
func (s *QueueSeries) Times() []float64 {
	out := make([]float64, len(s.Samples))
	for i, smp := range s.Samples {
		out[i] = smp.Time
	}
	return out
}

// QueueSnapshot is a point-in-time copy of a queue-length accumulator.
type QueueSnapshot struct {
	Name      string
	Series    map[string]*QueueSeries
	Occupancy map[string]int
	Counters  EventCounters
}

// Sources returns the snapshot's source ids in lexical order.
func (s QueueSnapshot) Sources() []string {
	out := make([]string, 0, len(s.Series))
	for src := range s.Series {
		out = append(out, src)
	}
	sort.Strings(out)
	return out
}

// ClassifierRecord maps a simulator flow id to its 5-tuple.
type ClassifierRecord struct {
	FlowID             string
	Protocol           string
	SourceAddress      string
	DestinationAddress string
	SourcePort         uint16
	DestinationPort    uint16
}

// FlowStatsRecord holds the per-flow-id timing exported by the flow monitor, in nanoseconds.
type FlowStatsRecord struct {
	FlowID      string
	TimeFirstTx float64
	TimeLastRx  float64
}
