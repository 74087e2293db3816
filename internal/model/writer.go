package model

// Writer defines a generic interface for persisting analysis output.
type Writer interface {
	// Write takes a data payload and persists it.
	// The implementation is expected to know how to handle the payload type it receives
	// (FlowSnapshot, QueueSnapshot or *Report).
	Write(payload interface{}, runID string) error

	// Close releases the writer's resources.
	Close() error
}
