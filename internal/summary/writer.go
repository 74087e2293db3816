package summary

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"TraceSpectra/internal/model"
)

// FileWriter writes accumulator snapshots to a summary file.
type FileWriter struct {
	path string
}

// NewFileWriter creates a writer for the summary file at path.
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// Write replaces the summary file with the snapshot's contents.
func (w *FileWriter) Write(payload interface{}, runID string) error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer f.Close()

	switch snap := payload.(type) {
	case model.FlowSnapshot:
		err = WriteFlows(f, snap)
		log.Infof("Run %s: wrote %d flows to %s", runID, len(snap.Records), w.path)
	case model.QueueSnapshot:
		err = WriteQueues(f, snap)
		log.Infof("Run %s: wrote %d queue series to %s", runID, len(snap.Series), w.path)
	default:
		return fmt.Errorf("invalid payload type for summary writer: %T", payload)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

// Close is a no-op; every Write opens and closes its own file.
func (w *FileWriter) Close() error {
	return nil
}

// ReadFlowsFile reads the flow summary at path.
func ReadFlowsFile(path string) ([]model.FlowEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open summary file: %w", err)
	}
	defer f.Close()
	entries, err := ReadFlows(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// ReadQueuesFile reads the queue summary at path.
func ReadQueuesFile(path string) ([]*model.QueueSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open summary file: %w", err)
	}
	defer f.Close()
	series, err := ReadQueues(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}
