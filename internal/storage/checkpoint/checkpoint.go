package checkpoint

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"TraceSpectra/internal/model"
)

func init() {
	// Register the concrete snapshot types carried in the interface field.
	gob.Register(model.FlowSnapshot{})
	gob.Register(model.QueueSnapshot{})
}

// envelope is the gob-encoded content of a checkpoint file.
type envelope struct {
	RunID    string
	Mode     string
	Snapshot interface{}
}

// SummaryData holds the metadata written next to a checkpoint.
type SummaryData struct {
	RunID     string              `json:"run_id"`
	Mode      string              `json:"mode"`
	Entities  int                 `json:"entities"`
	Counters  model.EventCounters `json:"counters"`
	Timestamp string              `json:"timestamp"`
}

// GobWriter saves accumulator snapshots to a checkpoint file in gob format,
// with a JSON summary alongside. It implements the model.Writer interface.
type GobWriter struct {
	path string
}

// NewGobWriter creates a writer for the checkpoint at path.
func NewGobWriter(path string) *GobWriter {
	return &GobWriter{path: path}
}

// SummaryPath returns the path of the JSON summary written next to a checkpoint.
func SummaryPath(path string) string {
	return path + ".json"
}

// Write encodes a model.FlowSnapshot or model.QueueSnapshot.
func (w *GobWriter) Write(payload interface{}, runID string) error {
	summary := SummaryData{RunID: runID, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	switch snap := payload.(type) {
	case model.FlowSnapshot:
		summary.Mode, summary.Entities, summary.Counters = snap.Name, len(snap.Records), snap.Counters
	case model.QueueSnapshot:
		summary.Mode, summary.Entities, summary.Counters = snap.Name, len(snap.Series), snap.Counters
	default:
		return fmt.Errorf("invalid payload type for GobWriter: expected a flow or queue snapshot, got %T", payload)
	}

	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	// Encode to a temporary file first so that a failed write keeps the previous checkpoint.
	tmpPath := w.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file '%s': %w", tmpPath, err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(envelope{RunID: runID, Mode: summary.Mode, Snapshot: payload}); err != nil {
		return fmt.Errorf("failed to encode checkpoint to gob: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}

	summaryFile, err := os.Create(SummaryPath(w.path))
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}

	log.Infof("Saved %s checkpoint with %d entities to %s", summary.Mode, summary.Entities, w.path)
	return nil
}

// Close is a no-op.
func (w *GobWriter) Close() error {
	return nil
}

// Load reads a checkpoint and returns its snapshot together with the mode and
// run id it was written by.
func Load(path string) (snapshot interface{}, mode, runID string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to open checkpoint '%s': %w", path, err)
	}
	defer file.Close()

	var env envelope
	if err := gob.NewDecoder(file).Decode(&env); err != nil {
		return nil, "", "", fmt.Errorf("failed to decode checkpoint '%s': %w", path, err)
	}
	return env.Snapshot, env.Mode, env.RunID, nil
}
