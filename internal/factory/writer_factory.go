package factory

import (
	"github.com/charmbracelet/log"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/model"
	"TraceSpectra/internal/publish"
	"TraceSpectra/internal/storage/checkpoint"
	"TraceSpectra/internal/storage/clickhouse"
)

// PayloadKind is the kind of output a tool hands to its writers.
type PayloadKind int

const (
	// PayloadSnapshot is a model.FlowSnapshot or model.QueueSnapshot.
	PayloadSnapshot PayloadKind = iota
	// PayloadReport is a *model.Report.
	PayloadReport
)

func (k PayloadKind) String() string {
	if k == PayloadReport {
		return "report"
	}
	return "snapshot"
}

// writerPayloads lists the payload kinds each writer type accepts.
var writerPayloads = map[string][]PayloadKind{
	"gob":        {PayloadSnapshot},
	"clickhouse": {PayloadSnapshot, PayloadReport},
	"nats":       {PayloadReport},
}

// Accepts reports whether writers of writerType can persist payloads of kind.
func Accepts(writerType string, kind PayloadKind) bool {
	for _, k := range writerPayloads[writerType] {
		if k == kind {
			return true
		}
	}
	return false
}

// CreateWriters builds the enabled writers of cfg that accept payloads of
// kind. Writers that cannot be created are logged and skipped so that an
// unreachable sink does not abort an offline run.
func CreateWriters(cfg *config.Config, kind PayloadKind) []model.Writer {
	writers := make([]model.Writer, 0, len(cfg.Writers))
	for _, writerDef := range cfg.Writers {
		if !writerDef.Enabled {
			continue
		}
		if _, known := writerPayloads[writerDef.Type]; known && !Accepts(writerDef.Type, kind) {
			log.Debugf("Writer type '%s' does not take %s payloads, skipping.", writerDef.Type, kind)
			continue
		}

		var (
			writer model.Writer
			err    error
		)
		switch writerDef.Type {
		case "gob":
			if writerDef.Path == "" {
				log.Warnf("Writer type 'gob' has no path, skipping.")
				continue
			}
			writer = checkpoint.NewGobWriter(writerDef.Path)
		case "clickhouse":
			writer, err = clickhouse.NewWriter(writerDef.ClickHouse)
		case "nats":
			writer, err = publish.NewPublisher(cfg.NATS)
		default:
			log.Warnf("Unknown writer type '%s' in config, skipping.", writerDef.Type)
			continue
		}
		if err != nil {
			log.Warnf("Failed to create writer type '%s': %v, skipping.", writerDef.Type, err)
			continue
		}
		writers = append(writers, writer)
	}
	return writers
}

// WriteAll hands payload to every writer, logging failures.
func WriteAll(writers []model.Writer, payload interface{}, runID string) {
	for _, w := range writers {
		if err := w.Write(payload, runID); err != nil {
			log.Errorf("Writer %T: %v", w, err)
		}
	}
}

// CloseAll closes every writer, logging failures.
func CloseAll(writers []model.Writer) {
	for _, w := range writers {
		if err := w.Close(); err != nil {
			log.Errorf("Failed to close writer %T: %v", w, err)
		}
	}
}
