package publish

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/model"
)

// Publisher is responsible for publishing reports to a NATS subject.
// It implements the model.Writer interface.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.NATSConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Infof("Connected to NATS server at %s", cfg.URL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Write publishes a *model.Report.
func (p *Publisher) Write(payload interface{}, runID string) error {
	report, ok := payload.(*model.Report)
	if !ok {
		return fmt.Errorf("invalid payload type for NATS publisher: expected *model.Report, got %T", payload)
	}
	if report.RunID == "" {
		report.RunID = runID
	}
	data, err := Encode(report)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	log.Infof("Published %s report of run %s to '%s'", report.Kind, report.RunID, p.subject)
	return nil
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return err
	}
	log.Info("NATS connection drained and closed.")
	return nil
}

// Encode serializes a report as a protobuf Struct.
func Encode(r *model.Report) ([]byte, error) {
	quantiles := make([]interface{}, 0, len(r.Quantiles))
	for _, qv := range r.Quantiles {
		quantiles = append(quantiles, map[string]interface{}{
			"quantile": qv.Quantile,
			"value":    qv.Value,
		})
	}
	msg, err := structpb.NewStruct(map[string]interface{}{
		"run_id":     r.RunID,
		"kind":       r.Kind,
		"unit":       r.Unit,
		"count":      r.Count,
		"min":        r.Min,
		"max":        r.Max,
		"mean":       r.Mean,
		"quantiles":  quantiles,
		"created_at": r.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build report message: %w", err)
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report message: %w", err)
	}
	return data, nil
}

// Decode parses a message produced by Encode.
func Decode(data []byte) (*model.Report, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report message: %w", err)
	}
	f := msg.GetFields()
	r := &model.Report{
		RunID: f["run_id"].GetStringValue(),
		Kind:  f["kind"].GetStringValue(),
		Unit:  f["unit"].GetStringValue(),
		Count: int(f["count"].GetNumberValue()),
		Min:   f["min"].GetNumberValue(),
		Max:   f["max"].GetNumberValue(),
		Mean:  f["mean"].GetNumberValue(),
	}
	for _, v := range f["quantiles"].GetListValue().GetValues() {
		qf := v.GetStructValue().GetFields()
		r.Quantiles = append(r.Quantiles, model.QuantileValue{
			Quantile: qf["quantile"].GetNumberValue(),
			Value:    qf["value"].GetNumberValue(),
		})
	}
	if ts := f["created_at"].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("bad created_at %q: %w", ts, err)
		}
		r.CreatedAt = t
	}
	return r, nil
}
