package factory

import (
	"errors"
	"path/filepath"
	"testing"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/model"
	"TraceSpectra/internal/storage/checkpoint"
)

type stubAccumulator struct {
	model.Accumulator
	name string
}

func (s *stubAccumulator) Name() string { return s.name }

func TestRegisterAndCreate(t *testing.T) {
	RegisterMode("stub", func(cfg *config.Config) (model.Accumulator, error) {
		return &stubAccumulator{name: "stub"}, nil
	})
	acc, err := Create("stub", config.Default())
	if err != nil || acc.Name() != "stub" {
		t.Fatalf("Create(stub) = %v, %v", acc, err)
	}

	if _, err := Create("missing", config.Default()); err == nil {
		t.Errorf("Expected error for an unregistered mode")
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Registering a mode twice should panic")
		}
	}()
	RegisterMode("stub", nil)
}

func TestCreatePropagatesFactoryErrors(t *testing.T) {
	boom := errors.New("boom")
	RegisterMode("broken", func(cfg *config.Config) (model.Accumulator, error) {
		return nil, boom
	})
	if _, err := Create("broken", config.Default()); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped factory error, got %v", err)
	}
}

type recordingWriter struct {
	payloads []interface{}
	closed   bool
}

func (w *recordingWriter) Write(payload interface{}, runID string) error {
	w.payloads = append(w.payloads, payload)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestCreateWriters(t *testing.T) {
	cfg := config.Default()
	cfg.Writers = []config.WriterDef{
		{Type: "gob", Enabled: true, Path: filepath.Join(t.TempDir(), "state.gob")},
		{Type: "gob", Enabled: false, Path: "ignored"},
		{Type: "gob", Enabled: true},
		{Type: "parquet", Enabled: true},
	}
	writers := CreateWriters(cfg, PayloadSnapshot)
	if len(writers) != 1 {
		t.Fatalf("Expected a single usable writer, got %d", len(writers))
	}
	if _, ok := writers[0].(*checkpoint.GobWriter); !ok {
		t.Errorf("Expected a gob writer, got %T", writers[0])
	}

	if got := CreateWriters(cfg, PayloadReport); len(got) != 0 {
		t.Errorf("Gob writers should not receive reports, got %d writers", len(got))
	}

	rec := &recordingWriter{}
	WriteAll([]model.Writer{rec}, "payload", "run")
	CloseAll([]model.Writer{rec})
	if len(rec.payloads) != 1 || !rec.closed {
		t.Errorf("Expected one write and a close, got %+v", rec)
	}
}

func TestAccepts(t *testing.T) {
	tests := []struct {
		writer string
		kind   PayloadKind
		want   bool
	}{
		{"gob", PayloadSnapshot, true},
		{"gob", PayloadReport, false},
		{"nats", PayloadSnapshot, false},
		{"nats", PayloadReport, true},
		{"clickhouse", PayloadSnapshot, true},
		{"clickhouse", PayloadReport, true},
		{"parquet", PayloadSnapshot, false},
	}
	for _, tt := range tests {
		if got := Accepts(tt.writer, tt.kind); got != tt.want {
			t.Errorf("Accepts(%q, %v) = %v, want %v", tt.writer, tt.kind, got, tt.want)
		}
	}
}

func TestCreateWriters_SkipsNATSForSnapshots(t *testing.T) {
	cfg := config.Default()
	cfg.NATS.URL = "nats://127.0.0.1:1"
	cfg.Writers = []config.WriterDef{
		{Type: "nats", Enabled: true},
		{Type: "gob", Enabled: true, Path: filepath.Join(t.TempDir(), "state.gob")},
	}
	writers := CreateWriters(cfg, PayloadSnapshot)
	if len(writers) != 1 {
		t.Fatalf("Expected only the gob writer, got %d", len(writers))
	}
	if _, ok := writers[0].(*checkpoint.GobWriter); !ok {
		t.Errorf("Expected a gob writer, got %T", writers[0])
	}
}
