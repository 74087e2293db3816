package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/charmbracelet/log"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/model"
)

var createTableStatements = []string{`
CREATE TABLE IF NOT EXISTS flow_records (
    Timestamp    DateTime,
    RunID        String,
    Protocol     String,
    SrcIP        String,
    DstIP        String,
    SrcPort      UInt16,
    DstPort      UInt16,
    MinEnqueue   Float64,
    MaxReceive   Float64,
    EnqueueCount UInt64,
    ReceiveCount UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunID, Timestamp);
`, `
CREATE TABLE IF NOT EXISTS queue_samples (
    Timestamp DateTime,
    RunID     String,
    Source    String,
    Seq       UInt32,
    Occupancy Int32,
    SimTime   Float64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunID, Source, Seq);
`, `
CREATE TABLE IF NOT EXISTS reports (
    Timestamp DateTime,
    RunID     String,
    Kind      String,
    Unit      String,
    Count     UInt64,
    Min       Float64,
    Max       Float64,
    Mean      Float64,
    Quantiles Array(Float64),
    Values    Array(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunID, Kind, Timestamp);
`}

// Writer implements the model.Writer interface for ClickHouse. It stores flow
// records, queue samples and reports in one table each.
type Writer struct {
	conn driver.Conn
	now  func() time.Time
}

// NewWriter connects to ClickHouse and ensures the tables exist.
func NewWriter(cfg config.ClickHouseConfig) (*Writer, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range createTableStatements {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Info("Successfully connected to ClickHouse and ensured tables exist.")

	return &Writer{conn: conn, now: time.Now}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Write inserts a FlowSnapshot, QueueSnapshot or *model.Report.
func (w *Writer) Write(payload interface{}, runID string) error {
	ts := w.now().UTC()
	var (
		table string
		rows  [][]interface{}
	)
	switch p := payload.(type) {
	case model.FlowSnapshot:
		table, rows = "flow_records", FlowRows(p, runID, ts)
	case model.QueueSnapshot:
		table, rows = "queue_samples", QueueRows(p, runID, ts)
	case *model.Report:
		table, rows = "reports", [][]interface{}{ReportRow(p, runID, ts)}
	default:
		return fmt.Errorf("invalid payload type for ClickHouse Writer: %T", payload)
	}

	if len(rows) == 0 {
		return nil // Nothing to write
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("failed to append row to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	log.Infof("Wrote %d rows to ClickHouse table '%s' for run %s", len(rows), table, runID)
	return nil
}

// Close closes the connection.
func (w *Writer) Close() error {
	return w.conn.Close()
}

// FlowRows converts a flow snapshot into flow_records rows, ordered by flow key.
// Protocols are stored by name.
func FlowRows(snap model.FlowSnapshot, runID string, ts time.Time) [][]interface{} {
	entries := snap.Entries()
	rows := make([][]interface{}, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []interface{}{
			ts,
			runID,
			e.Key.ProtocolName(),
			e.Key.SrcIP,
			e.Key.DstIP,
			e.Key.SrcPort,
			e.Key.DstPort,
			e.Record.MinEnqueue,
			e.Record.MaxReceive,
			e.Record.EnqueueCount,
			e.Record.ReceiveCount,
		})
	}
	return rows
}

// QueueRows converts a queue snapshot into queue_samples rows. Each series is
// sorted by time and numbered from zero.
func QueueRows(snap model.QueueSnapshot, runID string, ts time.Time) [][]interface{} {
	var rows [][]interface{}
	for _, src := range snap.Sources() {
		for i, smp := range snap.Series[src].Sorted().Samples {
			rows = append(rows, []interface{}{
				ts,
				runID,
				src,
				uint32(i),
				int32(smp.Occupancy),
				smp.Time,
			})
		}
	}
	return rows
}

// ReportRow converts a report into a reports row.
func ReportRow(r *model.Report, runID string, ts time.Time) []interface{} {
	quantiles := make([]float64, len(r.Quantiles))
	values := make([]float64, len(r.Quantiles))
	for i, qv := range r.Quantiles {
		quantiles[i] = qv.Quantile
		values[i] = qv.Value
	}
	return []interface{}{
		ts,
		runID,
		r.Kind,
		r.Unit,
		uint64(r.Count),
		r.Min,
		r.Max,
		r.Mean,
		quantiles,
		values,
	}
}
