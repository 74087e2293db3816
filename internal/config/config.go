package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FieldOffsets holds the absolute token indices of the flow fields for one event marker.
type FieldOffsets struct {
	Protocol int `yaml:"protocol" toml:"protocol"`
	SrcIP    int `yaml:"src_ip" toml:"src_ip"`
	DstIP    int `yaml:"dst_ip" toml:"dst_ip"`
	SrcPort  int `yaml:"src_port" toml:"src_port"`
	DstPort  int `yaml:"dst_port" toml:"dst_port"`
}

// LayoutDef describes one trace line layout.
type LayoutDef struct {
	// Offsets is keyed by event marker ("+", "-", "d", "r").
	Offsets map[string]FieldOffsets `yaml:"offsets" toml:"offsets"`
	// SourceToken is the index of the trace-source token, or -1 when absent.
	SourceToken int `yaml:"source_token" toml:"source_token"`
	// SourceDelimiter cuts the source token; only the part before it is kept.
	SourceDelimiter string `yaml:"source_delimiter" toml:"source_delimiter"`
	// RequiredSubstring, when set, filters out lines not containing it before tokenizing.
	RequiredSubstring string `yaml:"required_substring" toml:"required_substring"`
}

// ParserConfig holds the configuration of the trace line parser.
type ParserConfig struct {
	// Layout selects a preset ("flow", "queue") or an entry of Layouts.
	Layout  string               `yaml:"layout" toml:"layout"`
	Layouts map[string]LayoutDef `yaml:"layouts" toml:"layouts"`
	// MaxTime drops events later than this timestamp; 0 disables the window.
	MaxTime float64 `yaml:"max_time" toml:"max_time"`
}

// RunnerConfig holds the configuration of the run manager.
type RunnerConfig struct {
	Mode          string `yaml:"mode" toml:"mode"`
	NumWorkers    int    `yaml:"num_workers" toml:"num_workers"`
	ProgressEvery int    `yaml:"progress_every" toml:"progress_every"`
	// UnknownMarker is "skip" (count and warn) or "fail".
	UnknownMarker string `yaml:"unknown_marker" toml:"unknown_marker"`
	// FailOnDrop aborts flow-completion runs on a drop event. Nil uses the mode default.
	FailOnDrop *bool `yaml:"fail_on_drop" toml:"fail_on_drop"`
	// MissingFlowRecord is "skip" (a receive without enqueue still creates the
	// record) or "fail" for dequeues and receives of never-enqueued flows.
	MissingFlowRecord string `yaml:"missing_flow_record" toml:"missing_flow_record"`
}

// StatsConfig holds the order-statistics settings.
type StatsConfig struct {
	Quantiles []float64 `yaml:"quantiles" toml:"quantiles"`
	// Rounding is "zero_based" or "one_based_percent".
	Rounding string `yaml:"rounding" toml:"rounding"`
}

// ClassifierConfig holds the flow-class ports used by the flow monitor join.
type ClassifierConfig struct {
	ForegroundPort uint16 `yaml:"foreground_port" toml:"foreground_port"`
	BackgroundPort uint16 `yaml:"background_port" toml:"background_port"`
	// Accounting is "last_receive" or "elapsed".
	Accounting string `yaml:"accounting" toml:"accounting"`
	// WarmupMicros is subtracted from completion samples before reporting.
	WarmupMicros float64 `yaml:"warmup_us" toml:"warmup_us"`
}

// QueueConfig holds the queue summary settings.
type QueueConfig struct {
	TopK int `yaml:"top_k" toml:"top_k"`
	// ChartFormat is "png" (bar chart image) or "text" (histogram in a text file).
	ChartFormat string `yaml:"chart_format" toml:"chart_format"`
	// ChartWidth is the bar length of the text chart in characters.
	ChartWidth int `yaml:"chart_width" toml:"chart_width"`
}

// ClickHouseConfig holds the connection details for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Database string `yaml:"database" toml:"database"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// WriterDef defines an output writer: "clickhouse", "nats" or "gob".
type WriterDef struct {
	Type       string           `yaml:"type" toml:"type"`
	Enabled    bool             `yaml:"enabled" toml:"enabled"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse" toml:"clickhouse"`
	// Path is the checkpoint file of a gob writer.
	Path string `yaml:"path" toml:"path"`
}

// NATSConfig holds the report publisher settings used by "nats" writers.
type NATSConfig struct {
	URL     string `yaml:"url" toml:"url"`
	Subject string `yaml:"subject" toml:"subject"`
}

// APIConfig holds the listen addresses of the report API.
type APIConfig struct {
	HTTPListenAddr string `yaml:"http_listen_addr" toml:"http_listen_addr"`
	GRPCListenAddr string `yaml:"grpc_listen_addr" toml:"grpc_listen_addr"`
}

// MetricsConfig holds the metrics export settings.
type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in Prometheus text format.
	Textfile string `yaml:"textfile" toml:"textfile"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	LogLevel   string           `yaml:"log_level" toml:"log_level"`
	Parser     ParserConfig     `yaml:"parser" toml:"parser"`
	Runner     RunnerConfig     `yaml:"runner" toml:"runner"`
	Stats      StatsConfig      `yaml:"stats" toml:"stats"`
	Classifier ClassifierConfig `yaml:"classifier" toml:"classifier"`
	Queue      QueueConfig      `yaml:"queue" toml:"queue"`
	Writers    []WriterDef      `yaml:"writers" toml:"writers"`
	NATS       NATSConfig       `yaml:"nats" toml:"nats"`
	API        APIConfig        `yaml:"api" toml:"api"`
	Metrics    MetricsConfig    `yaml:"metrics" toml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Parser: ParserConfig{
			Layout: "flow",
		},
		Runner: RunnerConfig{
			Mode:              "flow",
			NumWorkers:        1,
			ProgressEvery:     300000,
			UnknownMarker:     "skip",
			MissingFlowRecord: "skip",
		},
		Stats: StatsConfig{
			Quantiles: []float64{0.50, 0.90, 0.95, 0.99, 0.999},
			Rounding:  "zero_based",
		},
		Classifier: ClassifierConfig{
			ForegroundPort: 10,
			BackgroundPort: 9,
			Accounting:     "last_receive",
			WarmupMicros:   1000000,
		},
		Queue: QueueConfig{
			TopK:        5,
			ChartFormat: "png",
			ChartWidth:  60,
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "tracespectra.reports",
		},
		API: APIConfig{
			HTTPListenAddr: ":8080",
			GRPCListenAddr: ":50051",
		},
	}
}

// LoadConfig reads the configuration from a YAML (or, by extension, TOML) file
// on top of the defaults. An empty path returns the defaults.
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()
	if filePath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be corrected silently.
func (c *Config) Validate() error {
	switch c.Runner.UnknownMarker {
	case "skip", "fail":
	default:
		return fmt.Errorf("invalid runner.unknown_marker %q: want skip or fail", c.Runner.UnknownMarker)
	}
	switch c.Runner.MissingFlowRecord {
	case "skip", "fail":
	default:
		return fmt.Errorf("invalid runner.missing_flow_record %q: want skip or fail", c.Runner.MissingFlowRecord)
	}
	switch c.Stats.Rounding {
	case "zero_based", "one_based_percent":
	default:
		return fmt.Errorf("invalid stats.rounding %q: want zero_based or one_based_percent", c.Stats.Rounding)
	}
	switch c.Classifier.Accounting {
	case "last_receive", "elapsed":
	default:
		return fmt.Errorf("invalid classifier.accounting %q: want last_receive or elapsed", c.Classifier.Accounting)
	}
	for _, q := range c.Stats.Quantiles {
		if q < 0 || q > 1 {
			return fmt.Errorf("invalid quantile %v: must be within [0, 1]", q)
		}
	}
	if c.Runner.NumWorkers <= 0 {
		c.Runner.NumWorkers = 1
	}
	if c.Runner.ProgressEvery < 0 {
		c.Runner.ProgressEvery = 0
	}
	if c.Queue.TopK <= 0 {
		c.Queue.TopK = 5
	}
	switch c.Queue.ChartFormat {
	case "png", "text":
	default:
		return fmt.Errorf("invalid queue.chart_format %q: want png or text", c.Queue.ChartFormat)
	}
	if c.Queue.ChartWidth <= 0 {
		c.Queue.ChartWidth = 60
	}
	return nil
}

// FailOnDrop resolves the drop policy for a mode: strict by default only in
// flow-completion mode.
func (c *Config) FailOnDrop(mode string) bool {
	if c.Runner.FailOnDrop != nil {
		return *c.Runner.FailOnDrop
	}
	return mode == "flow"
}
