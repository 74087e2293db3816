package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/m-lab/go/rtx"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/engine/manager"
	"TraceSpectra/internal/factory"
	"TraceSpectra/internal/logging"
	"TraceSpectra/internal/metrics"
	"TraceSpectra/internal/model"
	"TraceSpectra/internal/storage/checkpoint"
	"TraceSpectra/internal/summary"
	"TraceSpectra/pkg/tracefile"
)

var (
	flagConfig     = flag.String("config", "", "Path to a YAML or TOML configuration file.")
	flagMode       = flag.String("mode", "", "Analysis mode: flow or queue. Overrides runner.mode.")
	flagLayout     = flag.String("layout", "", "Trace line layout. Defaults to the mode's preset when -mode is given.")
	flagManifest   = flag.Bool("manifest", false, "Treat <input> as a manifest listing one trace file per line.")
	flagWorkers    = flag.Int("workers", 0, "Number of files parsed concurrently. Overrides runner.num_workers.")
	flagMaxTime    = flag.Float64("max-time", -1, "Ignore events after this timestamp. Overrides parser.max_time.")
	flagResume     = flag.String("resume", "", "Checkpoint to restore before reading the input.")
	flagCheckpoint = flag.String("checkpoint", "", "Checkpoint to write after reading the input.")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <input> <output>\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Reads ASCII packet traces and writes a flow or queue summary file.")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 2 {
		usage()
		os.Exit(1)
	}
	input, output := flag.Arg(0), flag.Arg(1)

	cfg, err := config.LoadConfig(*flagConfig)
	rtx.Must(err, "Failed to load configuration")
	if *flagMode != "" {
		cfg.Runner.Mode = *flagMode
		cfg.Parser.Layout = *flagMode
	}
	if *flagLayout != "" {
		cfg.Parser.Layout = *flagLayout
	}
	if *flagWorkers > 0 {
		cfg.Runner.NumWorkers = *flagWorkers
	}
	if *flagMaxTime >= 0 {
		cfg.Parser.MaxTime = *flagMaxTime
	}
	if err := logging.Setup(cfg.LogLevel); err != nil {
		log.Warnf("%v, using info", err)
	}

	runID := uuid.NewString()
	log.Infof("Starting %s run %s", cfg.Runner.Mode, runID)

	recorder := metrics.NewRecorder()
	mgr, err := manager.NewManager(cfg, recorder)
	rtx.Must(err, "Failed to create manager")

	if *flagResume != "" {
		snapshot, mode, prevRun, err := checkpoint.Load(*flagResume)
		rtx.Must(err, "Failed to load checkpoint")
		if mode != cfg.Runner.Mode {
			log.Fatalf("Checkpoint %s holds %s state, run mode is %s", *flagResume, mode, cfg.Runner.Mode)
		}
		rtx.Must(mgr.Restore(snapshot), "Failed to restore checkpoint")
		log.Infof("Resumed from %s (run %s)", *flagResume, prevRun)
	}

	paths := []string{input}
	if *flagManifest {
		paths, err = tracefile.ReadManifest(input)
		rtx.Must(err, "Failed to read manifest")
		log.Infof("Manifest lists %d trace files", len(paths))
	}

	if err := mgr.ProcessFiles(paths); err != nil {
		log.Fatalf("Aggregation failed: %v", err)
	}

	snapshot := mgr.Accumulator().Snapshot()
	rtx.Must(summary.NewFileWriter(output).Write(snapshot, runID), "Failed to write summary")
	if *flagCheckpoint != "" {
		rtx.Must(checkpoint.NewGobWriter(*flagCheckpoint).Write(snapshot, runID), "Failed to write checkpoint")
	}

	writers := factory.CreateWriters(cfg, factory.PayloadSnapshot)
	factory.WriteAll(writers, snapshot, runID)
	factory.CloseAll(writers)

	stats := mgr.Stats()
	c := mgr.Accumulator().Counters()
	log.Infof("Enqueued %d, dequeued %d, dropped %d, received %d, max gap %v, last t=%v",
		c.Enqueued, c.Dequeued, c.Dropped, c.Received, stats.MaxGap, stats.LastTime)
	switch snap := snapshot.(type) {
	case model.FlowSnapshot:
		log.Infof("%d flows", len(snap.Records))
	case model.QueueSnapshot:
		log.Infof("%d queue sources", len(snap.Series))
	}

	if cfg.Metrics.Textfile != "" {
		rtx.Must(recorder.WriteTextfile(cfg.Metrics.Textfile), "Failed to write metrics")
	}
}
