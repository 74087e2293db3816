package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/m-lab/go/rtx"

	"TraceSpectra/internal/analysis"
	"TraceSpectra/internal/config"
	"TraceSpectra/internal/emitter"
	"TraceSpectra/internal/factory"
	"TraceSpectra/internal/logging"
	"TraceSpectra/internal/summary"
)

var flagConfig = flag.String("config", "", "Path to a YAML or TOML configuration file.")

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <summary file> <lower bound sw> <upper bound sw> <outfile>\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Summarizes the busiest queues of devices in [lower, upper) and writes their")
	fmt.Fprintln(os.Stderr, "occupancy distribution chart to <outfile>.png (or <outfile>.txt with queue.chart_format: text).")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 4 {
		usage()
		os.Exit(1)
	}
	lower, err := strconv.Atoi(flag.Arg(1))
	rtx.Must(err, "Invalid lower bound")
	upper, err := strconv.Atoi(flag.Arg(2))
	rtx.Must(err, "Invalid upper bound")
	outfile := flag.Arg(3)

	cfg, err := config.LoadConfig(*flagConfig)
	rtx.Must(err, "Failed to load configuration")
	if err := logging.Setup(cfg.LogLevel); err != nil {
		log.Warnf("%v, using info", err)
	}

	series, err := summary.ReadQueuesFile(flag.Arg(0))
	rtx.Must(err, "Failed to read summary")

	res, err := analysis.QueueOccupancy(series, lower, upper, cfg)
	rtx.Must(err, "Failed to analyse queues")

	emitter.PrintQueueAverages(os.Stdout, res.Busiest)
	res.Means.RunID = uuid.NewString()
	emitter.PrintReport(os.Stdout, res.Means)

	chartPath := outfile + "." + cfg.Queue.ChartFormat
	if cfg.Queue.ChartFormat == "text" {
		chartPath = outfile + ".txt"
		rtx.Must(emitter.WriteChartFile(chartPath, res.Distributions, cfg.Queue.ChartWidth), "Failed to write chart")
	} else {
		rtx.Must(emitter.WriteBarChartFile(chartPath, res.Distributions), "Failed to write chart")
	}
	log.Infof("Wrote occupancy distribution chart to %s", chartPath)

	writers := factory.CreateWriters(cfg, factory.PayloadReport)
	factory.WriteAll(writers, res.Means, res.Means.RunID)
	factory.CloseAll(writers)
}
