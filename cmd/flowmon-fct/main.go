package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/m-lab/go/rtx"

	"TraceSpectra/internal/analysis"
	"TraceSpectra/internal/config"
	"TraceSpectra/internal/emitter"
	"TraceSpectra/internal/factory"
	"TraceSpectra/internal/flowmon"
	"TraceSpectra/internal/logging"
)

var flagConfig = flag.String("config", "", "Path to a YAML or TOML configuration file.")

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <xml file> [cdf] [bg_flows]\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Prints completion time statistics of the foreground (or background) flows")
	fmt.Fprintln(os.Stderr, "of a flow monitor export; with 'cdf' prints the CDF as CSV instead.")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	cdf := flag.NArg() > 1 && flag.Arg(1) == "cdf"
	background := flag.NArg() > 2 && flag.Arg(2) == "bg_flows"

	cfg, err := config.LoadConfig(*flagConfig)
	rtx.Must(err, "Failed to load configuration")
	if err := logging.Setup(cfg.LogLevel); err != nil {
		log.Warnf("%v, using info", err)
	}

	doc, err := flowmon.DecodeFile(flag.Arg(0))
	rtx.Must(err, "Failed to read flow monitor file")

	res, err := analysis.FlowmonCompletion(doc, cfg.Classifier, background, cdf)
	rtx.Must(err, "Failed to compute completion times")

	if cdf {
		log.Infof("|bg_flows|: %d, |fg_flows|: %d", res.Background, res.Foreground)
		rtx.Must(emitter.WriteCDF(os.Stdout, res.Samples), "Failed to write CDF")
		return
	}

	emitter.PrintClassCounts(os.Stdout, res.Foreground, res.Background)
	res.Report.RunID = uuid.NewString()
	emitter.PrintReport(os.Stdout, res.Report)

	writers := factory.CreateWriters(cfg, factory.PayloadReport)
	factory.WriteAll(writers, res.Report, res.Report.RunID)
	factory.CloseAll(writers)
}
