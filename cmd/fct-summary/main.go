package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/m-lab/go/rtx"

	"TraceSpectra/internal/analysis"
	"TraceSpectra/internal/api"
	"TraceSpectra/internal/config"
	"TraceSpectra/internal/emitter"
	"TraceSpectra/internal/factory"
	"TraceSpectra/internal/logging"
	"TraceSpectra/internal/model"
	"TraceSpectra/internal/publish"
	"TraceSpectra/internal/summary"
)

var (
	flagConfig  = flag.String("config", "", "Path to a YAML or TOML configuration file.")
	flagServe   = flag.Bool("serve", false, "Serve the report over HTTP until interrupted.")
	flagPublish = flag.Bool("publish", false, "Publish the report to NATS.")
	flagFollow  = flag.Bool("follow", false, "With -serve, also serve reports published to NATS by other runs.")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <summary file>\n\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Prints flow completion time statistics of a flow summary.")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*flagConfig)
	rtx.Must(err, "Failed to load configuration")
	if err := logging.Setup(cfg.LogLevel); err != nil {
		log.Warnf("%v, using info", err)
	}

	entries, err := summary.ReadFlowsFile(flag.Arg(0))
	rtx.Must(err, "Failed to read summary")

	report, skipped, err := analysis.FlowCompletion(entries, cfg.Stats)
	rtx.Must(err, "Failed to compute completion times")
	if skipped > 0 {
		log.Warnf("Skipped %d flows without both an enqueue and a receive", skipped)
	}
	report.RunID = uuid.NewString()
	emitter.PrintReport(os.Stdout, report)

	writers := factory.CreateWriters(cfg, factory.PayloadReport)
	if *flagPublish {
		pub, err := publish.NewPublisher(cfg.NATS)
		rtx.Must(err, "Failed to create publisher")
		writers = append(writers, pub)
	}
	factory.WriteAll(writers, report, report.RunID)
	factory.CloseAll(writers)

	if *flagServe {
		serve(cfg, report)
	}
}

func serve(cfg *config.Config, report *model.Report) {
	srv := api.NewServer(nil)
	srv.Publish(report)
	rtx.Must(srv.Start(cfg.API), "Failed to start report server")

	if *flagFollow {
		sub, err := publish.NewSubscriber(cfg.NATS)
		rtx.Must(err, "Failed to create subscriber")
		defer sub.Close()
		rtx.Must(sub.Start(srv.Publish), "Failed to subscribe")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Report server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Shutdown error: %v", err)
	}
}
