package publish

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/model"
)

// ReportHandler is a function that processes a received report.
type ReportHandler func(r *model.Report)

// Subscriber receives reports published by other runs.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.NATSConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Infof("Connected to NATS server at %s", cfg.URL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the configured subject and hands every decoded report to handler.
func (s *Subscriber) Start(handler ReportHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		handleMessage(msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", s.subject, err)
	}
	s.sub = sub
	log.Infof("Subscribed to '%s'. Waiting for reports...", s.subject)
	return nil
}

func handleMessage(data []byte, handler ReportHandler) {
	r, err := Decode(data)
	if err != nil {
		log.Warnf("Dropping undecodable report: %v", err)
		return
	}
	handler(r)
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			log.Warnf("Unsubscribe failed: %v", err)
		}
	}
	if s.nc != nil {
		s.nc.Close()
		log.Info("NATS connection closed.")
	}
}
