package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"TraceSpectra/internal/config"
	"TraceSpectra/internal/model"
)

// ServiceName is the gRPC health service name reported by the server.
const ServiceName = "tracespectra.Reports"

// Server exposes computed reports over HTTP, with a gRPC health endpoint beside it.
type Server struct {
	mu      sync.RWMutex
	reports map[string]*model.Report
	metrics http.Handler

	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
}

// NewServer creates a report server. metricsHandler may be nil.
func NewServer(metricsHandler http.Handler) *Server {
	return &Server{
		reports: make(map[string]*model.Report),
		metrics: metricsHandler,
		health:  health.NewServer(),
	}
}

// Publish makes a report available under its kind, replacing any earlier one.
func (s *Server) Publish(r *model.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.Kind] = r
}

// Write implements model.Writer for *model.Report payloads.
func (s *Server) Write(payload interface{}, runID string) error {
	r, ok := payload.(*model.Report)
	if !ok {
		return fmt.Errorf("invalid payload type for report server: expected *model.Report, got %T", payload)
	}
	if r.RunID == "" {
		r.RunID = runID
	}
	s.Publish(r)
	return nil
}

func (s *Server) report(kind string) (*model.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[kind]
	return r, ok
}

func (s *Server) kinds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := make([]string, 0, len(s.reports))
	for k := range s.reports {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/reports", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.kinds())
	}).Methods("GET")
	r.HandleFunc("/reports/{kind}", func(w http.ResponseWriter, r *http.Request) {
		report, ok := s.report(mux.Vars(r)["kind"])
		if !ok {
			http.Error(w, "report not found", http.StatusNotFound)
			return
		}
		writeJSON(w, report)
	}).Methods("GET")
	r.HandleFunc("/reports/{kind}/quantiles/{q}", func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		report, ok := s.report(vars["kind"])
		if !ok {
			http.Error(w, "report not found", http.StatusNotFound)
			return
		}
		q, err := strconv.ParseFloat(vars["q"], 64)
		if err != nil {
			http.Error(w, "invalid quantile", http.StatusBadRequest)
			return
		}
		v, ok := report.Quantile(q)
		if !ok {
			http.Error(w, "quantile not computed", http.StatusNotFound)
			return
		}
		writeJSON(w, model.QuantileValue{Quantile: q, Value: v})
	}).Methods("GET")
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods("GET")
	}
	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

// Start begins serving HTTP and gRPC on the configured addresses.
func (s *Server) Start(cfg config.APIConfig) error {
	lis, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCListenAddr, err)
	}
	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	go func() {
		log.Infof("gRPC health server starting on %s", cfg.GRPCListenAddr)
		if err := s.grpcServer.Serve(lis); err != nil {
			log.Errorf("Failed to serve gRPC: %v", err)
		}
	}()

	s.httpServer = &http.Server{
		Addr:    cfg.HTTPListenAddr,
		Handler: s.Handler(),
	}
	go func() {
		log.Infof("HTTP report server starting on %s", cfg.HTTPListenAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("HTTP server error: %v", err)
		}
	}()
	return nil
}

// Shutdown stops both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Close implements model.Writer.
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}
