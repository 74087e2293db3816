package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TraceSpectra/internal/model"
)

// Recorder collects the counters of a single aggregation run on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	linesTotal        prometheus.Counter
	malformedTotal    prometheus.Counter
	unrecognizedTotal prometheus.Counter
	filteredTotal     prometheus.Counter
	filesTotal        prometheus.Counter
	eventsTotal       *prometheus.CounterVec
	entities          *prometheus.GaugeVec
	lastEventSeconds  prometheus.Gauge
}

// NewRecorder creates a Recorder and registers its metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		linesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracespectra_lines_total",
			Help: "Trace lines read",
		}),
		malformedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracespectra_malformed_lines_total",
			Help: "Trace lines skipped as malformed",
		}),
		unrecognizedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracespectra_unrecognized_lines_total",
			Help: "Trace lines with an unknown event marker",
		}),
		filteredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracespectra_filtered_lines_total",
			Help: "Trace lines removed by the pre-filter or the time window",
		}),
		filesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracespectra_files_total",
			Help: "Trace files fully processed",
		}),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracespectra_events_total",
				Help: "Parsed events by type",
			},
			[]string{"type"},
		),
		entities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tracespectra_entities",
				Help: "Distinct flows or queue sources tracked by the accumulator",
			},
			[]string{"mode"},
		),
		lastEventSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracespectra_last_event_seconds",
			Help: "Simulation timestamp of the last processed event",
		}),
	}
	r.registry.MustRegister(
		r.linesTotal,
		r.malformedTotal,
		r.unrecognizedTotal,
		r.filteredTotal,
		r.filesTotal,
		r.eventsTotal,
		r.entities,
		r.lastEventSeconds,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// AddLines counts the lines of a processed file by outcome.
func (r *Recorder) AddLines(lines, malformed, unrecognized, filtered int) {
	r.linesTotal.Add(float64(lines))
	r.malformedTotal.Add(float64(malformed))
	r.unrecognizedTotal.Add(float64(unrecognized))
	r.filteredTotal.Add(float64(filtered))
}

// AddEvents counts the events of a processed file by type. lastTime is the
// timestamp of its last event.
func (r *Recorder) AddEvents(c model.EventCounters, lastTime float64) {
	r.eventsTotal.WithLabelValues(model.EventEnqueue.String()).Add(float64(c.Enqueued))
	r.eventsTotal.WithLabelValues(model.EventDequeue.String()).Add(float64(c.Dequeued))
	r.eventsTotal.WithLabelValues(model.EventDrop.String()).Add(float64(c.Dropped))
	r.eventsTotal.WithLabelValues(model.EventReceive.String()).Add(float64(c.Received))
	if c.Total() > 0 {
		r.lastEventSeconds.Set(lastTime)
	}
}

func (r *Recorder) IncFiles() { r.filesTotal.Inc() }

// SetEntities records the number of tracked flows or sources for a mode.
func (r *Recorder) SetEntities(mode string, n int) {
	r.entities.WithLabelValues(mode).Set(float64(n))
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// Handler serves the metrics over HTTP.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
