package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"sygus/internal/oracle"
)

const (
	StatusLabel  = "status"
	OutcomeLabel = "outcome"
)

// Recorder exports search counters on its own registry so tests and
// concurrent runs never collide with the default one.
type Recorder struct {
	registry *prometheus.Registry

	iterations    prometheus.Counter
	expansions    prometheus.Counter
	verifications *prometheus.CounterVec
	oracleLatency prometheus.Histogram
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sygus_search_iterations_total",
				Help: "Partial programs popped from the frontier",
			},
		),
		expansions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sygus_search_expansions_total",
				Help: "Children produced by hole expansion",
			},
		),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sygus_oracle_verifications_total",
				Help: "Oracle queries by verdict",
			},
			[]string{StatusLabel},
		),
		oracleLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sygus_oracle_duration_seconds",
				Help:    "Latency of a single candidate verification",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sygus_runs_total",
				Help: "Finished synthesis runs by outcome",
			},
			[]string{OutcomeLabel},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sygus_run_duration_seconds",
				Help:    "Wall time of a synthesis run",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
	}
	r.registry.MustRegister(r.iterations, r.expansions, r.verifications, r.oracleLatency, r.runs, r.runDuration)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) Iteration() { r.iterations.Inc() }

func (r *Recorder) Expanded(n int) { r.expansions.Add(float64(n)) }

func (r *Recorder) Verified(status oracle.Status, took time.Duration) {
	r.verifications.WithLabelValues(status.String()).Inc()
	r.oracleLatency.Observe(took.Seconds())
}

func (r *Recorder) Finished(outcome string, took time.Duration) {
	r.runs.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
