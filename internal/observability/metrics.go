// Package observability provides Prometheus metrics for the fetch pipeline.
package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the collectors for one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FetchDuration  *prometheus.HistogramVec
	FetchFailures  *prometheus.CounterVec
	PoolsFetched   *prometheus.GaugeVec
	Generation     prometheus.Gauge
	StaleResults   prometheus.Counter
	HandlesOpen    prometheus.Gauge
	SearchDuration prometheus.Histogram
}

// NewMetrics creates collectors registered on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dromadaire"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "source_fetch_duration_seconds",
			Help:      "Pool listing latency per source in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "source_failures_total",
			Help:      "Total number of failed pool listings per source",
		}, []string{"source"}),
		PoolsFetched: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "source_pools",
			Help:      "Number of pools returned by the last successful listing per source",
		}, []string{"source"}),
		Generation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "generation",
			Help:      "Latest fetch generation",
		}),
		StaleResults: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "stale_results_total",
			Help:      "Total number of fetch results discarded because a newer generation started",
		}),
		HandlesOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "clients",
			Name:      "handles_open",
			Help:      "Number of open client handles",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "filter_duration_seconds",
			Help:      "Search filter latency in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFetch(source string, elapsed time.Duration, pools int, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	if err != nil {
		m.FetchFailures.WithLabelValues(source).Inc()
		return
	}
	m.PoolsFetched.WithLabelValues(source).Set(float64(pools))
}

func (m *Metrics) SetGeneration(generation uint64) {
	if m == nil {
		return
	}
	m.Generation.Set(float64(generation))
}

func (m *Metrics) RecordStale() {
	if m == nil {
		return
	}
	m.StaleResults.Inc()
}

func (m *Metrics) SetHandlesOpen(n int) {
	if m == nil {
		return
	}
	m.HandlesOpen.Set(float64(n))
}

func (m *Metrics) ObserveSearch(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(elapsed.Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, m *Metrics, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
