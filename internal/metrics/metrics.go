// Package metrics exposes a Prometheus registry tracking ingestion
// throughput and lag, grounded on core/system_health_logging.go's
// HealthLogger (own registry, explicit MustRegister, promhttp.HandlerFor).
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds every counter/gauge the indexer reports, each one
// per-processor labelled so /metrics distinguishes block_processor from
// lending_contract_processor, etc.
type Metrics struct {
	registry         *prometheus.Registry
	blocksIngested   *prometheus.CounterVec
	processorErrors  *prometheus.CounterVec
	checkpointLagSec *prometheus.GaugeVec
	rangeDuration    *prometheus.HistogramVec
}

// New builds a Metrics with its own registry, matching the teacher's
// NewHealthLogger pattern of never touching prometheus.DefaultRegisterer.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		blocksIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shardindexer_blocks_ingested_total",
			Help: "Blocks written to the store, labelled by processor.",
		}, []string{"processor"}),
		processorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shardindexer_processor_errors_total",
			Help: "Range cycles that failed and were retried, labelled by processor.",
		}, []string{"processor"}),
		checkpointLagSec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shardindexer_checkpoint_lag_seconds",
			Help: "Seconds between the processor's checkpoint and wall-clock time.",
		}, []string{"processor"}),
		rangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shardindexer_range_cycle_duration_seconds",
			Help:    "Time spent polling, linking, and processing one timestamp range.",
			Buckets: prometheus.DefBuckets,
		}, []string{"processor"}),
	}
	reg.MustRegister(m.blocksIngested, m.processorErrors, m.checkpointLagSec, m.rangeDuration)
	return m
}

// ObserveBlocksIngested adds n to the per-processor ingested-block counter.
func (m *Metrics) ObserveBlocksIngested(processor string, n int) {
	if n <= 0 {
		return
	}
	m.blocksIngested.WithLabelValues(processor).Add(float64(n))
}

// ObserveProcessorError increments the per-processor error counter.
func (m *Metrics) ObserveProcessorError(processor string) {
	m.processorErrors.WithLabelValues(processor).Inc()
}

// SetCheckpointLag records the gap between a processor's checkpoint and
// wall-clock time, in seconds.
func (m *Metrics) SetCheckpointLag(processor string, lagSeconds float64) {
	m.checkpointLagSec.WithLabelValues(processor).Set(lagSeconds)
}

// ObserveRangeCycleDuration records how long one (poll, link, process)
// cycle took for processor.
func (m *Metrics) ObserveRangeCycleDuration(processor string, seconds float64) {
	m.rangeDuration.WithLabelValues(processor).Observe(seconds)
}

// StartServer exposes /metrics on addr, mirroring
// HealthLogger.StartMetricsServer's fire-and-forget ListenAndServe.
func (m *Metrics) StartServer(addr string, log *logrus.Logger) *http.Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	return srv
}

// Shutdown gracefully stops srv.
func (m *Metrics) Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
