package core

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics owns a private Prometheus registry tracking the observer's chain
// tips, predicate population, and delivery outcomes (spec.md §6).
type Metrics struct {
	registry *prometheus.Registry
	log      *logrus.Logger

	bitcoinTipHeight  prometheus.Gauge
	stacksTipHeight   prometheus.Gauge
	predicatesActive  prometheus.Gauge
	predicatesExpired prometheus.Gauge
	occurrencesTotal  prometheus.Counter
	deliveryFailures  prometheus.Counter
	reorgsTotal       prometheus.Counter
	reorgDepth        prometheus.Histogram
}

// NewMetrics builds and registers every gauge/counter this module exposes.
func NewMetrics(log *logrus.Logger) *Metrics {
	if log == nil {
		log = logrus.New()
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{registry: reg, log: log}
	m.bitcoinTipHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chainhook_bitcoin_tip_height",
		Help: "Current canonical base-chain tip height.",
	})
	m.stacksTipHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chainhook_stacks_tip_height",
		Help: "Current canonical smart-chain anchor tip height.",
	})
	m.predicatesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chainhook_predicates_active",
		Help: "Number of registered, eligible predicates.",
	})
	m.predicatesExpired = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chainhook_predicates_expired",
		Help: "Number of registered predicates that have expired.",
	})
	m.occurrencesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chainhook_occurrences_total",
		Help: "Total number of predicate occurrences delivered.",
	})
	m.deliveryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chainhook_delivery_failures_total",
		Help: "Total number of occurrence deliveries that exhausted their retries.",
	})
	m.reorgsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chainhook_reorgs_total",
		Help: "Total number of chain reorganizations observed across both chains.",
	})
	m.reorgDepth = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chainhook_reorg_depth_blocks",
		Help:    "Depth, in blocks, of observed reorganizations.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8),
	})

	reg.MustRegister(
		m.bitcoinTipHeight,
		m.stacksTipHeight,
		m.predicatesActive,
		m.predicatesExpired,
		m.occurrencesTotal,
		m.deliveryFailures,
		m.reorgsTotal,
		m.reorgDepth,
	)
	return m
}

// Handler returns the HTTP handler promhttp serves this registry's metrics
// through.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetBitcoinTip(height uint64)  { m.bitcoinTipHeight.Set(float64(height)) }
func (m *Metrics) SetStacksTip(height uint64)   { m.stacksTipHeight.Set(float64(height)) }
func (m *Metrics) SetPredicateCounts(active, expired int) {
	m.predicatesActive.Set(float64(active))
	m.predicatesExpired.Set(float64(expired))
}
func (m *Metrics) IncOccurrence()      { m.occurrencesTotal.Inc() }
func (m *Metrics) IncDeliveryFailure() { m.deliveryFailures.Inc() }

// ObserveReorg records one reorganization of the given depth in blocks.
func (m *Metrics) ObserveReorg(depth int) {
	m.reorgsTotal.Inc()
	m.reorgDepth.Observe(float64(depth))
}

// Serve starts an HTTP server exposing /metrics and blocks until ctx is
// cancelled, mirroring the teacher's StartMetricsServer/ShutdownMetricsServer
// pairing collapsed into one blocking call driven by the caller's context.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
