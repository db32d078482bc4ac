// Package metrics exposes the indexer and query counters on a dedicated registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arisan"

// Metrics 指标集合。所有方法在 nil 接收者上都是空操作
type Metrics struct {
	registry *prometheus.Registry

	eventsApplied   *prometheus.CounterVec
	anomalies       *prometheus.CounterVec
	blocksApplied   prometheus.Counter
	rpcRetries      *prometheus.CounterVec
	queryRequests   *prometheus.CounterVec
	queryFallbacks  *prometheus.CounterVec
	queryFailures   *prometheus.CounterVec
	checkpointBlock prometheus.Gauge
	chainHead       prometheus.Gauge
	headLag         prometheus.Gauge
	syncDuration    prometheus.Histogram
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		eventsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_applied_total",
			Help:      "ledger events applied to the derived store",
		}, []string{"contract", "event"}),
		anomalies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "events skipped or patched because of an ordering or decoding anomaly",
		}, []string{"kind"}),
		blocksApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_applied_total",
			Help:      "blocks committed together with the checkpoint",
		}),
		rpcRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_retries_total",
			Help:      "retried ledger RPC calls",
		}, []string{"method"}),
		queryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_requests_total",
			Help:      "queries answered, by serving source",
		}, []string{"query", "source"}),
		queryFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_fallbacks_total",
			Help:      "queries retried against the ledger after the store failed",
		}, []string{"query"}),
		queryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_failures_total",
			Help:      "queries that failed on every enabled source",
		}, []string{"query"}),
		checkpointBlock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkpoint_block",
			Help:      "last block fully applied to the derived store",
		}),
		chainHead: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chain_head_block",
			Help:      "latest confirmed block reported by the node",
		}),
		headLag: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "head_lag_blocks",
			Help:      "confirmed head minus checkpoint",
		}),
		syncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "duration of one indexer sync run",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) EventApplied(contract, name string) {
	if m == nil {
		return
	}
	m.eventsApplied.WithLabelValues(contract, name).Inc()
}

func (m *Metrics) Anomaly(kind string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(kind).Inc()
}

func (m *Metrics) BlockApplied(block uint64) {
	if m == nil {
		return
	}
	m.blocksApplied.Inc()
	m.checkpointBlock.Set(float64(block))
}

func (m *Metrics) RPCRetry(method string) {
	if m == nil {
		return
	}
	m.rpcRetries.WithLabelValues(method).Inc()
}

func (m *Metrics) QueryServed(query, source string) {
	if m == nil {
		return
	}
	m.queryRequests.WithLabelValues(query, source).Inc()
}

func (m *Metrics) QueryFallback(query string) {
	if m == nil {
		return
	}
	m.queryFallbacks.WithLabelValues(query).Inc()
}

func (m *Metrics) QueryFailed(query string) {
	if m == nil {
		return
	}
	m.queryFailures.WithLabelValues(query).Inc()
}

// SetHead records the confirmed head, the checkpoint and the lag between them.
func (m *Metrics) SetHead(head, checkpoint uint64) {
	if m == nil {
		return
	}
	m.chainHead.Set(float64(head))
	m.checkpointBlock.Set(float64(checkpoint))
	lag := 0.0
	if head > checkpoint {
		lag = float64(head - checkpoint)
	}
	m.headLag.Set(lag)
}

func (m *Metrics) ObserveSync(seconds float64) {
	if m == nil {
		return
	}
	m.syncDuration.Observe(seconds)
}
