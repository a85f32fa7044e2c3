// Package metrics exposes Prometheus collectors for feed and transfer activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kickclips"

// Fetch results recorded by ObserveFetch.
const (
	FetchSuccess = "success"
	FetchFailure = "failure"
	FetchStale   = "stale"
)

// Metrics groups the collectors used by the feed engine and download manager.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	feedFetches       *prometheus.CounterVec
	feedFetchDuration prometheus.Histogram
	feedExhausted     prometheus.Counter
	feedClips         prometheus.Counter
	transfersStarted  prometheus.Counter
	transfersFinished *prometheus.CounterVec
	transfersActive   prometheus.Gauge
	registrySize      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		feedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "fetches_total",
			Help:      "Upstream page fetches by result.",
		}, []string{"result"}),
		feedFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of upstream page fetches.",
			Buckets:   prometheus.DefBuckets,
		}),
		feedExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "exhausted_total",
			Help:      "Feed sessions stopped by the consecutive failure threshold.",
		}),
		feedClips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clips_appended_total",
			Help:      "Clips appended to feeds after deduplication.",
		}),
		transfersStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "transfers_started_total",
			Help:      "Transfers handed to the executor.",
		}),
		transfersFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "transfers_finished_total",
			Help:      "Transfers that reached a terminal status.",
		}, []string{"status"}),
		transfersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "transfers_active",
			Help:      "Transfers currently queued or in progress.",
		}),
		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "downloads",
			Name:      "registry_size",
			Help:      "Completed downloads in the registry.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.feedFetches,
			m.feedFetchDuration,
			m.feedExhausted,
			m.feedClips,
			m.transfersStarted,
			m.transfersFinished,
			m.transfersActive,
			m.registrySize,
		)
	}

	return m
}

// ObserveFetch records one upstream fetch.
func (m *Metrics) ObserveFetch(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.feedFetches.WithLabelValues(result).Inc()
	m.feedFetchDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) FeedExhausted() {
	if m == nil {
		return
	}
	m.feedExhausted.Inc()
}

func (m *Metrics) ClipsAppended(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.feedClips.Add(float64(n))
}

func (m *Metrics) TransferStarted() {
	if m == nil {
		return
	}
	m.transfersStarted.Inc()
}

// TransferFinished counts a terminal transition (completed, failed or cancelled).
func (m *Metrics) TransferFinished(status string) {
	if m == nil {
		return
	}
	m.transfersFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) SetActiveTransfers(n int) {
	if m == nil {
		return
	}
	m.transfersActive.Set(float64(n))
}

func (m *Metrics) SetRegistrySize(n int) {
	if m == nil {
		return
	}
	m.registrySize.Set(float64(n))
}
