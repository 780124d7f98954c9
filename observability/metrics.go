package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PresaleMetrics tracks request processing and purchase volume on the node.
type PresaleMetrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	purchases   *prometheus.CounterVec
	volume      *prometheus.CounterVec
	allocation  prometheus.Counter
	httpTotal   *prometheus.CounterVec
	subscribers prometheus.Gauge
}

// IndexerMetrics tracks the downstream purchase indexer.
type IndexerMetrics struct {
	ingested   *prometheus.CounterVec
	cursor     prometheus.Gauge
	pollErrors prometheus.Counter
	exports    *prometheus.CounterVec
}

var (
	presaleMetricsOnce sync.Once
	presaleRegistry    *PresaleMetrics

	indexerMetricsOnce sync.Once
	indexerRegistry    *IndexerMetrics
)

// Presale returns the lazily-initialised node metrics registry.
func Presale() *PresaleMetrics {
	presaleMetricsOnce.Do(func() {
		presaleRegistry = &PresaleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "runtime",
				Name:      "requests_total",
				Help:      "Requests processed segmented by instruction and outcome.",
			}, []string{"instruction", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "presale",
				Subsystem: "runtime",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution of request processing.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"instruction"}),
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "sale",
				Name:      "purchases_total",
				Help:      "Accepted purchases segmented by payment currency.",
			}, []string{"currency"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "sale",
				Name:      "payment_units_total",
				Help:      "Payment units received segmented by currency.",
			}, []string{"currency"}),
			allocation: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "sale",
				Name:      "allocation_units_total",
				Help:      "Allocation units recorded across all purchases.",
			}),
			httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests segmented by route, method and status.",
			}, []string{"route", "method", "status"}),
			subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "presale",
				Subsystem: "stream",
				Name:      "subscribers",
				Help:      "Live event stream subscribers.",
			}),
		}
		prometheus.MustRegister(
			presaleRegistry.requests,
			presaleRegistry.latency,
			presaleRegistry.purchases,
			presaleRegistry.volume,
			presaleRegistry.allocation,
			presaleRegistry.httpTotal,
			presaleRegistry.subscribers,
		)
	})
	return presaleRegistry
}

// ObserveRequest records the outcome of a processed request.
func (m *PresaleMetrics) ObserveRequest(instruction, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(instruction, outcome).Inc()
	m.latency.WithLabelValues(instruction).Observe(elapsed.Seconds())
}

// RecordPurchase records an accepted purchase.
func (m *PresaleMetrics) RecordPurchase(currency string, amount, allocation uint64) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(currency).Inc()
	m.volume.WithLabelValues(currency).Add(float64(amount))
	m.allocation.Add(float64(allocation))
}

// ObserveHTTP records a served HTTP request.
func (m *PresaleMetrics) ObserveHTTP(route, method string, status int) {
	if m == nil {
		return
	}
	m.httpTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}

// SetSubscribers records the number of live stream subscribers.
func (m *PresaleMetrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// Indexer returns the lazily-initialised indexer metrics registry.
func Indexer() *IndexerMetrics {
	indexerMetricsOnce.Do(func() {
		indexerRegistry = &IndexerMetrics{
			ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "indexer",
				Name:      "records_total",
				Help:      "Log records ingested segmented by kind.",
			}, []string{"kind"}),
			cursor: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "presale",
				Subsystem: "indexer",
				Name:      "cursor",
				Help:      "Last ingested log sequence.",
			}),
			pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "indexer",
				Name:      "poll_errors_total",
				Help:      "Failed polls of the node log.",
			}),
			exports: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "presale",
				Subsystem: "indexer",
				Name:      "exports_total",
				Help:      "Parquet exports segmented by outcome.",
			}, []string{"outcome"}),
		}
		prometheus.MustRegister(
			indexerRegistry.ingested,
			indexerRegistry.cursor,
			indexerRegistry.pollErrors,
			indexerRegistry.exports,
		)
	})
	return indexerRegistry
}

// RecordIngest records an ingested record and advances the cursor gauge.
func (m *IndexerMetrics) RecordIngest(kind string, seq uint64) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(kind).Inc()
	m.cursor.Set(float64(seq))
}

// RecordPollError counts a failed poll.
func (m *IndexerMetrics) RecordPollError() {
	if m == nil {
		return
	}
	m.pollErrors.Inc()
}

// RecordExport counts an export attempt.
func (m *IndexerMetrics) RecordExport(outcome string) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(outcome).Inc()
}
