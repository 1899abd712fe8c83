package observability

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metricSet struct {
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	metadataDegraded           *prometheus.CounterVec
	styleConversions           *prometheus.CounterVec
	styleWrites                *prometheus.CounterVec
	storeOps                   *prometheus.CounterVec
	storeOpDuration            *prometheus.HistogramVec
}

var (
	mu  sync.RWMutex
	set *metricSet
)

func init() {
	set = newMetricSet(prometheus.DefaultRegisterer)
}

// Init swaps the metric set for one registered on reg. With enabled=false
// the collectors still work but are not registered anywhere.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled {
		reg = nil
	}
	ms := newMetricSet(reg)
	mu.Lock()
	set = ms
	mu.Unlock()
}

func current() *metricSet {
	mu.RLock()
	defer mu.RUnlock()
	return set
}

func newMetricSet(reg prometheus.Registerer) *metricSet {
	f := promauto.With(reg)
	return &metricSet{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"method", "route", "status"},
		),
		metadataDegraded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "layer_metadata_degraded_total",
				Help: "Metadata fields replaced by a fallback value, by reason.",
			},
			[]string{"reason"},
		),
		styleConversions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "style_conversions_total",
				Help: "Styles converted between formats on read.",
			},
			[]string{"from", "to"},
		),
		styleWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "style_writes_total",
				Help: "Style write attempts by outcome.",
			},
			[]string{"outcome"},
		),
		storeOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "style_store_op_total",
				Help: "Style store operations by backend, op and result.",
			},
			[]string{"backend", "op", "result"},
		),
		storeOpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "style_store_op_duration_seconds",
				Help:    "Latency of style store operations.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"backend", "op"},
		),
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	m := current()
	st := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	m.httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// IncMetadataDegraded counts a tolerated failure, reason is "schema" or "unit".
func IncMetadataDegraded(reason string) {
	current().metadataDegraded.WithLabelValues(reason).Inc()
}

func IncStyleConversion(from, to string) {
	current().styleConversions.WithLabelValues(from, to).Inc()
}

// IncStyleWrite outcome: created, updated, invalid, failed.
func IncStyleWrite(outcome string) {
	current().styleWrites.WithLabelValues(outcome).Inc()
}

func ObserveStoreOp(backend, op string, err error, durationSeconds float64) {
	m := current()
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeOps.WithLabelValues(backend, op, result).Inc()
	m.storeOpDuration.WithLabelValues(backend, op).Observe(durationSeconds)
}
