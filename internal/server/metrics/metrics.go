// Package metrics exports upload and HTTP counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "weavekeeper"

// Metrics is safe to use through a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	uploads        *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	uploadedBytes  prometheus.Counter
	chunks         prometheus.Counter
	priceLookups   *prometheus.CounterVec
	reaped         prometheus.Counter
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// New registers the collectors on reg, or on a fresh registry when reg is nil.
func New(namespace string, reg *prometheus.Registry) (*Metrics, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{registry: reg}
	var err error

	if m.uploads, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Finished upload attempts by operation and final status.",
	}, []string{"operation", "status"})); err != nil {
		return nil, err
	}
	if m.uploadDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_duration_seconds",
		Help:      "Time spent posting a transaction and its chunks.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"operation"})); err != nil {
		return nil, err
	}
	if m.uploadedBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Payload bytes of confirmed uploads.",
	})); err != nil {
		return nil, err
	}
	if m.chunks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chunks_uploaded_total",
		Help:      "Chunk upload steps completed.",
	})); err != nil {
		return nil, err
	}
	if m.priceLookups, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_lookups_total",
		Help:      "Price estimates by cache result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if m.reaped, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaped_uploads_total",
		Help:      "Uploads moved from processing to failed after timing out.",
	})); err != nil {
		return nil, err
	}
	if m.requests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern and status code.",
	}, []string{"method", "route", "code"})); err != nil {
		return nil, err
	}
	if m.requestLatency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})); err != nil {
		return nil, err
	}

	return m, nil
}

// register reuses an identical collector that is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordUpload counts a finished submit or retry.
func (m *Metrics) RecordUpload(operation, status string, duration time.Duration, size int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(operation, status).Inc()
	m.uploadDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if status == "confirmed" && size > 0 {
		m.uploadedBytes.Add(float64(size))
	}
}

func (m *Metrics) RecordChunk() {
	if m == nil {
		return
	}
	m.chunks.Inc()
}

func (m *Metrics) RecordPriceLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.priceLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordReaped(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.reaped.Add(float64(n))
}

func (m *Metrics) RecordRequest(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}
