// Package metrics holds the Prometheus collectors of the DICOMweb service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dicomweb"

// Metrics groups the service collectors
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	CacheLookups    *prometheus.CounterVec
	InstancesStored *prometheus.CounterVec
	StoreOperations *prometheus.HistogramVec
}

// New creates the collectors and registers them, along with the Go and
// process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Instance cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		InstancesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_stored_total",
			Help:      "STOW-RS instances by outcome (stored, failed).",
		}, []string{"outcome"}),
		StoreOperations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "datastore_operation_duration_seconds",
			Help:      "Data store latency by backend and operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.CacheLookups,
		m.InstancesStored,
		m.StoreOperations,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// CacheResult records a cache lookup: "hit", "miss" or "error"
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// Stored records the outcome of storing one instance
func (m *Metrics) Stored(ok bool) {
	if m == nil {
		return
	}
	outcome := "stored"
	if !ok {
		outcome = "failed"
	}
	m.InstancesStored.WithLabelValues(outcome).Inc()
}

// ObserveStore records the latency of a data store call
func (m *Metrics) ObserveStore(store, operation string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreOperations.WithLabelValues(store, operation).Observe(time.Since(start).Seconds())
}
