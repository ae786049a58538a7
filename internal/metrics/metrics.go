// Package metrics exposes console-side Prometheus instrumentation: backend
// requests, store refreshes, poll ticks and derived alert counts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attendance_console"

// Metrics holds the console's collectors. A nil *Metrics is valid and
// records nothing, so components can be built without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	refreshes       *prometheus.CounterVec
	storeVersion    *prometheus.GaugeVec
	pollTicks       *prometheus.CounterVec
	alerts          *prometheus.GaugeVec
	devices         *prometheus.GaugeVec
	notifications   *prometheus.CounterVec
}

// New creates a registry with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_refreshes_total",
			Help:      "Store refreshes by resource kind and outcome.",
		}, []string{"store", "outcome"}),
		storeVersion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_version",
			Help:      "Current snapshot version per store.",
		}, []string{"store"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Scheduler ticks by scheduler and whether they ran or were skipped.",
		}, []string{"scheduler", "result"}),
		alerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Alerts shown in the last render by severity.",
		}, []string{"severity"}),
		devices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices",
			Help:      "Device counts as reported by the backend stats endpoint.",
		}, []string{"state"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Transient notifications shown by level.",
		}, []string{"level"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.refreshes,
		m.storeVersion,
		m.pollTicks,
		m.alerts,
		m.devices,
		m.notifications,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one backend request.
func (m *Metrics) ObserveRequest(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveRefresh records a store refresh outcome and the resulting version.
func (m *Metrics) ObserveRefresh(store, outcome string, version uint64) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(store, outcome).Inc()
	m.storeVersion.WithLabelValues(store).Set(float64(version))
}

// ObserveTick records a scheduler tick; result is "run" or "skipped".
func (m *Metrics) ObserveTick(scheduler, result string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(scheduler, result).Inc()
}

// SetAlerts replaces the per-severity alert gauge.
func (m *Metrics) SetAlerts(bySeverity map[string]int) {
	if m == nil {
		return
	}
	m.alerts.Reset()
	for sev, n := range bySeverity {
		m.alerts.WithLabelValues(sev).Set(float64(n))
	}
}

// SetDeviceStats records backend-reported device counts.
func (m *Metrics) SetDeviceStats(total, online, offline int) {
	if m == nil {
		return
	}
	m.devices.WithLabelValues("total").Set(float64(total))
	m.devices.WithLabelValues("online").Set(float64(online))
	m.devices.WithLabelValues("offline").Set(float64(offline))
}

// ObserveNotification counts a shown notification.
func (m *Metrics) ObserveNotification(level string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(level).Inc()
}
