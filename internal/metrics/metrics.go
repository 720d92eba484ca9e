// Package metrics holds the prometheus collectors for HTTP traffic and
// network events. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "beacon"

// Metrics groups every collector the service exports.
type Metrics struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	MessagesAccepted   *prometheus.CounterVec
	DuplicatesRejected *prometheus.CounterVec
	DevicesRegistered  prometheus.Counter
	DevicesOffline     prometheus.Counter
	ListingsCreated    prometheus.Counter
	ListingsResolved   *prometheus.CounterVec
	PushNotifications  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		MessagesAccepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_accepted_total",
				Help:      "Messages persisted by the relay.",
			},
			[]string{"kind"},
		),
		DuplicatesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_duplicate_total",
				Help:      "Submissions rejected as duplicates.",
			},
			[]string{"kind"},
		),
		DevicesRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "devices_registered_total",
			Help:      "Devices registered.",
		}),
		DevicesOffline: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "devices_marked_offline_total",
			Help:      "Devices marked offline by the liveness sweep.",
		}),
		ListingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_created_total",
			Help:      "Marketplace listings created.",
		}),
		ListingsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "listings_resolved_total",
				Help:      "Marketplace listings resolved, by terminal status.",
			},
			[]string{"status"},
		),
		PushNotifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_notifications_total",
				Help:      "Web push deliveries by result.",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.MessagesAccepted,
		m.DuplicatesRejected,
		m.DevicesRegistered,
		m.DevicesOffline,
		m.ListingsCreated,
		m.ListingsResolved,
		m.PushNotifications,
	)
	return m
}

// MessageAccepted counts a stored message; kind is "direct" or "broadcast".
func (m *Metrics) MessageAccepted(kind string) {
	if m == nil {
		return
	}
	m.MessagesAccepted.WithLabelValues(kind).Inc()
}

// DuplicateRejected counts a submission refused by deduplication.
func (m *Metrics) DuplicateRejected(kind string) {
	if m == nil {
		return
	}
	m.DuplicatesRejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) DeviceRegistered() {
	if m == nil {
		return
	}
	m.DevicesRegistered.Inc()
}

// DevicesMarkedOffline adds n devices flipped offline by a sweep.
func (m *Metrics) DevicesMarkedOffline(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.DevicesOffline.Add(float64(n))
}

func (m *Metrics) ListingCreated() {
	if m == nil {
		return
	}
	m.ListingsCreated.Inc()
}

func (m *Metrics) ListingResolved(status string) {
	if m == nil {
		return
	}
	m.ListingsResolved.WithLabelValues(status).Inc()
}

// PushResult counts one web push attempt; result is sent, expired or failed.
func (m *Metrics) PushResult(result string) {
	if m == nil {
		return
	}
	m.PushNotifications.WithLabelValues(result).Inc()
}
