package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "objsync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"peer", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "objsync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"peer", "method", "path", "status"},
	)
	syncMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "objsync",
			Subsystem: "sync",
			Name:      "messages_total",
			Help:      "Object sync messages by direction and sync type.",
		},
		[]string{"peer", "direction", "sync_type"},
	)
	syncDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "objsync",
			Subsystem: "sync",
			Name:      "dropped_total",
			Help:      "Inbound messages dropped before or during apply.",
		},
		[]string{"peer", "reason"},
	)
	ownershipTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "objsync",
			Subsystem: "ownership",
			Name:      "transitions_total",
			Help:      "Ownership state transitions observed locally.",
		},
		[]string{"peer", "from", "to"},
	)
	liveObjects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "objsync",
			Subsystem: "registry",
			Name:      "objects",
			Help:      "Registered objects.",
		},
		[]string{"peer"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, syncMessages, syncDropped, ownershipTransitions, liveObjects)
	})
}

func RecordHTTPRequest(peer, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(peer, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(peer, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordMessage counts one message; direction is "in" or "out".
func RecordMessage(peer, direction, syncType string) {
	RegisterMetrics()
	syncMessages.WithLabelValues(peer, direction, syncType).Inc()
}

func RecordDropped(peer, reason string) {
	RegisterMetrics()
	syncDropped.WithLabelValues(peer, reason).Inc()
}

func RecordTransition(peer, from, to string) {
	RegisterMetrics()
	ownershipTransitions.WithLabelValues(peer, from, to).Inc()
}

func SetLiveObjects(peer string, n int) {
	RegisterMetrics()
	liveObjects.WithLabelValues(peer).Set(float64(n))
}
