package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bledemo",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the demo server",
		},
		[]string{"route", "method", "code"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bledemo",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests handled by the demo server",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bledemo",
			Name:      "store_operations_total",
			Help:      "Flat-file store operations by list, operation and result",
		},
		[]string{"list", "op", "result"},
	)

	storeEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "bledemo",
			Name:      "store_entries",
			Help:      "Number of entries in each persisted list after the last write",
		},
		[]string{"list"},
	)

	ipBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bledemo",
			Name:      "ip_blocked_total",
			Help:      "Requests refused by the CIDR blocklist, by matching range",
		},
		[]string{"cidr"},
	)

	wsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bledemo",
			Name:      "websocket_rejected_total",
			Help:      "WebSocket requests answered with the demo-mode 404",
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(requestTotal, requestDuration, storeOps, storeEntries, ipBlocked, wsRejected)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(route, method, code string, d time.Duration) {
	requestTotal.WithLabelValues(route, method, code).Inc()
	requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func ObserveStoreOp(list, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOps.WithLabelValues(list, op, result).Inc()
}

func SetStoreEntries(list string, n int) {
	storeEntries.WithLabelValues(list).Set(float64(n))
}

func IncIPBlocked(cidr string) {
	ipBlocked.WithLabelValues(cidr).Inc()
}

func IncWebSocketRejected() {
	wsRejected.Inc()
}
