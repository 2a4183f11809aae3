package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTP metrics use bounded labels: method, the registered Gin route (or
// "unmatched") and status, where 499 marks a poller that hung up. Long-poll
// latency is kept in its own histogram and its in-flight count under its own
// kind, apart from regular API calls.
const (
	metricsNamespace = "carry"
	unmatchedRoute   = "unmatched"
	longPollSuffix   = "/notifications/longpoll"

	kindAPI      = "api"
	kindLongPoll = "longpoll"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of non-long-poll HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	longPollLat = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_longpoll_duration_seconds",
			Help:      "Time a long-poll request was held open, in seconds.",
			Buckets:   []float64{0.05, 0.25, 1, 2.5, 5, 10, 20, 30, 45, 60},
		},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_inflight",
			Help:      "Requests currently being served, by kind (api or longpoll).",
		},
		[]string{"kind"},
	)

	// Buckets span small JSON bodies up to listing pages with embedded images.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_response_size_bytes",
			Help:      "Size of HTTP responses in bytes.",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 9), // 128B .. 8MiB
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, longPollLat, httpInflight, httpRespSize)
}

// isLongPoll reports whether the request targets the notification long-poll,
// under any API prefix.
func isLongPoll(path string) bool {
	return strings.HasSuffix(strings.TrimRight(path, "/"), longPollSuffix)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
// Mount /metrics next to it with gin.WrapH(promhttp.Handler()).
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		kind := kindAPI
		if isLongPoll(c.Request.URL.Path) {
			kind = kindLongPoll
		}
		inflight := httpInflight.WithLabelValues(kind)
		inflight.Inc()
		defer inflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method
		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()

		dur := time.Since(start).Seconds()
		if kind == kindLongPoll {
			longPollLat.Observe(dur)
		} else {
			httpLat.WithLabelValues(method, route).Observe(dur)
		}
		// Size is -1 when nothing was written (aborted polls, 204s).
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}
