package telemetry

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors for the sync core. Registered on the default
// registry; exposed via Handler on /metrics.
var (
	MessagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_messages_appended_total",
		Help: "Messages durably appended to channel logs.",
	})
	ChannelsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_channels_created_total",
		Help: "Channels created, by kind (direct/group).",
	}, []string{"kind"})
	ReactionsMutated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_reactions_mutated_total",
		Help: "Reaction set/clear operations applied.",
	})
	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_live_subscribers",
		Help: "Currently connected tail subscribers.",
	})
	FanoutDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_fanout_dropped_total",
		Help: "Subscribers disconnected for falling behind the replay window.",
	})
	NotifyDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_notify_delivered_total",
		Help: "New-message events handed to the push notifier.",
	})
	NotifyDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_notify_dropped_total",
		Help: "New-message events dropped because the notify queue was full.",
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_http_requests_total",
		Help: "HTTP requests by method and status.",
	}, []string{"method", "status"})
	httpDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatsync_http_request_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	})
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler { return promhttp.Handler() }

// Middleware records request counts and latency for every handler.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		httpDuration.Observe(time.Since(start).Seconds())
		httpRequests.WithLabelValues(r.Method, strconv.Itoa(srw.status)).Inc()
	})
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so websocket upgrades work
// behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
