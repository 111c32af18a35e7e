package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "handbook_http_requests_total",
	Help: "Total number of requests labelled by route and status",
}, []string{"route", "status"})

var stepLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "handbook_pipeline_step_seconds",
	Help:    "Latency of each chat pipeline step.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
}, []string{"step"})

var chatOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "handbook_chat_outcomes_total",
	Help: "Chat requests by outcome (answered, no_context, error).",
}, []string{"outcome"})

var retrievalFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "handbook_retrieval_fallback_total",
	Help: "Times diversity search failed and plain similarity search was used.",
})

const (
	OutcomeAnswered  = "answered"
	OutcomeNoContext = "no_context"
	OutcomeError     = "error"
)

// StatusRecorder captures the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is required by the websocket upgrade.
func (r *StatusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.Status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func CaptureRequest(route string, status int) {
	httpRequestsTotal.WithLabelValues(route, statusLabel(status)).Inc()
}

func CaptureStep(step string, elapsed time.Duration) {
	stepLatency.WithLabelValues(step).Observe(elapsed.Seconds())
}

func CaptureOutcome(outcome string) {
	chatOutcomes.WithLabelValues(outcome).Inc()
}

func CaptureRetrievalFallback() {
	retrievalFallbacks.Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
