package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/inoxlang/lspcore/internal/jsonrpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const NAMESPACE = "lspcore"

var _ jsonrpc.Observer = (*Metrics)(nil)

// Metrics collects the activity of the JSON-RPC sessions of a server. The collectors are
// registered in a registry owned by the Metrics.
type Metrics struct {
	registry *prometheus.Registry

	MessagesReceived   *prometheus.CounterVec
	RequestsHandled    *prometheus.CounterVec
	RequestsInFlight   prometheus.Gauge
	RequestsIssued     *prometheus.CounterVec
	RequestsTerminated *prometheus.CounterVec
	DroppedProgress    *prometheus.CounterVec
	RateLimited        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "messages_received_total",
			Help:      "Total number of received messages by kind",
		},
		[]string{"kind"},
	)

	m.RequestsHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "requests_handled_total",
			Help:      "Total number of incoming requests whose handling started, by method",
		},
		[]string{"method"},
	)

	m.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: NAMESPACE,
			Name:      "requests_in_flight",
			Help:      "Number of incoming requests being handled",
		},
	)

	m.RequestsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "requests_issued_total",
			Help:      "Total number of outgoing requests by method",
		},
		[]string{"method"},
	)

	m.RequestsTerminated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "requests_terminated_total",
			Help:      "Total number of outgoing requests that reached a terminal state, by method and state",
		},
		[]string{"method", "state"},
	)

	m.DroppedProgress = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "progress_dropped_total",
			Help:      "Total number of dropped $/progress values by reason",
		},
		[]string{"reason"},
	)

	m.RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: NAMESPACE,
			Name:      "requests_rate_limited_total",
			Help:      "Total number of incoming requests rejected by the rate limiter, by method",
		},
		[]string{"method"},
	)

	m.registry.MustRegister(
		m.MessagesReceived,
		m.RequestsHandled,
		m.RequestsInFlight,
		m.RequestsIssued,
		m.RequestsTerminated,
		m.DroppedProgress,
		m.RateLimited,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) MessageReceived(kind jsonrpc.MessageKind) {
	m.MessagesReceived.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) RequestHandlingStarted(method string) {
	m.RequestsHandled.WithLabelValues(method).Inc()
	m.RequestsInFlight.Inc()
}

func (m *Metrics) RequestHandlingEnded(method string) {
	m.RequestsInFlight.Dec()
}

func (m *Metrics) RequestIssued(method string) {
	m.RequestsIssued.WithLabelValues(method).Inc()
}

func (m *Metrics) RequestTerminated(method string, state jsonrpc.RequestState) {
	m.RequestsTerminated.WithLabelValues(method, state.String()).Inc()
}

func (m *Metrics) ProgressDropped(reason string) {
	m.DroppedProgress.WithLabelValues(reason).Inc()
}

func (m *Metrics) RequestRateLimited(method string) {
	m.RateLimited.WithLabelValues(method).Inc()
}

// Handler returns the Prometheus HTTP handler of the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve serves the metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
