// Package metrics exposes Prometheus counters and gauges for the
// publish/subscribe/discovery paths, namespaced "zeroeq" the way the
// teacher namespaces its own metrics under "hierachain".
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter and gauge the fabric records.
type Metrics struct {
	EventsPublished  prometheus.Counter
	PublishFailures  prometheus.Counter
	EventsReceived   *prometheus.CounterVec
	ReceiveFailures  prometheus.Counter
	DiscoveryAdded   prometheus.Counter
	DiscoveryRemoved prometheus.Counter
	ConnectedPeers   prometheus.Gauge
	PollDuration     prometheus.Histogram
}

// DefaultMetrics is registered against the default Prometheus
// registry under the "zeroeq" namespace, mirroring the teacher's
// package-level DefaultMetrics convenience value.
var DefaultMetrics = NewMetrics("zeroeq")

// NewMetrics creates a Metrics instance registered under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of events successfully sent by a publisher.",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Total number of publish attempts that failed to send.",
		}),
		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of events dispatched to a subscriber callback, by event id.",
		}, []string{"event_id"}),
		ReceiveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receive_failures_total",
			Help:      "Total number of socket processing errors observed by the receiver core.",
		}),
		DiscoveryAdded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_instances_added_total",
			Help:      "Total number of discovered peer instances that connected.",
		}),
		DiscoveryRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_instances_removed_total",
			Help:      "Total number of discovered peer instances that disconnected.",
		}),
		ConnectedPeers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_peers",
			Help:      "Current number of connected publisher peers across all subscribers.",
		}),
		PollDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "receive_poll_duration_seconds",
			Help:      "Duration of a single Group.Receive call.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
}

// RecordPublish records the outcome of a single Publish call.
func (m *Metrics) RecordPublish(ok bool) {
	if ok {
		m.EventsPublished.Inc()
		return
	}
	m.PublishFailures.Inc()
}

// RecordReceive records a successfully dispatched event.
func (m *Metrics) RecordReceive(eventID string) {
	m.EventsReceived.WithLabelValues(eventID).Inc()
}

// RecordDiscovery records a peer connect or disconnect transition.
func (m *Metrics) RecordDiscovery(added bool) {
	if added {
		m.DiscoveryAdded.Inc()
	} else {
		m.DiscoveryRemoved.Inc()
	}
}

// Server exposes the process's registered metrics over HTTP.
type Server struct {
	server *http.Server
}

// NewServer builds a metrics HTTP server listening on addr, serving
// /metrics and /healthz.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{server: &http.Server{Addr: addr, Handler: mux}}
}

// Start runs the server, blocking until it fails or is shut down.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
