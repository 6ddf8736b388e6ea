// Package metrics exposes the counters spec.md §7 calls for ("a counter
// incremented on each observed violation, exposed for operational
// observability") plus the throughput counters a production deployment of
// this protocol would want. Grounded on github.com/prometheus/client_golang,
// a dependency the teacher itself carries for its own metrics, independently
// also used by runZeroInc-conniver in the retrieval pack.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector this binary exports.
type Metrics struct {
	FilesSent          prometheus.Counter
	FilesReceived       prometheus.Counter
	BytesSent          prometheus.Counter
	BytesReceived      prometheus.Counter
	ProtocolViolations prometheus.Counter
	SenderWorkers      prometheus.Gauge
	ReceiverWorkers    prometheus.Gauge

	registry *prometheus.Registry
}

// New constructs a Metrics with its own registry (not the global default,
// so tests can construct more than one without a "duplicate registration"
// panic) and registers every collector on it.
func New() *Metrics {
	m := &Metrics{
		FilesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peerdrop", Name: "files_sent_total",
			Help: "Files queued for transmission to the peer.",
		}),
		FilesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peerdrop", Name: "files_received_total",
			Help: "Files fully received and settled from the peer.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peerdrop", Name: "bytes_sent_total",
			Help: "Bytes written to PAKG packets sent to the peer.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peerdrop", Name: "bytes_received_total",
			Help: "Bytes written to disk from PAKG packets received from the peer.",
		}),
		ProtocolViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "peerdrop", Name: "protocol_violations_total",
			Help: "Malformed or truncated payloads observed on any connection.",
		}),
		SenderWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "peerdrop", Name: "sender_workers",
			Help: "Current size of the sender worker pool.",
		}),
		ReceiverWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "peerdrop", Name: "receiver_workers",
			Help: "Current size of the receiver worker pool.",
		}),
		registry: prometheus.NewRegistry(),
	}
	m.registry.MustRegister(
		m.FilesSent, m.FilesReceived, m.BytesSent, m.BytesReceived,
		m.ProtocolViolations, m.SenderWorkers, m.ReceiverWorkers,
	)
	return m
}

// Server binds addr and returns a service ready to Serve, exposing this
// Metrics' collectors at /metrics. Binding happens eagerly so a port
// conflict surfaces as a startup error rather than a silent background
// failure.
func (m *Metrics) Server(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return &Server{ln: ln, srv: &http.Server{Handler: mux}}, nil
}

// Server is a bound, not-yet-serving metrics HTTP endpoint.
type Server struct {
	ln  net.Listener
	srv *http.Server
}

// Serve runs the HTTP server until ctx is canceled. It implements
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
