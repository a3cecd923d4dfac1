// Package metrics exports fetch metrics in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/basecamp/stockstatus/internal/store"
)

// Verify Collector implements store.Hooks at compile time.
var _ store.Hooks = (*Collector)(nil)

// Result label values for stockstatus_fetch_total.
const (
	ResultAvailable   = "available"
	ResultUnavailable = "unavailable"
	ResultEmpty       = "empty"
	ResultError       = "error"
)

// Collector records fetch outcomes as Prometheus metrics.
type Collector struct {
	fetches   *prometheus.CounterVec
	latency   prometheus.Histogram
	available prometheus.Gauge
	lastFetch prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockstatus_fetch_total",
			Help: "Stock fetches by backend and result.",
		}, []string{"backend", "result"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockstatus_fetch_latency_seconds",
			Help:    "Stock fetch latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		available: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockstatus_available",
			Help: "1 when the last successful fetch reported the item available, else 0.",
		}),
		lastFetch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockstatus_last_success_timestamp_seconds",
			Help: "Unix time of the last successful fetch.",
		}),
	}

	reg.MustRegister(c.fetches, c.latency, c.available, c.lastFetch)
	return c
}

// OnFetchStart implements store.Hooks.
func (c *Collector) OnFetchStart(ctx context.Context, _ store.FetchInfo) context.Context {
	return ctx
}

// OnFetchEnd implements store.Hooks.
func (c *Collector) OnFetchEnd(_ context.Context, info store.FetchInfo, result store.FetchResult) {
	c.latency.Observe(result.Duration.Seconds())

	label := ResultError
	switch {
	case result.Error != nil:
	case !result.Found:
		label = ResultEmpty
	case result.Available:
		label = ResultAvailable
	default:
		label = ResultUnavailable
	}
	c.fetches.WithLabelValues(string(info.Backend), label).Inc()

	if result.Error == nil {
		if result.Available {
			c.available.Set(1)
		} else {
			c.available.Set(0)
		}
		c.lastFetch.Set(float64(time.Now().Unix()))
	}
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute returns a mux serving /metrics.
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// Server serves /metrics until its context is cancelled.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr and returns a server ready to Serve.
func Listen(addr string, gatherer prometheus.Gatherer) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		srv: &http.Server{
			Handler:           SetupMetricsRoute(gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln: ln,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until ctx is done, then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
