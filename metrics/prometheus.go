package metrics

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes a Registry as a prometheus.Collector. Metrics are
// created on demand, so the collector is unchecked and describes nothing
// up front.
type Collector struct {
	reg       *Registry
	namespace string
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector reading from reg. Metric names are
// prefixed with namespace when it is not empty.
func NewCollector(reg *Registry, namespace string) *Collector {
	return &Collector{reg: reg, namespace: namespace}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.reg.Counters() {
		name := c.promName(m.Name())
		if !strings.HasSuffix(name, "_total") {
			name += "_total"
		}
		desc := prometheus.NewDesc(name, m.Name(), nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(m.Value()))
	}
	for _, m := range c.reg.Gauges() {
		desc := prometheus.NewDesc(c.promName(m.Name()), m.Name(), nil, nil)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(m.Value()))
	}
	for _, m := range c.reg.Histograms() {
		s := m.Snapshot()
		desc := prometheus.NewDesc(c.promName(m.Name()), m.Name(), nil, nil)
		ch <- prometheus.MustNewConstSummary(desc, uint64(s.Count), s.Sum, nil)
	}
}

// promName converts a dotted or slashed metric name into a valid Prometheus
// metric name.
func (c *Collector) promName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		}
		return '_'
	}, name)
	if c.namespace != "" {
		return c.namespace + "_" + name
	}
	return name
}

// Handler returns an HTTP handler serving reg in the Prometheus text format.
func Handler(reg *Registry, namespace string) (http.Handler, error) {
	pr := prometheus.NewRegistry()
	if err := pr.Register(NewCollector(reg, namespace)); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(pr, promhttp.HandlerOpts{}), nil
}

// Server serves /metrics until closed.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// StartServer begins serving reg on addr at /metrics.
func StartServer(addr string, reg *Registry, namespace string) (*Server, error) {
	h, err := Handler(reg, namespace)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close stops the server.
func (s *Server) Close() error { return s.srv.Close() }
