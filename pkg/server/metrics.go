package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ammusto/tafarru3/pkg/observability"
)

// Metrics holds the server's Prometheus collectors on a private registry. It
// implements the observability hook interfaces so library packages report
// into it once registered with [Metrics.Register].
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	commits         *prometheus.CounterVec
	nodes           prometheus.Gauge
	edges           prometheus.Gauge
	imports         *prometheus.CounterVec
	exports         *prometheus.CounterVec
	layoutDuration  *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	sessionSaves    *prometheus.CounterVec
	wsClients       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tafarru3_http_requests_total",
				Help: "HTTP requests by route pattern, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tafarru3_http_request_duration_seconds",
				Help:    "HTTP request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tafarru3_store_commits_total",
				Help: "Committed graph store operations",
			},
			[]string{"op"},
		),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tafarru3_nodes",
			Help: "Nodes in the open diagram",
		}),
		edges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tafarru3_edges",
			Help: "Edges in the open diagram",
		}),
		imports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tafarru3_imports_total",
				Help: "Diagram imports by format and result",
			},
			[]string{"format", "result"},
		),
		exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tafarru3_exports_total",
				Help: "Diagram exports by format and result",
			},
			[]string{"format", "result"},
		),
		layoutDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tafarru3_layout_duration_seconds",
				Help:    "Auto-layout latency by placer",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"placer"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tafarru3_cache_lookups_total",
				Help: "Layout cache lookups by result",
			},
			[]string{"key_type", "result"},
		),
		sessionSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tafarru3_session_saves_total",
				Help: "Session saves by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tafarru3_ws_clients",
			Help: "Connected WebSocket clients",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.requestDuration, m.commits, m.nodes, m.edges,
		m.imports, m.exports, m.layoutDuration, m.cacheLookups,
		m.sessionSaves, m.wsClients,
	)
	return m
}

// Register installs m as the global editor, cache and store hooks.
func (m *Metrics) Register() {
	observability.SetEditorHooks(m)
	observability.SetCacheHooks(m)
	observability.SetStoreHooks(m)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// middleware records request counts and latency keyed by chi route pattern.
func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// =============================================================================
// observability hooks
// =============================================================================

func (m *Metrics) OnImportStart(context.Context, string) {}

func (m *Metrics) OnImportComplete(_ context.Context, format string, _ int, _ time.Duration, err error) {
	m.imports.WithLabelValues(format, result(err)).Inc()
}

func (m *Metrics) OnExportComplete(_ context.Context, format string, _ int, _ time.Duration, err error) {
	m.exports.WithLabelValues(format, result(err)).Inc()
}

func (m *Metrics) OnLayoutStart(context.Context, string, int) {}

func (m *Metrics) OnLayoutComplete(_ context.Context, placer string, d time.Duration, _ error) {
	m.layoutDuration.WithLabelValues(placer).Observe(d.Seconds())
}

func (m *Metrics) OnSessionSave(_ context.Context, auto bool, err error) {
	trigger := "manual"
	if auto {
		trigger = "auto"
	}
	m.sessionSaves.WithLabelValues(trigger, result(err)).Inc()
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheLookups.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheLookups.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCommit(op string, nodes, edges int) {
	m.commits.WithLabelValues(op).Inc()
	m.nodes.Set(float64(nodes))
	m.edges.Set(float64(edges))
}

var (
	_ observability.EditorHooks = (*Metrics)(nil)
	_ observability.CacheHooks  = (*Metrics)(nil)
	_ observability.StoreHooks  = (*Metrics)(nil)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack lets the WebSocket upgrade pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
