package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "relay"

// proxyMetrics contains Prometheus metrics for the relay. Each Proxy owns its
// registry so several instances can coexist in one process (tests do).
type proxyMetrics struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	authDecisions     *prometheus.CounterVec
	upstreamDuration  *prometheus.HistogramVec
	upstreamErrors    prometheus.Counter
	versionCacheTotal *prometheus.CounterVec
}

func newProxyMetrics() *proxyMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	m := &proxyMetrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Total number of requests by route",
			},
			[]string{"route"},
		),
		authDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "decisions_total",
				Help:      "Total number of authorization decisions by outcome",
			},
			[]string{"decision"},
		),
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "upstream",
				Name:      "duration_seconds",
				Help:      "Time until upstream response headers arrive",
				Buckets: []float64{
					.05, .1, .25, .5,
					1, 2.5, 5, 10, 30, 60,
				},
			},
			[]string{"code"},
		),
		upstreamErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "upstream",
				Name:      "errors_total",
				Help:      "Total number of forwarding failures",
			},
		),
		versionCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "version_cache",
				Name:      "lookups_total",
				Help:      "Total number of release manifest cache lookups by result",
			},
			[]string{"result"},
		),
	}

	// Pre-populate label values so the series exist right after startup.
	for _, route := range []string{routeOptions, routeFavicon, routeVersion, routeRoot, routeProxy} {
		m.requestsTotal.WithLabelValues(route)
	}
	for _, d := range []string{
		PassThrough.String(), PreAuthorized.String(), InjectKey.String(),
		decisionDenied, decisionIllegal,
	} {
		m.authDecisions.WithLabelValues(d)
	}
	m.versionCacheTotal.WithLabelValues("hit")
	m.versionCacheTotal.WithLabelValues("miss")

	return m
}

const (
	decisionDenied  = "denied"
	decisionIllegal = "illegal"
)
