// Package metrics provides a Prometheus metrics registry for the gateway.
//
// All metrics are scoped to a private registry (not the global default) so
// they don't interfere with host-level metrics when embedded in other
// applications. The /metrics HTTP handler is exposed via Handler().
//
// The registry is a pure read-through presentation layer: Sync copies the
// Analytics Aggregator's counters into the gauges/counters below, and never
// becomes the system of record itself.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/nulpointcorp/ai-gateway/internal/stats"
)

// Registry holds all exported metrics.
type Registry struct {
	reg *prometheus.Registry

	// gateway_inflight_requests
	inFlight prometheus.Gauge

	// gateway_http_requests_total{route,status}
	httpRequestsTotal *prometheus.CounterVec

	// gateway_http_request_duration_seconds{route}
	httpDuration *prometheus.HistogramVec

	// gateway_requests_total{provider} — read-through of stats.RequestStats.ByProvider
	requestsTotal *prometheus.GaugeVec

	// gateway_tokens_total{provider,direction} — read-through of stats.TokenStats
	tokensTotal *prometheus.GaugeVec

	// gateway_cache_hits_total / gateway_cache_misses_total
	cacheHits   prometheus.Gauge
	cacheMisses prometheus.Gauge

	// gateway_provider_errors_total{provider} — read-through of stats.RequestStats.ErrorsByProvider
	providerErrors *prometheus.GaugeVec

	// gateway_failover_events_total{primary,to} — live counter, emitted by the dispatcher
	failoverEvents *prometheus.CounterVec

	// gateway_failover_exhausted_total{primary}
	failoverExhausted *prometheus.CounterVec

	// gateway_ratelimit_total{result} — live counter
	rateLimitTotal *prometheus.CounterVec

	// gateway_provider_health{provider}
	providerHealth *prometheus.GaugeVec

	// gateway_build_info{version}
	buildInfo *prometheus.GaugeVec

	metricsHandler fasthttp.RequestHandler
}

// New builds a Registry with a private, uncontaminated prometheus.Registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	r := &Registry{
		reg: reg,

		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_inflight_requests",
			Help: "Current number of in-flight chat requests handled by the gateway",
		}),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests handled by the gateway",
			},
			[]string{"route", "status"},
		),

		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds, end-to-end",
				Buckets: []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"route"},
		),

		requestsTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_requests_total",
				Help: "Total proxy requests served, by provider",
			},
			[]string{"provider"},
		),

		tokensTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_tokens_total",
				Help: "Token usage totals, by provider and direction",
			},
			[]string{"provider", "direction"},
		),

		cacheHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_cache_hits_total",
			Help: "Total prompt cache hits",
		}),

		cacheMisses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_cache_misses_total",
			Help: "Total prompt cache misses",
		}),

		providerErrors: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_provider_errors_total",
				Help: "Total provider errors, by provider",
			},
			[]string{"provider"},
		),

		failoverEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_failover_events_total",
				Help: "Failover events between providers",
			},
			[]string{"primary", "to"},
		),

		failoverExhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_failover_exhausted_total",
				Help: "Requests that exhausted failover without a successful provider response",
			},
			[]string{"primary"},
		),

		rateLimitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_ratelimit_total",
				Help: "Rate limiter admission decisions",
			},
			[]string{"result"},
		),

		providerHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_provider_health",
				Help: "Provider health status (1=ok, 0=degraded)",
			},
			[]string{"provider"},
		),

		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_build_info",
				Help: "Build information",
			},
			[]string{"version"},
		),
	}

	reg.MustRegister(
		r.inFlight,
		r.httpRequestsTotal,
		r.httpDuration,
		r.requestsTotal,
		r.tokensTotal,
		r.cacheHits,
		r.cacheMisses,
		r.providerErrors,
		r.failoverEvents,
		r.failoverExhausted,
		r.rateLimitTotal,
		r.providerHealth,
		r.buildInfo,
	)

	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	r.metricsHandler = fasthttpadaptor.NewFastHTTPHandler(h)

	return r
}

// Sync overwrites the read-through gauges from a fresh stats.Snapshot. The
// caller is responsible for calling this on some cadence (e.g. before every
// /metrics scrape, or on a ticker) — Sync itself never blocks on I/O.
func (r *Registry) Sync(snap stats.Snapshot) {
	r.cacheHits.Set(float64(snap.Requests.CacheHits))
	r.cacheMisses.Set(float64(snap.Requests.CacheMisses))

	for provider, n := range snap.Requests.ByProvider {
		r.requestsTotal.WithLabelValues(provider).Set(float64(n))
	}
	for provider, n := range snap.Requests.ErrorsByProvider {
		r.providerErrors.WithLabelValues(provider).Set(float64(n))
	}
	for provider, n := range snap.Tokens.InputByProvider {
		r.tokensTotal.WithLabelValues(provider, "input").Set(float64(n))
	}
	for provider, n := range snap.Tokens.OutputByProvider {
		r.tokensTotal.WithLabelValues(provider, "output").Set(float64(n))
	}
}

func (r *Registry) IncInFlight() { r.inFlight.Inc() }
func (r *Registry) DecInFlight() { r.inFlight.Dec() }

// ObserveHTTP records end-to-end HTTP metrics.
func (r *Registry) ObserveHTTP(route string, statusCode int, dur time.Duration) {
	status := strconv.Itoa(statusCode)
	r.httpRequestsTotal.WithLabelValues(route, status).Inc()
	r.httpDuration.WithLabelValues(route).Observe(dur.Seconds())
}

// RecordFailover records one failover hop from the primary to a fallback
// provider.
func (r *Registry) RecordFailover(primary, to string) {
	r.failoverEvents.WithLabelValues(primary, to).Inc()
}

// RecordFailoverExhausted records a request that exhausted every enabled
// provider without success.
func (r *Registry) RecordFailoverExhausted(primary string) {
	r.failoverExhausted.WithLabelValues(primary).Inc()
}

// RecordRateLimit records one admission decision ("allowed" or "denied").
func (r *Registry) RecordRateLimit(result string) {
	r.rateLimitTotal.WithLabelValues(result).Inc()
}

// SetProviderHealth records the dispatcher's latest circuit-breaker verdict
// for a provider.
func (r *Registry) SetProviderHealth(provider string, ok bool) {
	if ok {
		r.providerHealth.WithLabelValues(provider).Set(1)
		return
	}
	r.providerHealth.WithLabelValues(provider).Set(0)
}

// SetBuildInfo publishes the running build's version as a fixed-value gauge
// so the time series always exists.
func (r *Registry) SetBuildInfo(version string) {
	r.buildInfo.WithLabelValues(version).Set(1)
}

// Handler returns the fasthttp handler serving the Prometheus exposition
// format.
func (r *Registry) Handler() fasthttp.RequestHandler {
	return r.metricsHandler
}

// PromRegistry exposes the underlying private registry, e.g. for tests.
func (r *Registry) PromRegistry() *prometheus.Registry { return r.reg }
