// Package metrics exposes Prometheus counters for sign-ins, profile fallbacks, payment outcomes
// and buffer replays.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/lexdesk/officeauth/domain"
)

const namespace = "officeauth"

// Recorder owns its registry so several instances can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	logins          *prometheus.CounterVec
	profileFallback *prometheus.CounterVec
	payments        *prometheus.CounterVec
	replays         *prometheus.CounterVec
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Credential exchanges by outcome.",
		}, []string{"outcome"}),
		profileFallback: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_fallbacks_total",
			Help:      "Profile resolution fallback steps taken.",
		}, []string{"step"}),
		payments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_evaluations_total",
			Help:      "Payment gate evaluations by resulting status.",
		}, []string{"status"}),
		replays: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_replays_total",
			Help:      "Buffered profile write replays by entity and result.",
		}, []string{"entity", "result"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (r *Recorder) ObserveLogin(outcome string) {
	r.logins.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ProfileFallback(step string) {
	r.profileFallback.WithLabelValues(step).Inc()
}

func (r *Recorder) ObservePayment(status domain.PaymentStatus) {
	r.payments.WithLabelValues(string(status)).Inc()
}

func (r *Recorder) ObserveReplay(entity string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	r.replays.WithLabelValues(entity, result).Inc()
}

// Instrument records count and latency for one route.
func (r *Recorder) Instrument(route string, next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		method := string(ctx.Method())
		r.requests.WithLabelValues(method, route, strconv.Itoa(ctx.Response.StatusCode())).Inc()
		r.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
}

// Registry is exposed for tests and additional collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
