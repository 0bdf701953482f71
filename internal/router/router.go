package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/lexdesk/officeauth/api/handler"
)

type Handlers struct {
	Auth   *apiHandler.AuthHandler
	Access *apiHandler.AccessHandler
	Health *apiHandler.HealthHandler
	// Metrics is mounted on /metrics when set.
	Metrics fasthttp.RequestHandler
	// Pprof is mounted under /debug/pprof when set.
	Pprof fasthttp.RequestHandler
}

// Instrumenter wraps a handler with per-route metrics.
type Instrumenter func(route string, next fasthttp.RequestHandler) fasthttp.RequestHandler

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler, instrument Instrumenter) *router.Router {
	if instrument == nil {
		instrument = func(_ string, next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}
	if handlers.Pprof != nil {
		r.GET("/debug/pprof/{profile:*}", handlers.Pprof)
	}

	public := func(method, path string, h fasthttp.RequestHandler) {
		r.Handle(method, path, instrument(path, h))
	}
	protected := func(method, path string, h fasthttp.RequestHandler) {
		r.Handle(method, path, instrument(path, authMiddleware(h)))
	}

	public(fasthttp.MethodPost, "/api/v1/auth/register", handlers.Auth.Register)
	public(fasthttp.MethodPost, "/api/v1/auth/login", handlers.Auth.Login)
	public(fasthttp.MethodPost, "/api/v1/auth/refresh", handlers.Auth.Refresh)

	protected(fasthttp.MethodPost, "/api/v1/auth/logout", handlers.Auth.Logout)
	protected(fasthttp.MethodGet, "/api/v1/auth/me", handlers.Access.Me)
	protected(fasthttp.MethodGet, "/api/v1/auth/permissions", handlers.Access.Permissions)
	protected(fasthttp.MethodGet, "/api/v1/billing/payment-status", handlers.Access.PaymentStatus)

	return r
}
