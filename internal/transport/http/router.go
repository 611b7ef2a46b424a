// Package httptransport assembles the chi router and the middleware stack.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"attestor/pkg/platform/middleware/admin"
	"attestor/pkg/platform/middleware/metadata"
	"attestor/pkg/platform/middleware/ratelimit"
	"attestor/pkg/platform/middleware/request"
	"attestor/pkg/platform/middleware/requesttime"
	"attestor/pkg/validation"
)

// Registrar is implemented by every handler package.
type Registrar interface {
	Register(r chi.Router)
}

type Config struct {
	RequestTimeout time.Duration
	AdminToken     string
	ClientIP       metadata.Config
}

// Routes groups handlers by who may call them.
type Routes struct {
	Health  Registrar
	Attest  Registrar
	Admin   Registrar
	Metrics http.Handler
}

// NewRouter wires the public, admin and probe endpoints. limiter may be nil.
func NewRouter(cfg Config, routes Routes, limiter *ratelimit.Limiter, latency *request.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(cfg.ClientIP).Handler)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(logger))
	r.Use(request.LatencyMiddleware(latency, routePattern))

	if routes.Health != nil {
		routes.Health.Register(r)
	}
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.RequestTimeout))
		r.Use(request.BodyLimit(validation.MaxBodySize))
		r.Use(request.ContentTypeJSON)
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		if routes.Attest != nil {
			routes.Attest.Register(r)
		}
	})

	if routes.Admin != nil {
		r.Group(func(r chi.Router) {
			r.Use(request.Timeout(cfg.RequestTimeout))
			r.Use(admin.RequireAdminToken(cfg.AdminToken, logger))
			routes.Admin.Register(r)
		})
	}
	return r
}

// routePattern returns the matched chi pattern so path parameters do not
// become metric labels.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
