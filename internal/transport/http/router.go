package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	authloghandler "lmsgate/internal/authlog/handler"
	discoveryhandler "lmsgate/internal/discovery/handler"
	"lmsgate/internal/pages"
	ratelimitmw "lmsgate/internal/ratelimit/middleware"
	"lmsgate/pkg/platform/httputil"
	"lmsgate/pkg/platform/middleware/admin"
	"lmsgate/pkg/platform/middleware/metadata"
	request "lmsgate/pkg/platform/middleware/request"
	"lmsgate/pkg/platform/middleware/requesttime"
)

// AuthLogRoute is the rate-limit key of the auth-event endpoint.
const AuthLogRoute = "/api/auth/log"

// ReadyCheck reports whether a backing dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Deps is everything the router mounts. AuthLog, Discovery, Renderer and
// Guard are required; the rest are optional.
type Deps struct {
	Logger    *slog.Logger
	Guard     pages.Guard
	Renderer  *pages.Renderer
	Pages     []pages.Page
	AuthLog   *authloghandler.Handler
	Discovery *discoveryhandler.Handler
	// AuthLogLimiter throttles POST /api/auth/log per client IP.
	AuthLogLimiter *ratelimitmw.Middleware
	// Metrics serves /metrics; MetricsToken guards it when set.
	Metrics      http.Handler
	MetricsToken string
	ReadyChecks  map[string]ReadyCheck
}

// NewRouter wires all public endpoints behind the shared middleware chain.
// The returned handler opens a server span per request; probes and scrapes
// are not traced.
func NewRouter(d Deps) (http.Handler, error) {
	if d.AuthLog == nil || d.Discovery == nil || d.Renderer == nil {
		return nil, errors.New("router requires auth log, discovery and page handlers")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(d.ReadyChecks, d.Logger))
	if d.Metrics != nil {
		r.With(admin.RequireToken(d.MetricsToken, d.Logger)).Handle("/metrics", d.Metrics)
	}

	r.Group(func(r chi.Router) {
		if d.AuthLogLimiter != nil {
			r.Use(d.AuthLogLimiter.PerIP(AuthLogRoute))
		}
		d.AuthLog.Register(r)
	})
	d.Discovery.Register(r)

	if err := pages.Mount(r, d.Guard, d.Renderer, d.Pages); err != nil {
		return nil, err
	}
	return otelhttp.NewHandler(r, "lmsgate", otelhttp.WithFilter(traced)), nil
}

func traced(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics":
		return false
	}
	return true
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func readyHandler(checks map[string]ReadyCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := readyResponse{Status: "ok"}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed",
					"check", name,
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				if resp.Checks == nil {
					resp.Checks = map[string]string{}
				}
				resp.Checks[name] = "unavailable"
				resp.Status = "unavailable"
			}
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
