package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"lmsgate/internal/platform/metrics"
	"lmsgate/internal/ratelimit/models"
	"lmsgate/pkg/platform/httputil"
	"lmsgate/pkg/requestcontext"
)

// BucketStore counts requests per key in a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// Middleware limits requests per client IP.
type Middleware struct {
	store      BucketStore
	limit      int
	window     time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	rejectBody any
}

type Option func(*Middleware)

// WithMetrics counts rejected requests.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

// WithRejectBody replaces the default 429 JSON body.
func WithRejectBody(body any) Option {
	return func(mw *Middleware) {
		mw.rejectBody = body
	}
}

// New creates a limiter allowing limit requests per window per IP.
// A non-positive limit disables limiting.
func New(store BucketStore, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
		rejectBody: httputil.ErrorResponse{
			Error:            "rate_limit_exceeded",
			ErrorDescription: "Too many requests from this IP address. Please try again later.",
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.limit <= 0 {
		logger.Info("rate limiting disabled")
	}
	return m
}

// PerIP returns middleware limiting route by client IP. Store errors fail open.
func (m *Middleware) PerIP(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, err := m.store.Allow(ctx, route+":"+ip, m.limit, m.window)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check IP rate limit",
					"error", err,
					"route", route,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.metrics.IncRateLimited(route)
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"route", route,
					"client_ip", ip,
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, m.rejectBody)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}
