// Package gate implements the access gate wrapped around every protected page.
//
// Evaluate is a stateless predicate: a request either yields an Authorized
// decision carrying the session claim, or a Redirect decision carrying the
// location to send the caller to. Any failure to establish a valid claim,
// including resolver errors and panics, yields a login Redirect.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lmsgate/internal/platform/metrics"
	"lmsgate/internal/session"
	"lmsgate/pkg/platform/sentinel"
	"lmsgate/pkg/requestcontext"
)

const (
	defaultLoginPath     = "/login"
	defaultForbiddenPath = "/unauthorized"
)

// Gate evaluates protected-page access.
type Gate struct {
	resolver      session.Resolver
	loginPath     string
	forbiddenPath string
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
}

// Option configures a Gate.
type Option func(*Gate)

// WithLoginPath sets the login surface unauthenticated callers are sent to.
func WithLoginPath(path string) Option {
	return func(g *Gate) {
		if path != "" {
			g.loginPath = path
		}
	}
}

// WithForbiddenPath sets where authenticated callers lacking a role are sent.
func WithForbiddenPath(path string) Option {
	return func(g *Gate) {
		if path != "" {
			g.forbiddenPath = path
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// New creates a Gate backed by resolver.
func New(resolver session.Resolver, opts ...Option) (*Gate, error) {
	if resolver == nil {
		return nil, errors.New("session resolver is required")
	}
	g := &Gate{
		resolver:      resolver,
		loginPath:     defaultLoginPath,
		forbiddenPath: defaultForbiddenPath,
		logger:        slog.Default(),
		tracer:        otel.Tracer("lmsgate/gate"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Evaluate decides whether r may see content guarded by req.
func (g *Gate) Evaluate(ctx context.Context, r *http.Request, req Requirement) (d Decision) {
	ctx, span := g.tracer.Start(ctx, "gate.evaluate")
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.ErrorContext(ctx, "access gate panicked, failing closed",
				"panic", fmt.Sprint(rec),
				"request_id", requestcontext.RequestID(ctx),
			)
			d = redirectTo(g.loginTarget(r), ReasonLookupFailed)
		}
		span.SetAttributes(
			attribute.String("gate.outcome", string(d.Outcome)),
			attribute.String("gate.reason", string(d.Reason)),
		)
		span.End()
		g.metrics.ObserveGateDecision(string(d.Outcome), string(d.Reason))
	}()

	claim, err := g.resolver.Resolve(ctx, r)
	if err != nil {
		reason := reasonFor(err)
		if reason == ReasonLookupFailed {
			span.RecordError(err)
			g.logger.WarnContext(ctx, "session lookup failed, redirecting to login",
				"error", err,
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return redirectTo(g.loginTarget(r), reason)
	}
	if claim == nil || claim.Subject == "" {
		return redirectTo(g.loginTarget(r), ReasonInvalid)
	}
	if claim.Expired(requestcontext.Now(ctx)) {
		return redirectTo(g.loginTarget(r), ReasonExpired)
	}
	if !claim.HasAnyRole(req.Roles) {
		g.logger.InfoContext(ctx, "access denied - missing role",
			"subject", claim.Subject,
			"required_roles", req.Roles,
			"path", r.URL.Path,
			"request_id", requestcontext.RequestID(ctx),
		)
		return redirectTo(g.forbiddenPath, ReasonForbidden)
	}
	return authorized(claim)
}

func reasonFor(err error) Reason {
	switch {
	case errors.Is(err, session.ErrNoCredential):
		return ReasonMissing
	case errors.Is(err, sentinel.ErrExpired):
		return ReasonExpired
	case errors.Is(err, session.ErrInvalidCredential), errors.Is(err, session.ErrRevoked):
		return ReasonInvalid
	default:
		return ReasonLookupFailed
	}
}

// loginTarget builds the login location, carrying the original path in
// "next" when it is a same-origin absolute path.
func (g *Gate) loginTarget(r *http.Request) string {
	if r == nil || r.URL == nil {
		return g.loginPath
	}
	next := r.URL.RequestURI()
	if !isLocalPath(next) || next == g.loginPath {
		return g.loginPath
	}
	sep := "?"
	if strings.Contains(g.loginPath, "?") {
		sep = "&"
	}
	return g.loginPath + sep + url.Values{"next": {next}}.Encode()
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
