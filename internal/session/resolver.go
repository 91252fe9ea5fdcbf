package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lmsgate/internal/platform/metrics"
	"lmsgate/pkg/platform/sentinel"
	"lmsgate/pkg/requestcontext"
)

// Resolver produces the session claim of a request. The access gate depends
// only on this interface; any error is treated as "no valid claim".
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (*Claim, error)
}

// Verifier validates a raw credential against an external identity provider.
type Verifier interface {
	Verify(ctx context.Context, cred Credential) (*Claim, error)
}

// RevocationList answers whether a token id has been revoked.
type RevocationList interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// CredentialResolver extracts the credential, verifies it, then consults the
// revocation list when the claim carries a token id.
type CredentialResolver struct {
	extractor   Extractor
	verifier    Verifier
	revocations RevocationList
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures a CredentialResolver.
type Option func(*CredentialResolver)

// WithRevocationList enables revocation checks.
func WithRevocationList(list RevocationList) Option {
	return func(r *CredentialResolver) {
		r.revocations = list
	}
}

// WithMetrics records resolution latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *CredentialResolver) {
		r.metrics = m
	}
}

// WithLogger sets the logger used for lookup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *CredentialResolver) {
		r.logger = logger
	}
}

// NewCredentialResolver builds a resolver over verifier.
func NewCredentialResolver(extractor Extractor, verifier Verifier, opts ...Option) *CredentialResolver {
	r := &CredentialResolver{
		extractor: extractor,
		verifier:  verifier,
		logger:    slog.Default(),
		tracer:    otel.Tracer("lmsgate/session"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve implements Resolver.
func (r *CredentialResolver) Resolve(ctx context.Context, req *http.Request) (*Claim, error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveClaimResolve(time.Since(start).Seconds())
	}()

	cred, err := r.extractor.Extract(req)
	if err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "session.resolve",
		trace.WithAttributes(attribute.String("session.credential_source", string(cred.Source))))
	defer span.End()

	claim, err := r.verifier.Verify(ctx, cred)
	if err != nil {
		r.recordFailure(ctx, span, err)
		return nil, err
	}

	if claim.TokenID != "" && r.revocations != nil {
		revoked, err := r.revocations.IsRevoked(ctx, claim.TokenID)
		if err != nil {
			err = fmt.Errorf("check revocation: %w", err)
			r.recordFailure(ctx, span, err)
			return nil, err
		}
		if revoked {
			span.SetStatus(codes.Error, ErrRevoked.Error())
			return nil, ErrRevoked
		}
	}

	span.SetAttributes(attribute.String("session.subject", claim.Subject))
	return claim, nil
}

func (r *CredentialResolver) recordFailure(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, ErrInvalidCredential) || errors.Is(err, sentinel.ErrExpired) {
		return
	}
	r.logger.WarnContext(ctx, "session lookup failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
