package testutil

import (
	"context"
	"net/http"
	"time"

	"lmsgate/internal/session"
	"lmsgate/pkg/requestcontext"
)

// WithClaim attaches an authorized claim to the request context.
// This simulates what the access gate does for authorized requests.
func WithClaim(req *http.Request, claim *session.Claim) *http.Request {
	if claim == nil {
		return req
	}
	ctx := session.WithClaim(req.Context(), claim)
	ctx = requestcontext.WithSubject(ctx, claim.Subject)
	ctx = requestcontext.WithSessionID(ctx, claim.SessionID)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
