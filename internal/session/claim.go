package session

import (
	"context"
	"slices"
	"strings"
	"time"

	platformstrings "lmsgate/pkg/platform/strings"
)

// Claim is the validated view of a caller's session. The gate only reads it.
type Claim struct {
	Subject   string
	SessionID string
	// TokenID identifies the credential for revocation (JWT jti); may be empty.
	TokenID string
	Roles   []string
	Email   string
	// ExpiresAt is zero when the issuer reported no expiry.
	ExpiresAt time.Time
}

// Expired reports whether the claim is past its expiry at now.
func (c *Claim) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// HasAnyRole reports whether the claim holds at least one of roles.
// Comparison is case-insensitive. An empty roles list is always satisfied.
func (c *Claim) HasAnyRole(roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, want := range roles {
		if slices.Contains(c.Roles, strings.ToLower(strings.TrimSpace(want))) {
			return true
		}
	}
	return false
}

// normalizeRoles lowercases, trims and deduplicates roles, preserving order.
func normalizeRoles(roles []string) []string {
	return platformstrings.Normalize(roles, true)
}

type claimKey struct{}

// WithClaim stores an authorized claim on the context.
func WithClaim(ctx context.Context, c *Claim) context.Context {
	return context.WithValue(ctx, claimKey{}, c)
}

// FromContext returns the claim placed by the access gate, if any.
func FromContext(ctx context.Context) (*Claim, bool) {
	c, ok := ctx.Value(claimKey{}).(*Claim)
	return c, ok && c != nil
}
