package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"lmsgate/pkg/requestcontext"
)

// CachingVerifier memoizes successful verifications for a short TTL so that
// page navigation does not hit the identity provider on every request.
// Failures are never cached. An entry never outlives the claim's own expiry.
type CachingVerifier struct {
	next  Verifier
	ttl   time.Duration
	cache *gocache.Cache
}

// NewCachingVerifier wraps next with a claim cache of the given TTL.
func NewCachingVerifier(next Verifier, ttl time.Duration) *CachingVerifier {
	return &CachingVerifier{
		next:  next,
		ttl:   ttl,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Verify implements Verifier.
func (c *CachingVerifier) Verify(ctx context.Context, cred Credential) (*Claim, error) {
	key := cacheKey(cred)
	if v, found := c.cache.Get(key); found {
		return copyClaim(v.(*Claim)), nil
	}

	claim, err := c.next.Verify(ctx, cred)
	if err != nil {
		return nil, err
	}

	ttl := c.ttl
	if !claim.ExpiresAt.IsZero() {
		remaining := claim.ExpiresAt.Sub(requestcontext.Now(ctx))
		if remaining <= 0 {
			return claim, nil
		}
		ttl = min(ttl, remaining)
	}
	c.cache.Set(key, copyClaim(claim), ttl)
	return claim, nil
}

// Len reports the number of cached claims, including ones awaiting cleanup.
func (c *CachingVerifier) Len() int {
	return c.cache.ItemCount()
}

func cacheKey(cred Credential) string {
	sum := sha256.Sum256([]byte(string(cred.Source) + ":" + cred.Value))
	return hex.EncodeToString(sum[:])
}

func copyClaim(c *Claim) *Claim {
	cp := *c
	cp.Roles = slices.Clone(c.Roles)
	return &cp
}
