package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"lmsgate/pkg/platform/sentinel"
	"lmsgate/pkg/requestcontext"
)

// tokenClaims is the wire shape of session tokens minted by the identity service.
type tokenClaims struct {
	SessionID string   `json:"sid,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	Email     string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 session tokens.
type JWTVerifier struct {
	signingKey []byte
	issuer     string
	audience   string
}

// NewJWTVerifier creates a verifier. Empty issuer or audience disables that check.
func NewJWTVerifier(signingKey, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Verify implements Verifier. Token time checks use the request clock.
func (v *JWTVerifier) Verify(ctx context.Context, cred Credential) (*Claim, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	parsed, err := jwt.ParseWithClaims(cred.Value, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("session token: %w", sentinel.ErrExpired)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidCredential
	}
	if tc.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}

	return &Claim{
		Subject:   tc.Subject,
		SessionID: tc.SessionID,
		TokenID:   tc.ID,
		Roles:     normalizeRoles(tc.Roles),
		Email:     tc.Email,
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}

// Issue signs a session token for c that expires ttl after now.
// A missing TokenID is filled with a random uuid.
func (v *JWTVerifier) Issue(c Claim, now time.Time, ttl time.Duration) (string, error) {
	jti := c.TokenID
	if jti == "" {
		jti = uuid.NewString()
	}
	rc := jwt.RegisteredClaims{
		Subject:   c.Subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    v.issuer,
		ID:        jti,
	}
	if v.audience != "" {
		rc.Audience = jwt.ClaimStrings{v.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		SessionID:        c.SessionID,
		Roles:            c.Roles,
		Email:            c.Email,
		RegisteredClaims: rc,
	})
	signed, err := token.SignedString(v.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}
