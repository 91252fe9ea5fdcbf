package session

import (
	"net/http"
	"strings"
)

// Source tells where a credential was read from.
type Source string

const (
	SourceCookie Source = "cookie"
	SourceBearer Source = "bearer"
)

// Credential is the raw, unverified session token of a request.
type Credential struct {
	Value  string
	Source Source
}

// Extractor reads the session credential from a request: the session cookie
// first, then an Authorization bearer token.
type Extractor struct {
	CookieName string
}

// Extract returns ErrNoCredential when the request carries neither.
func (e Extractor) Extract(r *http.Request) (Credential, error) {
	if e.CookieName != "" {
		if c, err := r.Cookie(e.CookieName); err == nil && strings.TrimSpace(c.Value) != "" {
			return Credential{Value: strings.TrimSpace(c.Value), Source: SourceCookie}, nil
		}
	}

	authHeader := r.Header.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		if token := strings.TrimSpace(authHeader[7:]); token != "" {
			return Credential{Value: token, Source: SourceBearer}, nil
		}
	}
	return Credential{}, ErrNoCredential
}
