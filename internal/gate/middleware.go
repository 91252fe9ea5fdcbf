package gate

import (
	"net/http"

	"lmsgate/internal/session"
	"lmsgate/pkg/requestcontext"
)

// Protect returns middleware that renders next only for authorized callers.
// Any other decision produces a single 302 with an empty body.
func (g *Gate) Protect(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Evaluate(r.Context(), r, req)
			if !d.IsAuthorized() {
				w.Header().Set("Location", d.Target)
				w.Header().Set("Cache-Control", "no-store")
				w.WriteHeader(http.StatusFound)
				return
			}

			ctx := session.WithClaim(r.Context(), d.Claim)
			ctx = requestcontext.WithSubject(ctx, d.Claim.Subject)
			ctx = requestcontext.WithSessionID(ctx, d.Claim.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
