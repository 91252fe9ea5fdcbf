package pages

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lmsgate/internal/gate"
)

// Guard wraps a handler so that it only runs for callers meeting req.
type Guard interface {
	Protect(req gate.Requirement) func(http.Handler) http.Handler
}

// Mount registers every page on r. Dashboard pages are always wrapped by
// guard; a nil guard is refused rather than serving them unprotected.
// With a guard, unknown paths below the dashboard are gated before they 404.
func Mount(r chi.Router, guard Guard, rn *Renderer, pages []Page) error {
	if err := Validate(pages); err != nil {
		return err
	}
	if rn == nil {
		return errors.New("renderer is required")
	}

	for _, p := range pages {
		h := rn.Handler(p)
		if p.Gated() {
			if guard == nil {
				return fmt.Errorf("%w: %q needs a guard", ErrInvalidCatalog, p.Path)
			}
			h = guard.Protect(p.Requirement())(h)
		}
		r.Method(http.MethodGet, p.Path, h)
	}

	if guard != nil {
		r.With(guard.Protect(gate.AnyAuthenticated())).Get(DashboardPrefix+"/*", http.NotFound)
	}
	return nil
}
