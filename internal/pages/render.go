package pages

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"lmsgate/internal/session"
	"lmsgate/pkg/platform/httputil"
	"lmsgate/pkg/requestcontext"
)

//go:embed templates/page.html
var pageTemplate string

// Themes accepted by the renderer.
var Themes = []string{"light", "dark", "high-contrast"}

// Course is one entry of the course-card list.
type Course struct {
	Code  string
	Title string
}

type viewData struct {
	Page    Page
	Theme   string
	Subject string
	Next    string
	Nav     []Page
	Courses []Course
}

// Renderer turns catalog pages into HTML. The theme is fixed when the
// renderer is built and shared by every request.
type Renderer struct {
	tmpl   *template.Template
	theme  string
	pages  []Page
	logger *slog.Logger
}

// NewRenderer parses the page template for theme. pages feeds the dashboard
// navigation.
func NewRenderer(theme string, pages []Page, logger *slog.Logger) (*Renderer, error) {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if !slices.Contains(Themes, theme) {
		return nil, fmt.Errorf("unknown theme %q", theme)
	}
	tmpl, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{tmpl: tmpl, theme: theme, pages: pages, logger: logger}, nil
}

// Theme returns the theme every page is rendered with.
func (rn *Renderer) Theme() string {
	return rn.theme
}

// Handler renders p. On dashboard pages the authenticated subject is shown and
// navigation lists the dashboard pages the caller's roles admit.
func (rn *Renderer) Handler(p Page) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		data := viewData{Page: p, Theme: rn.theme}

		if p.Gated() {
			data.Subject = requestcontext.Subject(ctx)
			claim, _ := session.FromContext(ctx)
			data.Nav = rn.navFor(claim)
		}
		if p.Path == "/login" {
			data.Next = localNext(r.URL.Query().Get("next"))
		}

		var buf bytes.Buffer
		if err := rn.tmpl.Execute(&buf, data); err != nil {
			rn.logger.ErrorContext(ctx, "failed to render page",
				"request_id", requestcontext.RequestID(ctx),
				"path", p.Path,
				"error", err,
			)
			httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'")
		if p.Gated() {
			w.Header().Set("Cache-Control", "no-store")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	})
}

func (rn *Renderer) navFor(claim *session.Claim) []Page {
	var nav []Page
	for _, p := range rn.pages {
		if !p.Gated() {
			continue
		}
		if claim == nil && len(p.Roles) > 0 {
			continue
		}
		if claim != nil && !claim.HasAnyRole(p.Roles) {
			continue
		}
		nav = append(nav, p)
	}
	return nav
}

// localNext keeps a post-login target only when it stays on this site.
func localNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}
