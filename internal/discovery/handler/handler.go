package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lmsgate/internal/discovery"
	"lmsgate/pkg/platform/httputil"
	"lmsgate/pkg/requestcontext"
)

// Lookuper resolves geolocation data for an address.
type Lookuper interface {
	Lookup(ctx context.Context, ip string) (json.RawMessage, error)
}

// Handler serves the discovery document and the proxied services it lists.
type Handler struct {
	ipapi  Lookuper
	logger *slog.Logger
}

// New constructs a discovery handler.
func New(ipapi Lookuper, logger *slog.Logger) *Handler {
	return &Handler{ipapi: ipapi, logger: logger}
}

// Register mounts the discovery routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/proxy", h.HandleDiscover)
	r.Get("/api/proxy/ipapi", h.HandleIPAPI)
}

// HandleDiscover handles GET /api/proxy.
func (h *Handler) HandleDiscover(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, discovery.Describe())
}

// HandleIPAPI handles GET /api/proxy/ipapi?ip=<address>.
func (h *Handler) HandleIPAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := r.URL.Query().Get("ip")

	doc, err := h.ipapi.Lookup(ctx, ip)
	if err != nil {
		if errors.Is(err, discovery.ErrInvalidIP) {
			httputil.WriteError(w, http.StatusBadRequest, "bad_request", "ip must be an IPv4 or IPv6 address")
			return
		}
		h.logger.WarnContext(ctx, "ipapi lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"ip", ip,
			"error", err,
		)
		httputil.WriteError(w, http.StatusBadGateway, "bad_gateway", "")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, doc)
}
