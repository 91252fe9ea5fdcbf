package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lmsgate/internal/authlog"
	"lmsgate/pkg/platform/httputil"
	"lmsgate/pkg/requestcontext"
)

// MaxBodyBytes bounds an auth event submission.
const MaxBodyBytes = 64 << 10

// Recorder defines the interface for recording auth events.
type Recorder interface {
	Record(ctx context.Context, body []byte) (authlog.Entry, error)
}

// Response is the acknowledgement returned to the client.
type Response struct {
	Success bool `json:"success"`
}

// Handler serves the auth-event logging endpoint.
type Handler struct {
	recorder Recorder
	logger   *slog.Logger
}

// New constructs an auth-event handler.
func New(recorder Recorder, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

// Register mounts the endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/auth/log", h.HandleLog)
}

// HandleLog handles POST /api/auth/log. Any body that cannot be read or parsed
// is answered with 500 and {"success":false}.
func (h *Handler) HandleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		h.logger.WarnContext(ctx, "failed to read auth event body",
			"request_id", requestID,
			"too_large", errors.As(err, &tooLarge),
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, Response{Success: false})
		return
	}

	if _, err := h.recorder.Record(ctx, body); err != nil {
		h.logger.WarnContext(ctx, "rejected auth event",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, Response{Success: false})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, Response{Success: true})
}
