package gate_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"lmsgate/internal/gate"
	"lmsgate/internal/session"
	"lmsgate/internal/session/mocks"
	"lmsgate/pkg/requestcontext"
)

type countingHandler struct {
	calls   int
	subject string
	claim   *session.Claim
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls++
	h.subject = requestcontext.Subject(r.Context())
	h.claim, _ = session.FromContext(r.Context())
	_, _ = w.Write([]byte("<h1>Dashboard</h1>"))
}

func newProtected(t *testing.T, claim *session.Claim, err error) (http.Handler, *countingHandler) {
	t.Helper()
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(claim, err).Times(1)

	g, gerr := gate.New(resolver, gate.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, gerr)

	child := &countingHandler{}
	return g.Protect(gate.AnyAuthenticated())(child), child
}

func TestProtect_AuthorizedRendersChildOnce(t *testing.T) {
	claim := &session.Claim{Subject: "u1", SessionID: "s1", ExpiresAt: time.Now().Add(time.Hour)}
	handler, child := newProtected(t, claim, nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, child.calls)
	assert.Empty(t, rr.Header().Get("Location"))
	assert.Equal(t, "<h1>Dashboard</h1>", rr.Body.String())
	assert.Equal(t, "u1", child.subject)
	assert.Same(t, claim, child.claim)
}

func TestProtect_RedirectsWithoutRendering(t *testing.T) {
	tests := []struct {
		name  string
		claim *session.Claim
		err   error
	}{
		{"absent claim", nil, session.ErrNoCredential},
		{"expired claim", &session.Claim{Subject: "u1", ExpiresAt: time.Now().Add(-time.Minute)}, nil},
		{"validation error", nil, errors.New("identity provider timeout")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, child := newProtected(t, tt.claim, tt.err)

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

			assert.Equal(t, http.StatusFound, rr.Code)
			assert.Equal(t, "/login?next=%2Fdashboard", rr.Header().Get("Location"))
			assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
			assert.Zero(t, rr.Body.Len(), "nothing is rendered on the current path")
			assert.Zero(t, child.calls)
		})
	}
}
