package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmsgate/internal/authlog"
	"lmsgate/pkg/testutil"
)

func newRouter(logs *bytes.Buffer) chi.Router {
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	h := New(authlog.NewRecorder(logger, nil, nil), logger)
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestHandleLog(t *testing.T) {
	testutil.Given(t, "a JSON auth event", func(t *testing.T) {
		var logs bytes.Buffer
		router := newRouter(&logs)

		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(t, http.MethodPost, "/api/auth/log", `{"event":"login","userId":"u1"}`))

		testutil.Then(t, "it is acknowledged", func(t *testing.T) {
			testutil.AssertStatusOK(t, rr)
			assert.JSONEq(t, `{"success":true}`, rr.Body.String())
		})
		testutil.Then(t, "one auth event line carries the fields and a timestamp", func(t *testing.T) {
			var line map[string]any
			require.NoError(t, json.Unmarshal(logs.Bytes(), &line))
			assert.Equal(t, "auth event", line["msg"])
			fields := line["fields"].(map[string]any)
			assert.Equal(t, "login", fields["event"])
			assert.Equal(t, "u1", fields["userId"])
			assert.NotEmpty(t, fields["timestamp"])
		})
	})

	testutil.Given(t, "an unparseable body", func(t *testing.T) {
		var logs bytes.Buffer
		rr := testutil.DoRequest(newRouter(&logs), testutil.NewRequestWithBody(t, http.MethodPost, "/api/auth/log", `{not json`))

		testutil.Then(t, "it fails with 500 and success=false", func(t *testing.T) {
			testutil.AssertStatus(t, rr, http.StatusInternalServerError)
			assert.JSONEq(t, `{"success":false}`, rr.Body.String())
			assert.Contains(t, logs.String(), "rejected auth event")
		})
	})

	testutil.Given(t, "an empty body", func(t *testing.T) {
		var logs bytes.Buffer
		rr := testutil.DoRequest(newRouter(&logs), testutil.NewRequestWithBody(t, http.MethodPost, "/api/auth/log", ""))

		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
		assert.JSONEq(t, `{"success":false}`, rr.Body.String())
	})

	testutil.Given(t, "an oversized body", func(t *testing.T) {
		var logs bytes.Buffer
		big := `{"blob":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
		rr := testutil.DoRequest(newRouter(&logs), testutil.NewRequestWithBody(t, http.MethodPost, "/api/auth/log", big))

		testutil.AssertStatus(t, rr, http.StatusInternalServerError)
		assert.JSONEq(t, `{"success":false}`, rr.Body.String())
		assert.NotContains(t, logs.String(), `"msg":"auth event"`)
	})

	testutil.Given(t, "a GET request", func(t *testing.T) {
		var logs bytes.Buffer
		rr := testutil.DoRequest(newRouter(&logs), testutil.NewRequest(t, http.MethodGet, "/api/auth/log"))

		testutil.AssertStatus(t, rr, http.StatusMethodNotAllowed)
	})
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, []byte) (authlog.Entry, error) {
	return authlog.Entry{}, authlog.ErrInvalidJSON
}

func TestHandleLog_RecorderErrorNeverPanics(t *testing.T) {
	h := New(failingRecorder{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rr := testutil.DoRequest(http.HandlerFunc(h.HandleLog), testutil.NewRequestWithBody(t, http.MethodPost, "/api/auth/log", `{}`))

	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	testutil.AssertJSONContains(t, rr, "success", false)
}
