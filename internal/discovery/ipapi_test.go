package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"lmsgate/pkg/platform/sentinel"
)

func newUpstream(t *testing.T, status int, body string) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var lastPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastPath.Store(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &lastPath
}

func newClient(t *testing.T, baseURL string) *IPAPIClient {
	t.Helper()
	c, err := NewIPAPIClient(baseURL, time.Second, WithRateLimit(rate.Inf, 1))
	require.NoError(t, err)
	return c
}

func TestLookup_ForwardsAddress(t *testing.T) {
	srv, lastPath := newUpstream(t, http.StatusOK, `{"ip":"8.8.8.8","country":"US"}`)
	c := newClient(t, srv.URL)

	doc, err := c.Lookup(context.Background(), "8.8.8.8")
	require.NoError(t, err)

	assert.JSONEq(t, `{"ip":"8.8.8.8","country":"US"}`, string(doc))
	assert.Equal(t, "/8.8.8.8/json/", lastPath.Load())
}

func TestLookup_EmptyAddressUsesCallerEndpoint(t *testing.T) {
	srv, lastPath := newUpstream(t, http.StatusOK, `{"ip":"203.0.113.9"}`)
	c := newClient(t, srv.URL+"/")

	_, err := c.Lookup(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "/json/", lastPath.Load())
}

func TestLookup_RejectsInvalidAddress(t *testing.T) {
	srv, lastPath := newUpstream(t, http.StatusOK, `{}`)
	c := newClient(t, srv.URL)

	for _, ip := range []string{"not-an-ip", "999.1.1.1", "../admin", "fe80::1%eth0", "::1%/../x"} {
		_, err := c.Lookup(context.Background(), ip)
		assert.ErrorIs(t, err, ErrInvalidIP, ip)
	}
	assert.Nil(t, lastPath.Load(), "invalid input must never reach the upstream")
}

func TestLookup_UpstreamFailures(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		srv, _ := newUpstream(t, http.StatusTooManyRequests, `{"error":true}`)
		_, err := newClient(t, srv.URL).Lookup(context.Background(), "1.1.1.1")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv, _ := newUpstream(t, http.StatusOK, `<html>`)
		_, err := newClient(t, srv.URL).Lookup(context.Background(), "1.1.1.1")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("unreachable upstream", func(t *testing.T) {
		srv, _ := newUpstream(t, http.StatusOK, `{}`)
		url := srv.URL
		srv.Close()
		_, err := newClient(t, url).Lookup(context.Background(), "1.1.1.1")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}

func TestLookup_RateLimitHonoursContext(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusOK, `{}`)
	c, err := NewIPAPIClient(srv.URL, time.Second, WithRateLimit(rate.Every(time.Hour), 1))
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "1.1.1.1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Lookup(ctx, "1.1.1.1")
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestNewIPAPIClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewIPAPIClient("ipapi.co", time.Second)
	assert.Error(t, err)

	_, err = NewIPAPIClient("ftp://ipapi.co", time.Second)
	assert.Error(t, err)
}
