package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"lmsgate/pkg/platform/sentinel"
)

// maxUpstreamBytes bounds how much of an upstream reply is buffered.
const maxUpstreamBytes = 64 << 10

// ErrInvalidIP is returned when the requested address does not parse.
var ErrInvalidIP = errors.New("invalid ip address")

// IPAPIClient queries an ipapi.co compatible geolocation API.
type IPAPIClient struct {
	baseURL *url.URL
	client  *http.Client
	limiter *rate.Limiter
}

// ClientOption configures an IPAPIClient.
type ClientOption func(*IPAPIClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(ic *IPAPIClient) {
		if c != nil {
			ic.client = c
		}
	}
}

// WithRateLimit bounds outbound calls. rate.Inf disables the limit.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(ic *IPAPIClient) {
		ic.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewIPAPIClient builds a client for baseURL. The default outbound budget is
// one request per second with a burst of five, which keeps a shared gateway
// inside the upstream free tier.
func NewIPAPIClient(baseURL string, timeout time.Duration, opts ...ClientOption) (*IPAPIClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ipapi base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("ipapi base url must be absolute http(s), got %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	c := &IPAPIClient{
		baseURL: u,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 3 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   3 * time.Second,
				ResponseHeaderTimeout: timeout,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   2,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup returns the upstream JSON document for ip. An empty ip asks the
// upstream about the gateway's own egress address.
func (c *IPAPIClient) Lookup(ctx context.Context, ip string) (json.RawMessage, error) {
	path := "/json/"
	if ip != "" {
		addr, err := netip.ParseAddr(strings.TrimSpace(ip))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
		}
		if addr.Zone() != "" {
			return nil, fmt.Errorf("%w: zoned address %q", ErrInvalidIP, ip)
		}
		path = "/" + addr.String() + "/json/"
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: ipapi rate limit: %v", sentinel.ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build ipapi request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "lmsgate/"+Version)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ipapi request: %v", sentinel.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read ipapi response: %v", sentinel.ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: ipapi status %d", sentinel.ErrUnavailable, resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: ipapi returned malformed json", sentinel.ErrUnavailable)
	}
	return json.RawMessage(body), nil
}
