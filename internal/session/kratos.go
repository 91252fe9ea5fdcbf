package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	kratos "github.com/ory/kratos-client-go"

	"lmsgate/pkg/platform/sentinel"
)

// KratosVerifier asks Ory Kratos whoami about the caller's session.
type KratosVerifier struct {
	client     *kratos.APIClient
	cookieName string
	timeout    time.Duration
}

// NewKratosVerifier creates a verifier against the Kratos public API at baseURL.
// cookieName is the name the browser session cookie is forwarded under.
func NewKratosVerifier(baseURL, cookieName string, timeout time.Duration) *KratosVerifier {
	configuration := kratos.NewConfiguration()
	configuration.Servers = []kratos.ServerConfiguration{
		{URL: baseURL},
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	configuration.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}

	return &KratosVerifier{
		client:     kratos.NewAPIClient(configuration),
		cookieName: cookieName,
		timeout:    timeout,
	}
}

// Verify implements Verifier. 401/403 from Kratos mean an invalid session;
// every other failure is reported as unavailable.
func (v *KratosVerifier) Verify(ctx context.Context, cred Credential) (*Claim, error) {
	if cred.Value == "" {
		return nil, ErrNoCredential
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	req := v.client.FrontendAPI.ToSession(ctx)
	if cred.Source == SourceCookie {
		req = req.Cookie(v.cookieName + "=" + cred.Value)
	} else {
		req = req.XSessionToken(cred.Value)
	}

	sess, resp, err := req.Execute()
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, fmt.Errorf("%w: kratos returned status %d", ErrInvalidCredential, resp.StatusCode)
			}
			return nil, fmt.Errorf("%w: kratos returned status %d", sentinel.ErrUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}

	if sess.Active != nil && !*sess.Active {
		return nil, fmt.Errorf("%w: session inactive", ErrInvalidCredential)
	}
	if sess.Identity == nil || sess.Identity.Id == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrInvalidCredential)
	}

	traits, _ := sess.Identity.Traits.(map[string]interface{})
	metadata, _ := sess.Identity.MetadataPublic.(map[string]interface{})

	// Traits are user-editable through self-service settings; roles come
	// from public metadata only.
	roles := stringSlice(metadata["roles"])
	email, _ := traits["email"].(string)

	claim := &Claim{
		Subject:   sess.Identity.Id,
		SessionID: sess.Id,
		Roles:     normalizeRoles(roles),
		Email:     email,
	}
	if sess.ExpiresAt != nil {
		claim.ExpiresAt = *sess.ExpiresAt
	}
	return claim, nil
}

func stringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vals}
	default:
		return nil
	}
}
