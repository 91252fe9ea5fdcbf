package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lmsgate/pkg/platform/sentinel"
	"lmsgate/pkg/requestcontext"
)

var (
	testNow      = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	jwtVerifier  = NewJWTVerifier("test-signing-key", "test-issuer", "test-audience")
	bearer       = func(token string) Credential { return Credential{Value: token, Source: SourceBearer} }
	ctxAtTestNow = requestcontext.WithTime(context.Background(), testNow)
)

func Test_IssueAndVerify(t *testing.T) {
	token, err := jwtVerifier.Issue(Claim{
		Subject:   "user-1",
		SessionID: "sess-1",
		Roles:     []string{"Student"},
		Email:     "u1@example.com",
	}, testNow, time.Hour)
	require.NoError(t, err)

	claim, err := jwtVerifier.Verify(ctxAtTestNow, bearer(token))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claim.Subject)
	assert.Equal(t, "sess-1", claim.SessionID)
	assert.NotEmpty(t, claim.TokenID)
	assert.Equal(t, []string{"student"}, claim.Roles)
	assert.Equal(t, "u1@example.com", claim.Email)
	assert.True(t, claim.ExpiresAt.Equal(testNow.Add(time.Hour)))
}

func Test_Verify_ExpiredToken(t *testing.T) {
	token, err := jwtVerifier.Issue(Claim{Subject: "user-1"}, testNow.Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)

	_, err = jwtVerifier.Verify(ctxAtTestNow, bearer(token))
	require.ErrorIs(t, err, sentinel.ErrExpired)
}

func Test_Verify_UsesRequestClock(t *testing.T) {
	token, err := jwtVerifier.Issue(Claim{Subject: "user-1"}, testNow, time.Minute)
	require.NoError(t, err)

	later := requestcontext.WithTime(context.Background(), testNow.Add(2*time.Minute))
	_, err = jwtVerifier.Verify(later, bearer(token))
	require.ErrorIs(t, err, sentinel.ErrExpired)
}

func Test_Verify_InvalidTokens(t *testing.T) {
	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "test-issuer",
		Audience:  jwt.ClaimStrings{"test-audience"},
		ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
	}

	key := []byte("test-signing-key")
	missingExp := jwt.RegisteredClaims{
		Subject:  "user-1",
		Issuer:   "test-issuer",
		Audience: jwt.ClaimStrings{"test-audience"},
	}
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	missingSubject := valid
	missingSubject.Subject = ""

	tests := map[string]string{
		"garbage":         "invalid-token-string",
		"wrong key":       sign(jwt.SigningMethodHS256, []byte("other-key"), valid),
		"wrong alg":       sign(jwt.SigningMethodHS512, key, valid),
		"missing exp":     sign(jwt.SigningMethodHS256, key, missingExp),
		"wrong issuer":    sign(jwt.SigningMethodHS256, key, wrongIssuer),
		"missing subject": sign(jwt.SigningMethodHS256, key, missingSubject),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := jwtVerifier.Verify(ctxAtTestNow, bearer(token))
			require.ErrorIs(t, err, ErrInvalidCredential)
		})
	}
}

func Test_Verify_NoIssuerOrAudienceConfigured(t *testing.T) {
	v := NewJWTVerifier("k", "", "")
	token, err := NewJWTVerifier("k", "any-issuer", "any-audience").Issue(Claim{Subject: "u"}, testNow, time.Hour)
	require.NoError(t, err)

	claim, err := v.Verify(ctxAtTestNow, bearer(token))
	require.NoError(t, err)
	assert.Equal(t, "u", claim.Subject)
}
