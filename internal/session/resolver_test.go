package session_test

//go:generate mockgen -source=resolver.go -destination=mocks/mocks.go -package=mocks Resolver,Verifier,RevocationList

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"lmsgate/internal/session"
	"lmsgate/internal/session/mocks"
)

type CredentialResolverSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	verifier    *mocks.MockVerifier
	revocations *mocks.MockRevocationList
	resolver    *session.CredentialResolver
}

func TestCredentialResolverSuite(t *testing.T) {
	suite.Run(t, new(CredentialResolverSuite))
}

func (s *CredentialResolverSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.verifier = mocks.NewMockVerifier(s.ctrl)
	s.revocations = mocks.NewMockRevocationList(s.ctrl)
	s.resolver = session.NewCredentialResolver(
		session.Extractor{CookieName: "lms_session"},
		s.verifier,
		session.WithRevocationList(s.revocations),
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *CredentialResolverSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *CredentialResolverSuite) request() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "lms_session", Value: "abc"})
	return req
}

func (s *CredentialResolverSuite) TestNoCredentialSkipsVerifier() {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)

	claim, err := s.resolver.Resolve(context.Background(), req)
	s.Nil(claim)
	s.ErrorIs(err, session.ErrNoCredential)
}

func (s *CredentialResolverSuite) TestVerifiedClaimWithoutTokenIDSkipsRevocation() {
	want := &session.Claim{Subject: "u1"}
	s.verifier.EXPECT().
		Verify(gomock.Any(), session.Credential{Value: "abc", Source: session.SourceCookie}).
		Return(want, nil)

	claim, err := s.resolver.Resolve(context.Background(), s.request())
	s.Require().NoError(err)
	s.Same(want, claim)
}

func (s *CredentialResolverSuite) TestRevokedTokenIsRejected() {
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(&session.Claim{Subject: "u1", TokenID: "jti-1"}, nil)
	s.revocations.EXPECT().IsRevoked(gomock.Any(), "jti-1").Return(true, nil)

	claim, err := s.resolver.Resolve(context.Background(), s.request())
	s.Nil(claim)
	s.ErrorIs(err, session.ErrRevoked)
}

func (s *CredentialResolverSuite) TestActiveTokenPasses() {
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(&session.Claim{Subject: "u1", TokenID: "jti-1"}, nil)
	s.revocations.EXPECT().IsRevoked(gomock.Any(), "jti-1").Return(false, nil)

	claim, err := s.resolver.Resolve(context.Background(), s.request())
	s.Require().NoError(err)
	s.Equal("u1", claim.Subject)
}

func (s *CredentialResolverSuite) TestRevocationLookupErrorPropagates() {
	storeErr := errors.New("redis timeout")
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(&session.Claim{Subject: "u1", TokenID: "jti-1"}, nil)
	s.revocations.EXPECT().IsRevoked(gomock.Any(), "jti-1").Return(false, storeErr)

	claim, err := s.resolver.Resolve(context.Background(), s.request())
	s.Nil(claim)
	s.ErrorIs(err, storeErr)
}

func (s *CredentialResolverSuite) TestVerifierErrorPropagates() {
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(nil, session.ErrInvalidCredential)

	claim, err := s.resolver.Resolve(context.Background(), s.request())
	s.Nil(claim)
	s.ErrorIs(err, session.ErrInvalidCredential)
}
