package gate_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"lmsgate/internal/gate"
	"lmsgate/internal/platform/metrics"
	"lmsgate/internal/session"
	"lmsgate/internal/session/mocks"
	"lmsgate/pkg/platform/sentinel"
	"lmsgate/pkg/requestcontext"
)

// =============================================================================
// Gate Evaluate Test Suite
// =============================================================================
// The gate is the only logic-bearing composition point of the page tree. Every
// path that does not end in a valid, unexpired, role-matching claim must be a
// login (or forbidden) redirect.

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type GateSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	resolver *mocks.MockResolver
	metrics  *metrics.Metrics
	gate     *gate.Gate
}

func TestGateSuite(t *testing.T) {
	suite.Run(t, new(GateSuite))
}

func (s *GateSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.resolver = mocks.NewMockResolver(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	g, err := gate.New(s.resolver,
		gate.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		gate.WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.gate = g
}

func (s *GateSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *GateSuite) request(target string) (context.Context, *http.Request) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := requestcontext.WithTime(req.Context(), now)
	return ctx, req.WithContext(ctx)
}

func (s *GateSuite) TestNew() {
	_, err := gate.New(nil)
	s.Error(err)
}

func (s *GateSuite) TestValidClaimIsAuthorized() {
	claim := &session.Claim{Subject: "u1", ExpiresAt: now.Add(time.Hour)}
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(claim, nil)

	ctx, req := s.request("/dashboard")
	d := s.gate.Evaluate(ctx, req, gate.AnyAuthenticated())

	s.Equal(gate.Authorized, d.Outcome)
	s.True(d.IsAuthorized())
	s.Same(claim, d.Claim)
	s.Empty(d.Target)
	s.Empty(d.Reason)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.GateDecisions.WithLabelValues("authorized", "none")))
}

func (s *GateSuite) TestClaimWithoutExpiryIsAuthorized() {
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(&session.Claim{Subject: "u1"}, nil)

	ctx, req := s.request("/dashboard")
	s.True(s.gate.Evaluate(ctx, req, gate.AnyAuthenticated()).IsAuthorized())
}

func (s *GateSuite) TestFailuresRedirectToLogin() {
	cases := []struct {
		name   string
		claim  *session.Claim
		err    error
		reason gate.Reason
	}{
		{"no credential", nil, session.ErrNoCredential, gate.ReasonMissing},
		{"expired per resolver", nil, sentinel.ErrExpired, gate.ReasonExpired},
		{"expired per request clock", &session.Claim{Subject: "u1", ExpiresAt: now.Add(-time.Second)}, nil, gate.ReasonExpired},
		{"invalid credential", nil, session.ErrInvalidCredential, gate.ReasonInvalid},
		{"revoked", nil, session.ErrRevoked, gate.ReasonInvalid},
		{"lookup error", nil, errors.New("dial tcp: connection refused"), gate.ReasonLookupFailed},
		{"unavailable provider", nil, sentinel.ErrUnavailable, gate.ReasonLookupFailed},
		{"nil claim without error", nil, nil, gate.ReasonInvalid},
		{"claim without subject", &session.Claim{}, nil, gate.ReasonInvalid},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(tc.claim, tc.err)

			ctx, req := s.request("/dashboard")
			d := s.gate.Evaluate(ctx, req, gate.AnyAuthenticated())

			s.Equal(gate.Redirect, d.Outcome)
			s.False(d.IsAuthorized())
			s.Nil(d.Claim)
			s.Equal("/login?next=%2Fdashboard", d.Target)
			s.Equal(tc.reason, d.Reason)
		})
	}
}

func (s *GateSuite) TestResolverPanicFailsClosed() {
	s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *http.Request) (*session.Claim, error) {
			panic("nil map write")
		})

	ctx, req := s.request("/dashboard/grades")
	var d gate.Decision
	s.NotPanics(func() {
		d = s.gate.Evaluate(ctx, req, gate.AnyAuthenticated())
	})
	s.Equal(gate.Redirect, d.Outcome)
	s.Equal(gate.ReasonLookupFailed, d.Reason)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.GateDecisions.WithLabelValues("redirect", "lookup_failed")))
}

func (s *GateSuite) TestRoles() {
	s.Run("missing role redirects to forbidden page", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
			Return(&session.Claim{Subject: "u1", Roles: []string{"student"}}, nil)

		ctx, req := s.request("/dashboard/admin")
		d := s.gate.Evaluate(ctx, req, gate.RequireRoles("admin"))

		s.Equal(gate.Redirect, d.Outcome)
		s.Equal(gate.ReasonForbidden, d.Reason)
		s.Equal("/unauthorized", d.Target)
	})

	s.Run("any listed role is enough", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
			Return(&session.Claim{Subject: "u1", Roles: []string{"instructor"}}, nil)

		ctx, req := s.request("/dashboard/instructor")
		d := s.gate.Evaluate(ctx, req, gate.RequireRoles("Instructor", "admin"))

		s.True(d.IsAuthorized())
	})
}

func (s *GateSuite) TestLoginTarget() {
	s.Run("query string is preserved in next", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(nil, session.ErrNoCredential)

		ctx, req := s.request("/dashboard/courses?tab=2")
		d := s.gate.Evaluate(ctx, req, gate.AnyAuthenticated())

		s.Equal("/login?next=%2Fdashboard%2Fcourses%3Ftab%3D2", d.Target)
		u, err := url.Parse(d.Target)
		s.Require().NoError(err)
		s.Equal("/dashboard/courses?tab=2", u.Query().Get("next"))
	})

	s.Run("protocol-relative path is not echoed", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(nil, session.ErrNoCredential)

		ctx, req := s.request("/dashboard")
		req.URL = &url.URL{Path: "//evil.example/dashboard"}
		d := s.gate.Evaluate(ctx, req, gate.AnyAuthenticated())

		s.Equal("/login", d.Target)
	})

	s.Run("custom login and forbidden paths", func() {
		g, err := gate.New(s.resolver, gate.WithLoginPath("/auth/sign-in?src=gate"), gate.WithForbiddenPath("/403"))
		s.Require().NoError(err)

		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(nil, session.ErrNoCredential)
		ctx, req := s.request("/dashboard")
		s.Equal("/auth/sign-in?src=gate&next=%2Fdashboard", g.Evaluate(ctx, req, gate.AnyAuthenticated()).Target)

		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(&session.Claim{Subject: "u1"}, nil)
		ctx, req = s.request("/dashboard/admin")
		s.Equal("/403", g.Evaluate(ctx, req, gate.RequireRoles("admin")).Target)
	})
}
