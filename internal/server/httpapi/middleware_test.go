package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/mmazitov/forksy-backend/internal/errs"
	"github.com/mmazitov/forksy-backend/internal/model"
	"github.com/mmazitov/forksy-backend/internal/token"
)

func TestWithIdentity_And_IdentityFrom(t *testing.T) {
	t.Parallel()

	require.True(t, IdentityFrom(context.Background()).IsAnonymous())

	want := model.Authenticated(uuid.Must(uuid.NewV4()))
	got := IdentityFrom(WithIdentity(context.Background(), want))
	require.Equal(t, want, got)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                "",
		"Bearer abc":      "abc",
		"bearer abc":      "abc",
		"BEARER   abc  ":  "abc",
		"abc":             "abc",
		"Bearer":          "",
		"Bearerabc":       "Bearerabc",
		"  Bearer\tabc  ": "abc",
	}
	for in, want := range cases {
		require.Equal(t, want, bearerToken(in), "input %q", in)
	}
}

func TestIdentityMiddleware(t *testing.T) {
	t.Parallel()

	iss, err := token.NewIssuer(token.Config{AccessSecret: []byte("k"), RefreshSecret: []byte("r")})
	require.NoError(t, err)
	uid := uuid.Must(uuid.NewV4())

	valid, _, err := iss.Mint(uid, token.Access, 0)
	require.NoError(t, err)
	expired, _, err := iss.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }).Mint(uid, token.Access, time.Minute)
	require.NoError(t, err)
	refresh, _, err := iss.Mint(uid, token.Refresh, 0)
	require.NoError(t, err)

	var seen model.Identity
	h := IdentityMiddleware(iss, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		want   model.Identity
	}{
		{"none", "", model.Anonymous},
		{"valid", "Bearer " + valid, model.Authenticated(uid)},
		{"bare", valid, model.Authenticated(uid)},
		{"expired", "Bearer " + expired, model.Anonymous},
		{"refresh as access", "Bearer " + refresh, model.Anonymous},
		{"garbage", "Bearer x.y.z", model.Anonymous},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code, tc.name)
		require.Equal(t, tc.want, seen, tc.name)
	}
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	h := Recoverer(zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestRequestLogger_PassesStatus(t *testing.T) {
	t.Parallel()

	h := RequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	healthz(stubPinger{})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	healthz(stubPinger{err: errors.New("down")})(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestToAPIError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		code string
	}{
		{errs.ErrValidation, CodeBadInput},
		{errs.ErrRateLimited, CodeRateLimited},
		{errs.ErrProvider, CodeUnauthenticated},
		{errs.ErrUnauthenticated, CodeUnauthenticated},
		{errs.ErrUnauthorized, CodeForbidden},
		{errs.ErrNotFound, CodeNotFound},
		{errs.ErrAlreadyExists, CodeConflict},
		{errors.New("pg: connection reset"), CodeInternal},
	}
	for _, tc := range cases {
		got := toAPIError(tc.err)
		require.Equal(t, tc.code, got.Extensions()["code"], "%v", tc.err)
	}
	require.Equal(t, "Internal server error", toAPIError(errors.New("secret detail")).Error())
}
