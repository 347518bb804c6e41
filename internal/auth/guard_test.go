package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-auth/internal/auth"
)

func signupJane(t *testing.T, f *serviceFixture) auth.AuthResult {
	t.Helper()
	result, err := f.service.Signup(context.Background(), "Jane Doe", "jane@x.com", "Secr3t!@")
	require.NoError(t, err)
	return result
}

func TestGuard_Authorize(t *testing.T) {
	f := newServiceFixture()
	result := signupJane(t, f)
	guard := auth.NewGuard(f.codec, f.dir, f.logger)

	principal, err := guard.Authorize(context.Background(), "Bearer "+result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User, principal)

	principal, err = guard.Authorize(context.Background(), "bearer   "+result.Token+"  ")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, principal.ID)
}

func TestGuard_NoToken(t *testing.T) {
	f := newServiceFixture()
	guard := auth.NewGuard(f.codec, f.dir, nil)

	for _, header := range []string{"", "   ", "Bearer", "Bearer   ", "Basic abc", "Token abc"} {
		_, err := guard.Authorize(context.Background(), header)
		assert.ErrorIs(t, err, auth.ErrNoToken, header)
	}
}

func TestGuard_InvalidAndExpiredTokens(t *testing.T) {
	f := newServiceFixture()
	result := signupJane(t, f)

	guard := auth.NewGuard(f.codec, f.dir, nil)
	_, err := guard.Authorize(context.Background(), "Bearer "+result.Token+"x")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	later := auth.NewTokenCodec(testSecret, time.Hour, auth.WithClock(func() time.Time {
		return time.Now().Add(2 * time.Hour)
	}))
	_, err = auth.NewGuard(later, f.dir, nil).Authorize(context.Background(), "Bearer "+result.Token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestGuard_DeactivationRevokesOutstandingTokens(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	result := signupJane(t, f)
	signin, err := f.service.Signin(ctx, "jane@x.com", "Secr3t!@")
	require.NoError(t, err)

	guard := auth.NewGuard(f.codec, f.dir, nil)
	require.NoError(t, f.dir.SetActive(ctx, result.User.ID, false))

	for _, token := range []string{result.Token, signin.Token} {
		_, err := guard.Authorize(ctx, "Bearer "+token)
		assert.ErrorIs(t, err, auth.ErrAccountUnavailable)
		assert.True(t, auth.IsRejection(err))
	}

	require.NoError(t, f.dir.SetActive(ctx, result.User.ID, true))
	_, err = guard.Authorize(ctx, "Bearer "+result.Token)
	assert.NoError(t, err)
}

func TestGuard_PrincipalReflectsCurrentRole(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	result := signupJane(t, f)

	require.NoError(t, f.dir.SetRole(ctx, result.User.ID, "admin"))

	claims, err := f.codec.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultRole, claims.Role)

	principal, err := auth.NewGuard(f.codec, f.dir, nil).Authorize(ctx, "Bearer "+result.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", principal.Role)
}

func TestGuard_UnknownSubject(t *testing.T) {
	f := newServiceFixture()
	token, err := f.codec.Issue(auth.TokenClaims{Subject: "missing", Email: "ghost@x.com", Role: auth.DefaultRole})
	require.NoError(t, err)

	_, err = auth.NewGuard(f.codec, f.dir, nil).Authorize(context.Background(), "Bearer "+token)
	assert.ErrorIs(t, err, auth.ErrAccountUnavailable)
}

func TestGuard_DirectoryDown(t *testing.T) {
	f := newServiceFixture()
	result := signupJane(t, f)
	f.dir.findByIDErr = errors.New("connection reset")

	_, err := auth.NewGuard(f.codec, f.dir, nil).Authorize(context.Background(), "Bearer "+result.Token)
	assert.ErrorIs(t, err, auth.ErrDirectoryUnavailable)
	assert.False(t, auth.IsRejection(err))
}

func TestGuard_Middleware(t *testing.T) {
	f := newServiceFixture()
	result := signupJane(t, f)
	guard := auth.NewGuard(f.codec, f.dir, f.logger)

	var seen auth.Principal
	protected := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		require.True(t, ok)
		seen = principal
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec
	}

	rec := serve("Bearer " + result.Token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, result.User.ID, seen.ID)

	bodies := map[string]string{}
	for name, header := range map[string]string{
		"missing": "",
		"invalid": "Bearer not-a-token",
	} {
		rec := serve(header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"), name)
		bodies[name] = rec.Body.String()
	}
	assert.Equal(t, bodies["missing"], bodies["invalid"])

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(bodies["missing"]), &payload))
	assert.Equal(t, "unauthorized", payload["error"])

	f.dir.findByIDErr = errors.New("connection reset")
	rec = serve("Bearer " + result.Token)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.True(t, f.logger.has("error", "access_check_failed"))
}

func TestGuard_CanceledRequestIsNotAnOutage(t *testing.T) {
	f := newServiceFixture()
	result := signupJane(t, f)
	guard := auth.NewGuard(f.codec, f.dir, f.logger)
	f.dir.findByIDErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := guard.Authorize(ctx, "Bearer "+result.Token)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, auth.ErrDirectoryUnavailable)

	protected := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+result.Token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, f.logger.has("warn", "access_check_aborted"))
	assert.False(t, f.logger.has("error", "access_check_failed"))
}
