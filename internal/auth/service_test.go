package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gasdist/stockledger/internal/shared"
	_ "github.com/gasdist/stockledger/testing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir, err := ParseDirectory("admin:s3cret:admin, Budi:gudang:Staff", bcrypt.MinCost)
	require.NoError(t, err)
	return NewService(dir)
}

func TestParseDirectory(t *testing.T) {
	dir, err := ParseDirectory("admin:s3cret:admin,budi:gudang:staff", bcrypt.MinCost)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"admin", "staff"}, dir.Roles())

	user, err := dir.FindByUsername(context.Background(), "ADMIN")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", user.PasswordHash)

	_, err = ParseDirectory("admin:nopassword", bcrypt.MinCost)
	require.Error(t, err)
	require.NotContains(t, err.Error(), "nopassword")

	_, err = ParseDirectory("a:b:admin,a:c:staff", bcrypt.MinCost)
	require.Error(t, err)

	_, err = ParseDirectory(" , ", bcrypt.MinCost)
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.Authenticate(ctx, "budi", "gudang")
	require.NoError(t, err)
	require.Equal(t, "budi", p.Username)
	require.Equal(t, "staff", p.Role)

	_, err = svc.Authenticate(ctx, "budi", "wrong")
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, "ghost", "gudang")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestBasicAuthMiddleware(t *testing.T) {
	svc := newTestService(t)
	var seen *shared.Principal
	handler := BasicAuth(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stock", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/stock", nil)
	req.SetBasicAuth("admin", "bad")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stock", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "admin", seen.Role)
}
