package rbac

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gasdist/stockledger/internal/shared"
)

func TestDefaultRolesTable(t *testing.T) {
	svc := NewService(DefaultRoles())

	cases := []struct {
		role    string
		perm    string
		granted bool
	}{
		{shared.RoleAdmin, shared.PermPermissionsView, true},
		{shared.RoleAdmin, shared.PermStockApprove, true},
		{shared.RoleManager, shared.PermStockApprove, true},
		{shared.RoleManager, shared.PermPermissionsView, false},
		{shared.RoleStaff, shared.PermStockRecord, true},
		{shared.RoleStaff, shared.PermStockEdit, false},
		{shared.RoleStaff, shared.PermCatalogEdit, false},
		{shared.RoleViewer, shared.PermStockView, true},
		{shared.RoleViewer, shared.PermStockRecord, false},
	}
	for _, tc := range cases {
		perms, err := svc.EffectivePermissions(tc.role)
		require.NoError(t, err)
		require.Equal(t, tc.granted, grantsAny(perms, []string{tc.perm}), "%s/%s", tc.role, tc.perm)
	}

	_, err := svc.EffectivePermissions("auditor")
	require.ErrorIs(t, err, ErrUnknownRole)
	require.True(t, svc.HasRole(" Admin "))

	roles := svc.ListRoles()
	require.Len(t, roles, 4)
	require.Equal(t, shared.RoleAdmin, roles[0].Name)
}

func TestEffectivePermissionsReturnsCopy(t *testing.T) {
	svc := NewService(DefaultRoles())
	perms, err := svc.EffectivePermissions(shared.RoleViewer)
	require.NoError(t, err)
	perms[0] = "tampered"

	again, err := svc.EffectivePermissions(shared.RoleViewer)
	require.NoError(t, err)
	require.NotContains(t, again, "tampered")
}

func TestRequireAny(t *testing.T) {
	mw := Middleware{Service: NewService(DefaultRoles()), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	guarded := mw.RequireAny(" STOCK.approve ")(ok)

	serve := func(p *shared.Principal) int {
		req := httptest.NewRequest(http.MethodPost, "/api/stock/transactions/1/complete", nil)
		if p != nil {
			req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
		}
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, serve(nil))
	require.Equal(t, http.StatusNoContent, serve(&shared.Principal{Username: "mira", Role: shared.RoleManager}))
	require.Equal(t, http.StatusForbidden, serve(&shared.Principal{Username: "sam", Role: shared.RoleStaff}))
	require.Equal(t, http.StatusForbidden, serve(&shared.Principal{Username: "x", Role: "ghost"}))

	open := mw.RequireAny()(ok)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), &shared.Principal{Username: "v", Role: shared.RoleViewer}))
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
