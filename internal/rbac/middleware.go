package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gasdist/stockledger/internal/platform/httpx"
	"github.com/gasdist/stockledger/internal/shared"
)

// Middleware gates routes on the permissions of the principal in context.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny lets the request through when the principal's role grants at least one of perms.
// With no perms every authenticated request passes.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	required := make([]string, 0, len(perms))
	for _, p := range perms {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			required = append(required, p)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if m.Service == nil {
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			granted, err := m.Service.EffectivePermissions(principal.Role)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Warn("rbac resolve role", slog.String("role", principal.Role), slog.Any("error", err))
				}
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			if !grantsAny(granted, required) {
				if m.Logger != nil {
					m.Logger.Info("permission denied",
						slog.String("username", principal.Username),
						slog.String("path", r.URL.Path),
						slog.Any("required", required),
					)
				}
				httpx.RespondError(w, shared.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func grantsAny(granted, required []string) bool {
	for _, g := range granted {
		g = strings.ToLower(g)
		for _, r := range required {
			if g == r {
				return true
			}
		}
	}
	return false
}
