package auth

import (
	"log/slog"
	"net/http"

	"github.com/gasdist/stockledger/internal/platform/httpx"
	"github.com/gasdist/stockledger/internal/shared"
)

// BasicAuth authenticates requests with HTTP Basic credentials and stores the principal in context.
func BasicAuth(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			principal, err := service.Authenticate(r.Context(), username, password)
			if err != nil {
				if logger != nil {
					logger.Warn("authentication failed", slog.String("username", username), slog.String("remote", r.RemoteAddr))
				}
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}
