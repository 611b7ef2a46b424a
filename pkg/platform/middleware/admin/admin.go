package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"attestor/pkg/platform/httputil"
	"attestor/pkg/requestcontext"
)

// RequireAdminToken guards the operator endpoints (/sync, /check). An empty
// expected token never matches, so a misconfigured deployment stays closed.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
					Error: "admin token required",
					Kind:  "unauthorized",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
