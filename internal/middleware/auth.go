package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"docusight/internal/auth"
	"docusight/internal/httputil"
)

// OwnerHeader carries the owner ID when no token verifier is configured
const OwnerHeader = "X-Owner-ID"

// Auth resolves the request owner and stores it in the context.
//
// With a verifier, a bearer token is required and its subject becomes the
// owner. Without one (dev only), the X-Owner-ID header is trusted.
// Paths in public skip authentication.
func Auth(verifier auth.JWTVerifier, logger *slog.Logger, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if verifier == nil {
				ownerID := strings.TrimSpace(r.Header.Get(OwnerHeader))
				if ownerID == "" {
					httputil.RespondError(w, http.StatusUnauthorized, OwnerHeader+" header is required")
					return
				}
				next.ServeHTTP(w, httputil.WithOwnerID(r, ownerID))
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("authentication failed", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithOwnerID(r, claims.GetOwnerID()))
		})
	}
}
