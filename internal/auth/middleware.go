package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-notes-go/pkg/utilities"
)

// Credential extracts the raw session credential from the cookie named
// cookieName, falling back to an "Authorization: Bearer" header for
// non-browser clients. It returns "" when neither is present.
func Credential(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

// RequireSession resolves the caller before next runs and stores the
// Identity in the request context. Unresolvable callers get a 401.
func RequireSession(resolver *Resolver, cookieName string, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolver.Resolve(r.Context(), Credential(r, cookieName))
			if err != nil {
				logger.Debugw("session rejected", "path", r.URL.Path, "error", err)
				utilities.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
