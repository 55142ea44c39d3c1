package router

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/note"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-notes-go/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
				"request_id", RequestIDFrom(r.Context()),
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			// responses are JSON only
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}
			// session data must not end up in shared caches
			w.Header().Set("Cache-Control", "no-store")
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the handlers and collaborators RegisterRoutes mounts.
type Deps struct {
	Config   Config
	Logger   *zap.SugaredLogger
	DB       Pinger
	Resolver *auth.Resolver
	// CookieName is where RequireSession looks for the credential.
	CookieName string
	Auth       *auth.Handler
	Users      *user.Handler
	Notes      *note.Handler
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	session := auth.RequireSession(d.Resolver, d.CookieName, d.Logger)
	limited := RateLimitMiddleware(NewIPRateLimiter(d.Config.AuthRatePerMinute, d.Config.AuthBurst))
	protect := func(h http.HandlerFunc) http.Handler { return session(h) }

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			if err := d.DB.PingContext(ctx); err != nil {
				d.Logger.Warnw("health check failed", "error", err)
				utilities.WriteErrorCode(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
				return
			}
		}
		utilities.WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// auth
	mux.Handle("POST /auth/register", limited(http.HandlerFunc(d.Auth.Register)))
	mux.Handle("POST /auth/login", limited(http.HandlerFunc(d.Auth.Login)))
	mux.HandleFunc("POST /auth/logout", d.Auth.Logout)
	mux.Handle("POST /auth/logout-all", protect(d.Auth.LogoutAll))
	mux.HandleFunc("GET /auth/verify-email/{token}", d.Auth.VerifyEmail)
	mux.Handle("POST /auth/resend-verification", limited(http.HandlerFunc(d.Auth.ResendVerification)))

	// users
	mux.Handle("GET /users/me", protect(d.Users.Me))
	mux.Handle("GET /users/id/{id}", protect(d.Users.Get))
	mux.Handle("PUT /users/{id}", protect(d.Users.Update))
	mux.Handle("DELETE /users/{id}", protect(d.Users.Delete))

	// notes
	mux.Handle("GET /notes/user/{user_id}", protect(d.Notes.ListByUser))
	mux.Handle("GET /notes/{id}", protect(d.Notes.Get))
	mux.Handle("POST /notes", protect(d.Notes.Create))
	mux.Handle("PUT /notes/{id}", protect(d.Notes.Update))
	mux.Handle("DELETE /notes/{id}", protect(d.Notes.Delete))

	var handler http.Handler = mux
	handler = CORSMiddleware(d.Config.CORSOrigins)(handler)
	handler = SecurityHeadersMiddleware()(handler)
	handler = LoggingMiddleware(d.Logger)(handler)
	handler = RequestIDMiddleware()(handler)
	return handler
}
