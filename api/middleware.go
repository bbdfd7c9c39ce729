package api

import (
	"net/http"
	"time"

	"github.com/cmazet/ragchat/internal/log"
)

// Identity headers. Authentication sits in front of this service; the
// headers carry the already-established identity.
const (
	userIDHeader = "X-User-ID"
	adminHeader  = "X-Admin"
)

// identity extracts the caller's identity from request headers. An empty
// user ID means the request is anonymous and must be rejected by handlers
// that require identity.
func identity(r *http.Request) (userID string, privileged bool) {
	return r.Header.Get(userIDHeader), r.Header.Get(adminHeader) == "true"
}

// requireUser extracts the user ID or writes a 401.
func requireUser(logger log.Logger, w http.ResponseWriter, r *http.Request) (string, bool, bool) {
	userID, privileged := identity(r)
	if userID == "" {
		writeError(logger, w, http.StatusUnauthorized, "missing identity", "the X-User-ID header is required")
		return "", false, false
	}
	return userID, privileged, true
}

// loggingMiddleware logs all HTTP requests with method, path, and duration.
func loggingMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start))
		})
	}
}

// recoveryMiddleware recovers from panics and returns 500 Internal Server Error.
func recoveryMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// chain applies middleware in order: first middleware wraps outermost.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
