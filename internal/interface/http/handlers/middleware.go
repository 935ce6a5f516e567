package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION AUTHENTICATION MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(token string) (shared.Username, error)
}

// ErrorWriter renders a failure in the API's envelope.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// SessionAuth checks Bearer session tokens.
type SessionAuth struct {
	auth      Authenticator
	writeErr  ErrorWriter
	matchPath string
}

// NewSessionAuth creates the middleware. When matchPath names a path
// wildcard, the session user must equal that path value.
func NewSessionAuth(auth Authenticator, writeErr ErrorWriter, matchPath string) *SessionAuth {
	return &SessionAuth{auth: auth, writeErr: writeErr, matchPath: matchPath}
}

// Middleware rejects requests without a live session.
func (a *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			a.writeErr(w, r, http.StatusUnauthorized, "missing_token", "A Bearer session token is required")
			return
		}

		u, err := a.auth.Authenticate(token)
		if err != nil {
			a.writeErr(w, r, http.StatusUnauthorized, "invalid_session", "Session is missing or expired")
			return
		}

		if a.matchPath != "" && r.PathValue(a.matchPath) != string(u) {
			a.writeErr(w, r, http.StatusForbidden, "forbidden", "Session belongs to another user")
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUsername, u)
		ctx = context.WithValue(ctx, ContextKeyToken, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// SessionUser returns the user placed in ctx by SessionAuth.
func SessionUser(ctx context.Context) (shared.Username, bool) {
	u, ok := ctx.Value(ContextKeyUsername).(shared.Username)
	return u, ok
}

// SessionToken returns the token placed in ctx by SessionAuth.
func SessionToken(ctx context.Context) string {
	t, _ := ctx.Value(ContextKeyToken).(string)
	return t
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY HEADERS MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST SIZE LIMIT MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, `{"success":false,"error":{"code":"payload_too_large","message":"Request body too large"}}`,
					http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT KEYS
// ══════════════════════════════════════════════════════════════════════════════

// ContextKey is a type for context keys.
type ContextKey string

const (
	// ContextKeyUsername holds the authenticated user.
	ContextKeyUsername ContextKey = "username"
	// ContextKeyToken holds the session token of the request.
	ContextKeyToken ContextKey = "session_token"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// MiddlewareFunc is a function that wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

// Chain chains multiple middleware functions. The first one runs outermost.
func Chain(middlewares ...MiddlewareFunc) MiddlewareFunc {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// ChainHandler chains middleware and wraps a final handler.
func ChainHandler(handler http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	return Chain(middlewares...)(handler)
}
