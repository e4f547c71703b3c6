package common

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"
)

type contextKey string

// UserKey is the request-context key holding the authenticated user id.
const UserKey contextKey = "user_id"

// AuthMiddleware validates the identity token on every request and injects
// the user id into the request context.
type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

func (am *AuthMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		// Authorization: Bearer <token>
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Fields(authHeader)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenString = parts[1]
			}
		}

		// Fallback for the websocket upgrade, where browsers cannot set
		// headers: ?token=<token>
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			RespondError(w, ErrUnauthenticated)
			return
		}

		userID, err := am.validator.ValidateToken(tokenString)
		if err != nil {
			RespondError(w, ErrUnauthenticated)
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the authenticated user id set by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserKey).(string)
	return id, ok
}

// LoggingMiddleware logs every request with its duration and status.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		if sw.status >= 400 {
			log.Printf("✗ %s %s -> %d (%v)", r.Method, r.URL.Path, sw.status, duration)
		} else {
			log.Printf("✓ %s %s -> %d (%v)", r.Method, r.URL.Path, sw.status, duration)
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
