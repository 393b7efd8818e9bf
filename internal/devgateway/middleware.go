// Package devgateway implements a local development gateway that speaks the
// chat wire protocol: SSE framing, envelope-encrypted deltas, model listing,
// and conversation CRUD. It exists so the client can be exercised end to end
// without the production backend.
package devgateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/aithena-ai/chatstream/internal/auth"
	"github.com/aithena-ai/chatstream/pkg/logger"
	"github.com/aithena-ai/chatstream/pkg/metrics"
)

// ContextKey is a type for context keys.
type ContextKey string

// UsernameKey is the context key for the authenticated username.
const UsernameKey ContextKey = "username"

// RequireUsername enforces the X-Username header and, when a JWT secret is
// configured, a valid HS256 bearer token whose subject matches it.
func RequireUsername(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username := r.Header.Get("X-Username")
			if username == "" {
				http.Error(w, `{"detail":"X-Username header is required"}`, http.StatusUnauthorized)
				return
			}

			if jwtSecret != "" {
				authHeader := r.Header.Get("Authorization")
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
					http.Error(w, `{"detail":"missing bearer token"}`, http.StatusUnauthorized)
					return
				}

				claims := &auth.Claims{}
				token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
					if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return []byte(jwtSecret), nil
				})
				if err != nil || !token.Valid || claims.Subject != username {
					http.Error(w, `{"detail":"invalid token"}`, http.StatusUnauthorized)
					return
				}
			}

			ctx := context.WithValue(r.Context(), UsernameKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUsername gets the authenticated username from context.
func GetUsername(ctx context.Context) string {
	if v := ctx.Value(UsernameKey); v != nil {
		return v.(string)
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so SSE streaming keeps working
// through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logging creates request logging middleware.
func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			log.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", duration),
				zap.String("username", GetUsername(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
			metrics.RecordGatewayRequest(r.Method, r.URL.Path, http.StatusText(wrapped.statusCode), duration.Seconds())
		})
	}
}
