package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/minutehq/usagewatch/internal/auth"
	"github.com/minutehq/usagewatch/internal/pkg/errors"
	"github.com/minutehq/usagewatch/internal/pkg/utils"
)

// ContextKey is a custom type for context keys
type ContextKey string

// CallerKey is the context key for the authenticated caller subject
const CallerKey ContextKey = "caller"

// AuthMiddleware returns a middleware that validates bearer service tokens
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenStr string
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) == 2 && parts[0] == "Bearer" {
					tokenStr = parts[1]
				}
			}

			if tokenStr == "" {
				utils.WriteError(w, errors.Unauthorized("Missing authentication token"))
				return
			}

			claims, err := auth.ParseServiceToken(tokenStr, jwtSecret)
			if err != nil {
				utils.WriteError(w, errors.Unauthorized("Invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), CallerKey, claims.Subject)

			AddLogField(w, "caller", claims.Subject)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCaller extracts the authenticated caller subject from the request context
func GetCaller(r *http.Request) (string, bool) {
	caller, ok := r.Context().Value(CallerKey).(string)
	return caller, ok
}
