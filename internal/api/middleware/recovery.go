package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/minutehq/usagewatch/internal/pkg/errors"
	"github.com/minutehq/usagewatch/internal/pkg/logger"
	"github.com/minutehq/usagewatch/internal/pkg/utils"
)

// Recovery converts handler panics into logged 500 responses so one bad
// request cannot take the server down.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				log.WithFields(map[string]interface{}{
					"panic":      v,
					"method":     r.Method,
					"path":       r.URL.Path,
					"request_id": GetRequestID(r),
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered")

				utils.WriteError(w, errors.Internal(
					"Internal server error",
					fmt.Errorf("panic: %v", v),
				))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
