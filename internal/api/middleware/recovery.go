package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/liad142/podcatch/internal/api/response"
)

// Recovery converts handler panics into a 500 envelope. A panic while
// processing one poll must not take down the server for every other client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"panic", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
