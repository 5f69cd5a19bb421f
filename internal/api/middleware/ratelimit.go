package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/liad142/podcatch/internal/api/response"
	"github.com/liad142/podcatch/internal/guard"
)

const defaultRequestsPerMinute = 60

const rateLimitWindow = 60 * time.Second

// RateLimit applies a per-API-key request budget via the shared guard.
type RateLimit struct {
	guard          *guard.Guard
	requestsPerMin int
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(g *guard.Guard, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{guard: g, requestsPerMin: requestsPerMin}
}

// Limit applies rate limiting based on the key_prefix set by auth middleware.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := getKeyPrefix(r)
		if !ok {
			// No key prefix means auth middleware didn't run; pass through
			next.ServeHTTP(w, r)
			return
		}

		res := rl.guard.Allow(r.Context(), prefix, rl.requestsPerMin, rateLimitWindow)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(rateLimitWindow).Unix()))

		if !res.Allowed {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
