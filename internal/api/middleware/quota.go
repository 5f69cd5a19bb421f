package middleware

import (
	"net/http"
	"strconv"

	"github.com/liad142/podcatch/internal/api/response"
	"github.com/liad142/podcatch/internal/guard"
)

// Quota enforces per-user daily budgets on expensive features. Unlike the
// rate limiter's short windows, each quota counter covers one UTC day.
type Quota struct {
	guard *guard.Guard
}

// NewQuota creates a new Quota middleware.
func NewQuota(g *guard.Guard) *Quota {
	return &Quota{guard: g}
}

// Check returns middleware that spends one unit of the user's daily budget
// for feature. Requests without an authenticated user pass through; the
// guard fails open when the counter store is degraded.
func (q *Quota) Check(feature string, maxPerDay int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			res := q.guard.AllowQuota(r.Context(), userID, feature, maxPerDay)

			w.Header().Set("X-Quota-Limit", strconv.Itoa(maxPerDay))
			w.Header().Set("X-Quota-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				response.Error(w, http.StatusTooManyRequests,
					"QUOTA_EXCEEDED", "Daily quota for this feature exhausted", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
