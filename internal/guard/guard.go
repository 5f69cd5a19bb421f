// Package guard enforces per-identifier request budgets and per-user daily
// feature quotas on top of the shared atomic counter store.
package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/liad142/podcatch/internal/cache"
)

// quotaTTL only garbage-collects stale counters; the key's UTC date suffix
// is what bounds the quota window.
const quotaTTL = 48 * time.Hour

// Guard wraps the counter store. Both checks fail open: if the store is
// unreachable the request is allowed.
type Guard struct {
	cache cache.Cache
}

func New(c cache.Cache) *Guard {
	return &Guard{cache: c}
}

// Result reports the outcome of a budget check.
type Result struct {
	Allowed   bool
	Count     int64
	Remaining int
}

// Allow increments the counter for identifier and reports whether the
// post-increment count is within maxRequests for the window.
func (g *Guard) Allow(ctx context.Context, identifier string, maxRequests int, window time.Duration) Result {
	count, err := g.cache.IncrWithExpiry(ctx, cache.RateLimitKey(identifier), window)
	if err != nil {
		slog.Warn("rate limit check failed, allowing request", "identifier", identifier, "error", err)
		return Result{Allowed: true, Remaining: maxRequests}
	}
	return budget(count, maxRequests)
}

// AllowQuota increments the daily counter for (user, feature) and reports
// whether the user is still within maxPerDay.
func (g *Guard) AllowQuota(ctx context.Context, userID uuid.UUID, feature string, maxPerDay int) Result {
	key := cache.QuotaKey(feature, userID, time.Now())
	count, err := g.cache.IncrWithExpiry(ctx, key, quotaTTL)
	if err != nil {
		slog.Warn("quota check failed, allowing request", "user_id", userID, "feature", feature, "error", err)
		return Result{Allowed: true, Remaining: maxPerDay}
	}
	return budget(count, maxPerDay)
}

func budget(count int64, max int) Result {
	remaining := max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(max),
		Count:     count,
		Remaining: remaining,
	}
}
