package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func RateLimitKey(identifier string) string {
	return fmt.Sprintf("ratelimit:%s", identifier)
}

// QuotaKey builds the daily quota key for a user and feature. The day is
// taken in UTC; the counter's TTL is long enough to cover timezone skew.
func QuotaKey(feature string, userID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("quota:%s:%s:%s", feature, userID, day.UTC().Format("2006-01-02"))
}

func EpisodeStatusKey(episodeID uuid.UUID) string {
	return fmt.Sprintf("episode:status:%s", episodeID)
}
