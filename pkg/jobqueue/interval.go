package jobqueue

import (
	"math"
	"time"
)

// baseInterval returns the poll interval to wait before the next status
// check, given how many polls have already completed. The first wait is
// short so fast jobs surface quickly; after that the interval starts at
// cfg.BaseInterval and grows by cfg.BackoffFactor every cfg.BackoffEvery
// polls, capped at cfg.MaxInterval.
func baseInterval(pollsCompleted int, cfg Config) time.Duration {
	if pollsCompleted == 0 {
		return cfg.InitialInterval
	}
	steps := pollsCompleted / cfg.BackoffEvery
	d := time.Duration(float64(cfg.BaseInterval) * math.Pow(cfg.BackoffFactor, float64(steps)))
	if d > cfg.MaxInterval {
		return cfg.MaxInterval
	}
	return d
}

// jittered spreads an interval by up to ±frac. r must be in [0, 1); callers
// pass rand.Float64() so the math stays testable with fixed inputs.
func jittered(d time.Duration, frac, r float64) time.Duration {
	if frac <= 0 {
		return d
	}
	scale := 1 - frac + 2*frac*r
	return time.Duration(float64(d) * scale)
}
