package server

import (
	gosync "sync"
	"time"

	"golang.org/x/time/rate"
)

// Sign-in attempts allowed per client: a burst of five, then
// one every six seconds.
const (
	authRate  = rate.Limit(1.0 / 6)
	authBurst = 5
)

// limiterIdle is how long an unused client limiter is kept.
const limiterIdle = 10 * time.Minute

// rateLimiter keeps one token bucket per client key.
type rateLimiter struct {
	mu     gosync.Mutex
	limit  rate.Limit
	burst  int
	limits map[string]*clientLimiter
	now    func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(limit rate.Limit, burst int) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		burst:  burst,
		limits: make(map[string]*clientLimiter),
		now:    time.Now,
	}
}

// getLimiter gets or creates the limiter for key and drops
// limiters that have been idle for a while.
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for k, cl := range rl.limits {
		if now.Sub(cl.lastSeen) > limiterIdle {
			delete(rl.limits, k)
		}
	}

	cl, ok := rl.limits[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limits[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// Allow reports whether a request from key may proceed.
func (rl *rateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).AllowN(rl.now(), 1)
}
