package web

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const voterLimiterIdleTTL = 10 * time.Minute

// voterLimiters holds one token bucket per voter, buckets that stayed idle
// long enough to be full again are forgotten.
type voterLimiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	limiters  map[string]*voterLimiter
	lastSweep time.Time
}

type voterLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newVoterLimiters allows perMinute votes per voter and minute, 0 disables
// limiting altogether.
func newVoterLimiters(perMinute int) *voterLimiters {
	if perMinute <= 0 {
		return &voterLimiters{limit: rate.Inf}
	}

	return &voterLimiters{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: map[string]*voterLimiter{},
	}
}

func (l *voterLimiters) allow(voterID string, now time.Time) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > voterLimiterIdleTTL {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) > voterLimiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.limiters[voterID]
	if !ok {
		v = &voterLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[voterID] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}
