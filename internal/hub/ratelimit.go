// Package hub implements server-side ingestion and correlation:
// decoding device messages, rate-limiting motion notifications,
// persisting notifications/captures, and fanning out pushes.
package hub

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces the per-(user, motion) minimum gap between
// notifications, modeled as a token bucket with burst 1 so the first
// event always passes and subsequent ones must wait out the gap.
// rate.Every(gap) is exactly a minimum-gap limiter when burst=1.
type RateLimiter struct {
	gap time.Duration

	mu       sync.Mutex
	limiters map[uint]*rate.Limiter
}

func NewRateLimiter(minGap time.Duration) *RateLimiter {
	return &RateLimiter{gap: minGap, limiters: make(map[uint]*rate.Limiter)}
}

// Allow reports whether userID may create a new motion notification
// now. The check-then-reserve is serialized per user via the limiter's
// own internal mutex.
func (r *RateLimiter) Allow(userID uint) bool {
	return r.limiterFor(userID).Allow()
}

func (r *RateLimiter) limiterFor(userID uint) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[userID]
	if !ok {
		if r.gap <= 0 {
			l = rate.NewLimiter(rate.Inf, 1)
		} else {
			l = rate.NewLimiter(rate.Every(r.gap), 1)
		}
		r.limiters[userID] = l
	}
	return l
}
