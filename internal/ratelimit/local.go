package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/smallbiznis/privatedrops/internal/clock"
	"golang.org/x/time/rate"
)

const visitorIdle = 10 * time.Minute

// LocalLimiter keeps one token bucket per key in process memory. It serves
// single-instance deployments without Redis.
type LocalLimiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalLimiter(clk clock.Clock) *LocalLimiter {
	return &LocalLimiter{
		clock:    clk,
		visitors: map[string]*visitor{},
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string, perSecond float64, burst int) (*RateLimitResult, error) {
	now := l.clock.Now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	allowed := v.limiter.AllowN(now, 1)
	tokens := v.limiter.TokensAt(now)
	l.mu.Unlock()

	var retryAfter time.Duration
	if !allowed && perSecond > 0 {
		retryAfter = time.Duration((1 - tokens) / perSecond * float64(time.Second))
	}
	return &RateLimitResult{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(math.Max(0, math.Floor(tokens))),
		ResetTime:  now.Add(retryAfter),
		RetryAfter: retryAfter,
	}, nil
}

// Cleanup forgets keys idle for longer than visitorIdle.
func (l *LocalLimiter) Cleanup() int {
	cutoff := l.clock.Now().Add(-visitorIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}
