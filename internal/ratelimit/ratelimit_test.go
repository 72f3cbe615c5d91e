package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	"go.uber.org/zap"
)

func TestLocalLimiterRefills(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewLocalLimiter(clk)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "k", 1, 2)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d should pass: %+v %v", i, res, err)
		}
	}
	res, _ := l.Allow(ctx, "k", 1, 2)
	if res.Allowed {
		t.Fatalf("third request should be limited")
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Second {
		t.Fatalf("unexpected retry after %v", res.RetryAfter)
	}

	clk.Advance(time.Second)
	res, _ = l.Allow(ctx, "k", 1, 2)
	if !res.Allowed {
		t.Fatalf("bucket should have refilled")
	}

	// Other keys have their own bucket.
	res, _ = l.Allow(ctx, "other", 1, 2)
	if !res.Allowed {
		t.Fatalf("other key should pass")
	}
}

func TestLocalLimiterCleanup(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewLocalLimiter(clk)
	_, _ = l.Allow(context.Background(), "idle", 1, 1)
	clk.Advance(visitorIdle + time.Second)
	_, _ = l.Allow(context.Background(), "fresh", 1, 1)

	if removed := l.Cleanup(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if l.Len() != 1 {
		t.Fatalf("expected 1 visitor left, got %d", l.Len())
	}
}

func TestLimiterWithoutRedisUsesLocalBuckets(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := NewLimiter(Params{
		Cfg:   config.Config{RateLimit: config.RateLimitConfig{LoginPerMinute: 5, LoginBurst: 1}},
		Log:   zap.NewNop(),
		Clock: clk,
	})
	ctx := context.Background()
	login := limiter.Policies().Login

	res, err := limiter.Allow(ctx, login, "10.0.0.1")
	if err != nil || !res.Allowed {
		t.Fatalf("first login should pass: %+v %v", res, err)
	}
	res, _ = limiter.Allow(ctx, login, "10.0.0.1")
	if res.Allowed {
		t.Fatalf("second login should be limited")
	}
	res, _ = limiter.Allow(ctx, login, "10.0.0.2")
	if !res.Allowed {
		t.Fatalf("another client should pass")
	}

	// Checkout has no budget configured here.
	for i := 0; i < 10; i++ {
		res, _ = limiter.Allow(ctx, limiter.Policies().Checkout, "10.0.0.1")
		if !res.Allowed {
			t.Fatalf("disabled policy must allow")
		}
	}
}

func TestDefaultBucketTTL(t *testing.T) {
	if got := defaultBucketTTL(0.5, 3); got != 12*time.Second {
		t.Fatalf("expected 12s, got %v", got)
	}
	if got := defaultBucketTTL(100, 1); got != time.Second {
		t.Fatalf("expected 1s floor, got %v", got)
	}
}

func TestNilLockerIsInert(t *testing.T) {
	l := NewLocker(nil)
	if l != nil {
		t.Fatalf("expected nil locker without redis")
	}
	lease, err := l.Acquire(context.Background(), "moderate_media", time.Second)
	if !errors.Is(err, ErrLockerDisabled) {
		t.Fatalf("expected ErrLockerDisabled, got %v", err)
	}
	if err := lease.Release(context.Background()); err != nil {
		t.Fatalf("release of a nil lease: %v", err)
	}
}
