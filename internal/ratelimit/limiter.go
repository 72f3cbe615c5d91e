package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyPolicy = "ratelimit:%s:%s"

// Policy is a per-client request budget for one route group.
type Policy struct {
	Name      string
	PerMinute int
	Burst     int
}

func (p Policy) perSecond() float64 {
	return float64(p.PerMinute) / 60.0
}

type Policies struct {
	Login    Policy
	Checkout Policy
	Report   Policy
}

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Clock clock.Clock
	Redis *redis.Client `optional:"true"`
}

// Limiter enforces policies with the shared Redis bucket when available and
// falls back to the in-process limiter otherwise.
type Limiter struct {
	bucket   *TokenBucket
	local    *LocalLimiter
	log      *zap.Logger
	policies Policies
}

func NewLimiter(p Params) *Limiter {
	rl := p.Cfg.RateLimit
	return &Limiter{
		bucket: NewTokenBucket(p.Redis),
		local:  NewLocalLimiter(p.Clock),
		log:    p.Log.Named("ratelimit"),
		policies: Policies{
			Login:    Policy{Name: "login", PerMinute: rl.LoginPerMinute, Burst: rl.LoginBurst},
			Checkout: Policy{Name: "checkout", PerMinute: rl.CheckoutPerMinute, Burst: rl.CheckoutBurst},
			Report:   Policy{Name: "report", PerMinute: rl.ReportPerMinute, Burst: rl.ReportBurst},
		},
	}
}

func (l *Limiter) Policies() Policies {
	return l.policies
}

// Allow spends one request of policy for client. A disabled policy always allows.
func (l *Limiter) Allow(ctx context.Context, policy Policy, client string) (*RateLimitResult, error) {
	if policy.PerMinute <= 0 || policy.Burst <= 0 {
		return &RateLimitResult{Allowed: true}, nil
	}
	client = strings.TrimSpace(client)
	if client == "" {
		client = "unknown"
	}
	key := fmt.Sprintf(keyPolicy, policy.Name, client)

	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, key, policy.perSecond(), policy.Burst)
		if err == nil {
			return res, nil
		}
		l.log.Warn("redis rate limit failed, using local limiter", zap.String("policy", policy.Name), zap.Error(err))
	}
	return l.local.Allow(ctx, key, policy.perSecond(), policy.Burst)
}

// Sweep drops idle in-process buckets.
func (l *Limiter) Sweep() int {
	return l.local.Cleanup()
}
