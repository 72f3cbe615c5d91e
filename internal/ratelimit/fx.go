package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewLimiter),
	fx.Provide(func(p struct {
		fx.In
		Redis *redis.Client `optional:"true"`
	}) *Locker {
		return NewLocker(p.Redis)
	}),
)
