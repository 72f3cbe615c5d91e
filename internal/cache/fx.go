package cache

import "go.uber.org/fx"

var Module = fx.Module("cache.redis",
	fx.Provide(NewRedisClient),
)
