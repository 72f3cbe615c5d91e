package moderation

import (
	"github.com/smallbiznis/privatedrops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("moderation",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Checker {
		return NewSightengineClient(cfg.Moderate, log)
	}),
	fx.Provide(NewService),
)
