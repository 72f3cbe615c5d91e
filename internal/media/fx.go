package media

import (
	"github.com/smallbiznis/privatedrops/internal/media/repository"
	"github.com/smallbiznis/privatedrops/internal/media/service"
	"github.com/smallbiznis/privatedrops/internal/preview"
	"go.uber.org/fx"
)

var Module = fx.Module("media.service",
	fx.Provide(repository.Provide),
	fx.Provide(preview.NewBlurrer),
	fx.Provide(service.NewService),
)
