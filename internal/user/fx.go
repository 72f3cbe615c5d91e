package user

import (
	"github.com/smallbiznis/privatedrops/internal/providers/pdf"
	"github.com/smallbiznis/privatedrops/internal/user/repository"
	"github.com/smallbiznis/privatedrops/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(pdf.NewProvider),
	fx.Provide(service.NewService),
)
