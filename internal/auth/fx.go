package auth

import (
	"github.com/smallbiznis/privatedrops/internal/auth/service"
	"github.com/smallbiznis/privatedrops/internal/auth/session"
	"github.com/smallbiznis/privatedrops/internal/notification"
	paymentdomain "github.com/smallbiznis/privatedrops/internal/payment/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(session.NewManager),
	fx.Provide(func(n *notification.Service) service.LoginMailer { return n }),
	fx.Provide(func(p paymentdomain.Service) service.AccountProvisioner { return p }),
	fx.Provide(service.New),
)
