package payment

import (
	"github.com/smallbiznis/privatedrops/internal/config"
	"github.com/smallbiznis/privatedrops/internal/notification"
	"github.com/smallbiznis/privatedrops/internal/payment/adapters"
	"github.com/smallbiznis/privatedrops/internal/payment/adapters/stripe"
	"github.com/smallbiznis/privatedrops/internal/payment/domain"
	"github.com/smallbiznis/privatedrops/internal/payment/repository"
	paymentservice "github.com/smallbiznis/privatedrops/internal/payment/service"
	"github.com/smallbiznis/privatedrops/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(),
		)
	}),
	fx.Provide(NewAdapter),
	fx.Provide(func(n *notification.Service) domain.PayoutNotifier { return n }),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)

func NewAdapter(registry *adapters.Registry, cfg config.Config, log *zap.Logger) (domain.PaymentAdapter, error) {
	if cfg.IsProduction() && (cfg.Stripe.SecretKey == "" || cfg.Stripe.WebhookSecret == "") {
		return nil, domain.ErrInvalidConfig
	}
	return registry.Open(domain.ProviderStripe, domain.AdapterConfig{
		SecretKey:            cfg.Stripe.SecretKey,
		WebhookSecret:        cfg.Stripe.WebhookSecret,
		ConnectWebhookSecret: cfg.Stripe.ConnectWebhookSecret,
		BaseURL:              cfg.Stripe.BaseURL,
		Timeout:              cfg.Stripe.Timeout,
		SignatureTolerance:   cfg.Stripe.SignatureTolerance,
		Log:                  log,
	})
}
