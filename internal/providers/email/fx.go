package email

import (
	"github.com/smallbiznis/privatedrops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	switch cfg.Email.Provider {
	case "smtp":
		return NewSMTP(Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.From,
		})
	case "mailgun":
		return NewMailgun(MailgunConfig{
			BaseURL: cfg.Email.MailgunURL,
			Domain:  cfg.Email.MailgunDomain,
			APIKey:  cfg.Email.MailgunAPIKey,
			From:    cfg.Email.From,
		})
	default:
		if cfg.Email.Provider != "" && cfg.Email.Provider != "noop" {
			log.Warn("unknown email provider, mail is disabled", zap.String("provider", cfg.Email.Provider))
		}
		return NewNoOp(log)
	}
}
