package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/privatedrops/internal/observability/tracing"
)

type MailgunConfig struct {
	BaseURL string
	Domain  string
	APIKey  string
	From    string
}

type MailgunProvider struct {
	client *resty.Client
	cfg    MailgunConfig
}

func NewMailgun(cfg MailgunConfig) *MailgunProvider {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(10*time.Second).
		SetTransport(tracing.WrapTransport("mailgun", nil)).
		SetBasicAuth("api", cfg.APIKey)
	return &MailgunProvider{client: client, cfg: cfg}
}

func (p *MailgunProvider) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	form := map[string]string{
		"from":    p.cfg.From,
		"to":      msg.To,
		"subject": msg.Subject,
	}
	if msg.Text != "" {
		form["text"] = msg.Text
	}
	if msg.HTML != "" {
		form["html"] = msg.HTML
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("domain", p.cfg.Domain).
		SetFormData(form).
		Post("/v3/{domain}/messages")
	if err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("mailgun send: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
