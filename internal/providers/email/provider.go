package email

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var ErrInvalidMessage = errors.New("invalid_email_message")

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func (m Message) validate() error {
	if m.To == "" || m.Subject == "" || (m.Text == "" && m.HTML == "") {
		return ErrInvalidMessage
	}
	return nil
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// NoOpProvider only logs; it is the default outside production.
type NoOpProvider struct {
	log *zap.Logger
}

func NewNoOp(log *zap.Logger) *NoOpProvider {
	return &NoOpProvider{log: log.Named("email.noop")}
}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	p.log.Debug("email suppressed", zap.String("subject", msg.Subject))
	return nil
}
