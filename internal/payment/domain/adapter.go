package domain

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Gateway is the outbound side of a payment processor.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	CreateConnectedAccount(ctx context.Context, params ConnectedAccountParams) (string, error)
	CreateAccountLink(ctx context.Context, accountID string, refreshURL string, returnURL string) (string, error)
}

// PaymentAdapter is a Gateway that also understands its own webhooks.
type PaymentAdapter interface {
	Gateway
	Verify(ctx context.Context, endpoint Endpoint, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (Event, error)
}

type AdapterConfig struct {
	SecretKey            string
	WebhookSecret        string
	ConnectWebhookSecret string
	BaseURL              string
	Timeout              time.Duration
	// SignatureTolerance bounds the age of a signed webhook; zero disables the check.
	SignatureTolerance time.Duration
	Log                *zap.Logger
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}
