package domain

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetCheckoutLink(ctx context.Context, req CheckoutRequest) (string, error)
	VerifyPayment(ctx context.Context, code string, payerIP string) (bool, error)
	OnboardingLink(ctx context.Context, userID snowflake.ID) (string, error)
	// EnsureConnectedAccount returns the user's gateway account id, creating it when missing.
	EnsureConnectedAccount(ctx context.Context, userID snowflake.ID) (string, error)
}

type WebhookService interface {
	IngestWebhook(ctx context.Context, endpoint Endpoint, payload []byte, headers http.Header) error
}

// PayoutNotifier tells a creator about a settled view.
type PayoutNotifier interface {
	EnqueuePayout(ctx context.Context, to string, currency string, amount int64) error
}
