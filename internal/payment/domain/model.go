package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const ProviderStripe = "stripe"

// WebhookEvent records every verified gateway delivery once.
type WebhookEvent struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_webhook_events_provider_event,priority:1"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:ux_webhook_events_provider_event,priority:2"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// Endpoint selects which webhook signing secret applies.
type Endpoint string

const (
	EndpointPlatform Endpoint = "platform"
	EndpointConnect  Endpoint = "connect"
)

type CheckoutSessionParams struct {
	MediaID        snowflake.ID
	Code           string
	Amount         int64
	Currency       string
	ProductName    string
	ImageURL       string
	PayerIP        string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

type CheckoutSession struct {
	ID            string
	URL           string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
}

const PaymentStatusPaid = "paid"

// Checkout session metadata keys.
const (
	MetadataMediaID = "mediaId"
	MetadataCode    = "code"
	MetadataIP      = "ip"
)

type CheckoutRequest struct {
	Code       string `json:"code" binding:"required,alphanum"`
	SuccessURL string `json:"success_url" binding:"omitempty,url"`
	CancelURL  string `json:"cancel_url" binding:"omitempty,url"`
	PayerIP    string `json:"-"`
}

type ConnectedAccountParams struct {
	Email   string
	Country string
}
