package domain

import "errors"

var (
	ErrInvalidSignature       = errors.New("invalid_signature")
	ErrInvalidPayload         = errors.New("invalid_payload")
	ErrInvalidEvent           = errors.New("invalid_event")
	ErrInvalidConfig          = errors.New("invalid_provider_config")
	ErrProviderNotFound       = errors.New("provider_not_found")
	ErrEventIgnored           = errors.New("event_ignored")
	ErrEventAlreadyProcessed  = errors.New("event_already_processed")
	ErrAlreadyPaid            = errors.New("already_paid")
	ErrMaxViewsReached        = errors.New("max_views_reached")
	ErrGatewayUnavailable     = errors.New("gateway_unavailable")
	ErrGatewayRequestFailed   = errors.New("gateway_request_failed")
	ErrInvalidCheckoutRequest = errors.New("invalid_checkout_request")
)
