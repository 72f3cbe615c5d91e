package domain

import "errors"

var (
	ErrInvalidNonce   = errors.New("invalid_nonce")
	ErrNonceExpired   = errors.New("nonce_expired")
	ErrMissingToken   = errors.New("missing_token")
	ErrInvalidToken   = errors.New("invalid_token")
	ErrTokenExpired   = errors.New("token_expired")
	ErrSigningKey     = errors.New("signing_key_unavailable")
	ErrNonceExhausted = errors.New("nonce_generation_failed")
)
