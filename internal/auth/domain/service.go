package domain

import "context"

type Service interface {
	// RequestLogin mails a one-time sign-in link, creating the user on first use.
	RequestLogin(ctx context.Context, email string) error
	Login(ctx context.Context, nonce string, ip string) (*LoginResult, error)
	ParseToken(ctx context.Context, raw string) (*Principal, error)
}
