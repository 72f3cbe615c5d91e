package domain

import (
	"context"
	"io"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetSelf(ctx context.Context, id snowflake.ID) (*User, error)
	NicknameExists(ctx context.Context, nickname string) (bool, error)
	UpdateNickname(ctx context.Context, id snowflake.ID, nickname string) (*User, error)
	UpdateCurrency(ctx context.Context, id snowflake.ID, currency string) (*User, error)
	FindOrCreateByEmail(ctx context.Context, email string) (*User, error)
	// SetVerifiedByEmail reports false when no user has the email.
	SetVerifiedByEmail(ctx context.Context, email string, verified bool) (bool, error)
	Statement(ctx context.Context, id snowflake.ID) (*Statement, error)
	StatementPDF(ctx context.Context, id snowflake.ID) (io.Reader, error)
}
