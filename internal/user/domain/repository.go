package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository methods return (nil, nil) when a lookup matches nothing.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindByNonce(ctx context.Context, db *gorm.DB, nonce string) (*User, error)
	FindByNickname(ctx context.Context, db *gorm.DB, nickname string) (*User, error)
	List(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]User, error)

	// CreditPayouts adds amount to the balance without reading it first.
	CreditPayouts(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, now time.Time) error
	SetVerified(ctx context.Context, db *gorm.DB, id snowflake.ID, verified bool, now time.Time) error
	SetNickname(ctx context.Context, db *gorm.DB, id snowflake.ID, nickname string, now time.Time) error
	SetCurrency(ctx context.Context, db *gorm.DB, id snowflake.ID, currency string, now time.Time) error
	SetStripeAccount(ctx context.Context, db *gorm.DB, id snowflake.ID, accountID string, now time.Time) error
	SetNonce(ctx context.Context, db *gorm.DB, id snowflake.ID, nonce *string, expiresAt *time.Time, now time.Time) error
	// ConsumeNonce clears nonce only while it is still the user's current one.
	// It reports false when another redemption got there first.
	ConsumeNonce(ctx context.Context, db *gorm.DB, id snowflake.ID, nonce string, now time.Time) (bool, error)
	// IncrementReports adds a report and bans the user once reports reach
	// banThreshold (zero never bans). It returns the resulting banned flag.
	IncrementReports(ctx context.Context, db *gorm.DB, id snowflake.ID, banThreshold int64, now time.Time) (bool, error)
	SetRole(ctx context.Context, db *gorm.DB, id snowflake.ID, role Role, now time.Time) error
	PurgeExpiredNonces(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
