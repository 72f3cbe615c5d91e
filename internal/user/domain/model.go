package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
)

const DefaultCurrency = "eur"

// User is a creator account. Payouts is the settled balance in minor units.
type User struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	Email           string       `json:"email" gorm:"type:text;not null;uniqueIndex"`
	Nickname        *string      `json:"nickname,omitempty" gorm:"type:text;uniqueIndex"`
	Payouts         int64        `json:"payouts" gorm:"not null;default:0"`
	Currency        string       `json:"currency" gorm:"type:text;not null;default:'eur'"`
	StripeAccountID string       `json:"-" gorm:"type:text"`
	Verified        bool         `json:"verified" gorm:"not null;default:false"`
	Role            Role         `json:"role" gorm:"type:text;not null;default:'creator'"`
	Banned          bool         `json:"banned" gorm:"not null;default:false"`
	Reports         int64        `json:"reports" gorm:"not null;default:0"`
	Nonce           *string      `json:"-" gorm:"type:text;uniqueIndex"`
	NonceExpiresAt  *time.Time   `json:"-"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time    `json:"updated_at" gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Statement is the payout history of a creator.
type Statement struct {
	User    *User
	Lines   []StatementLine
	Balance int64
}

type StatementLine struct {
	EntryID    snowflake.ID
	SourceType string
	SourceID   snowflake.ID
	Currency   string
	Amount     int64
	OccurredAt time.Time
}

type NicknameRequest struct {
	Nickname string `json:"nickname" binding:"required,alphanum,max=32"`
}

type CurrencyRequest struct {
	Currency string `json:"currency" binding:"required,len=3"`
}
