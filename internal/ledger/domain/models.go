package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

type LedgerSourceType string

const (
	SourceTypeView   LedgerSourceType = "view"   // settled pay-per-view payment
	SourceTypePayout LedgerSourceType = "payout" // balance paid out to the creator
)

type LedgerAccountCode string

const (
	// Assets: money collected by the gateway on the creator's behalf.
	AccountCodeGatewayClearing LedgerAccountCode = "gateway_clearing"

	// Liabilities: balance owed to the creator.
	AccountCodeCreatorPayable LedgerAccountCode = "creator_payable"

	// Revenue
	AccountCodePlatformFee LedgerAccountCode = "platform_fee"
)

// LedgerAccount is a per-owner chart-of-accounts entry.
type LedgerAccount struct {
	ID        snowflake.ID      `gorm:"primaryKey"`
	OwnerID   snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_ledger_accounts_owner_code,priority:1"`
	Code      LedgerAccountCode `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_owner_code,priority:2"`
	Name      string            `gorm:"type:text;not null"`
	CreatedAt time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerAccount) TableName() string { return "ledger_accounts" }

// LedgerEntry captures the immutable header for a financial event.
type LedgerEntry struct {
	ID         snowflake.ID     `gorm:"primaryKey"`
	OwnerID    snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_ledger_entries_source,priority:1"`
	SourceType LedgerSourceType `gorm:"type:text;not null;uniqueIndex:ux_ledger_entries_source,priority:2"`
	SourceID   snowflake.ID     `gorm:"not null;uniqueIndex:ux_ledger_entries_source,priority:3"`
	Currency   string           `gorm:"type:text;not null"`
	OccurredAt time.Time        `gorm:"not null"`
	CreatedAt  time.Time        `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// LedgerEntryLine is a double-entry posting line.
type LedgerEntryLine struct {
	ID            snowflake.ID         `gorm:"primaryKey"`
	LedgerEntryID snowflake.ID         `gorm:"not null;index"`
	AccountID     snowflake.ID         `gorm:"not null;index"`
	Direction     LedgerEntryDirection `gorm:"type:text;not null"`
	Amount        int64                `gorm:"not null"`
	CreatedAt     time.Time            `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }

// Posting is a line to be written, addressed by account code.
type Posting struct {
	Account   LedgerAccountCode
	Direction LedgerEntryDirection
	Amount    int64
}

// OwnerEntry is a ledger entry with its amount on one account.
type OwnerEntry struct {
	EntryID    snowflake.ID     `gorm:"column:entry_id"`
	SourceType LedgerSourceType `gorm:"column:source_type"`
	SourceID   snowflake.ID     `gorm:"column:source_id"`
	Currency   string           `gorm:"column:currency"`
	Direction  string           `gorm:"column:direction"`
	Amount     int64            `gorm:"column:amount"`
	OccurredAt time.Time        `gorm:"column:occurred_at"`
}
