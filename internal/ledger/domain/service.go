package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// CreateEntry posts a balanced entry inside tx. It reports false when an
	// entry for the same owner and source already exists.
	CreateEntry(
		ctx context.Context,
		tx *gorm.DB,
		ownerID snowflake.ID,
		sourceType LedgerSourceType,
		sourceID snowflake.ID,
		currency string,
		occurredAt time.Time,
		postings []Posting,
	) (bool, error)
	// ListAccountEntries returns the lines posted to one owner account, newest first.
	ListAccountEntries(ctx context.Context, ownerID snowflake.ID, account LedgerAccountCode) ([]OwnerEntry, error)
}
