package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/privatedrops/internal/clock"
	ledgerdomain "github.com/smallbiznis/privatedrops/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) CreateEntry(
	ctx context.Context,
	tx *gorm.DB,
	ownerID snowflake.ID,
	sourceType ledgerdomain.LedgerSourceType,
	sourceID snowflake.ID,
	currency string,
	occurredAt time.Time,
	postings []ledgerdomain.Posting,
) (bool, error) {
	if ownerID == 0 {
		return false, ledgerdomain.ErrInvalidOwner
	}
	if strings.TrimSpace(string(sourceType)) == "" {
		return false, ledgerdomain.ErrInvalidSourceType
	}
	if sourceID == 0 {
		return false, ledgerdomain.ErrInvalidSourceID
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return false, ledgerdomain.ErrInvalidCurrency
	}
	if occurredAt.IsZero() {
		return false, ledgerdomain.ErrInvalidOccurredAt
	}
	if len(postings) < 2 {
		return false, ledgerdomain.ErrInvalidEntryLines
	}

	normalized := make([]ledgerdomain.Posting, 0, len(postings))
	for _, posting := range postings {
		if strings.TrimSpace(string(posting.Account)) == "" {
			return false, ledgerdomain.ErrInvalidAccount
		}
		direction, err := normalizeDirection(posting.Direction)
		if err != nil {
			return false, err
		}
		if posting.Amount < 0 {
			return false, ledgerdomain.ErrInvalidLineAmount
		}
		posting.Direction = direction
		normalized = append(normalized, posting)
	}
	if err := ledgerdomain.ValidateBalanced(normalized); err != nil {
		return false, err
	}

	if tx == nil {
		tx = s.db
	}
	now := s.clock.Now()
	entryID := s.genID.Generate()

	result := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (
			id, owner_id, source_type, source_id, currency, occurred_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, source_type, source_id) DO NOTHING`,
		entryID,
		ownerID,
		string(sourceType),
		sourceID,
		currency,
		occurredAt.UTC(),
		now,
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	for _, posting := range normalized {
		if posting.Amount == 0 {
			continue
		}
		accountID, err := s.ensureAccount(ctx, tx, ownerID, posting.Account, now)
		if err != nil {
			return false, err
		}
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO ledger_entry_lines (
				id, ledger_entry_id, account_id, direction, amount, created_at
			) VALUES (?, ?, ?, ?, ?, ?)`,
			s.genID.Generate(),
			entryID,
			accountID,
			string(posting.Direction),
			posting.Amount,
			now,
		).Error; err != nil {
			return false, err
		}
	}

	s.log.Debug("ledger entry created",
		zap.String("entry_id", entryID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("source_type", string(sourceType)),
		zap.String("source_id", sourceID.String()),
	)
	return true, nil
}

func (s *Service) ListAccountEntries(ctx context.Context, ownerID snowflake.ID, account ledgerdomain.LedgerAccountCode) ([]ledgerdomain.OwnerEntry, error) {
	var rows []ledgerdomain.OwnerEntry
	err := s.db.WithContext(ctx).Raw(
		`SELECT e.id AS entry_id, e.source_type, e.source_id, e.currency,
			l.direction, l.amount, e.occurred_at
		 FROM ledger_entries e
		 JOIN ledger_entry_lines l ON l.ledger_entry_id = e.id
		 JOIN ledger_accounts a ON a.id = l.account_id
		 WHERE e.owner_id = ? AND a.code = ?
		 ORDER BY e.occurred_at DESC, e.id DESC`,
		ownerID,
		string(account),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) ensureAccount(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID, code ledgerdomain.LedgerAccountCode, now time.Time) (snowflake.ID, error) {
	var accountID snowflake.ID
	if err := tx.WithContext(ctx).Raw(
		`SELECT id
		 FROM ledger_accounts
		 WHERE owner_id = ? AND code = ?`,
		ownerID,
		string(code),
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID != 0 {
		return accountID, nil
	}

	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_accounts (id, owner_id, code, name, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (owner_id, code) DO NOTHING`,
		s.genID.Generate(),
		ownerID,
		string(code),
		string(code),
		now,
	).Error; err != nil {
		return 0, err
	}

	if err := tx.WithContext(ctx).Raw(
		`SELECT id
		 FROM ledger_accounts
		 WHERE owner_id = ? AND code = ?`,
		ownerID,
		string(code),
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID == 0 {
		return 0, errors.New("ledger_account_not_found")
	}
	return accountID, nil
}

func normalizeDirection(direction ledgerdomain.LedgerEntryDirection) (ledgerdomain.LedgerEntryDirection, error) {
	switch strings.ToLower(strings.TrimSpace(string(direction))) {
	case string(ledgerdomain.LedgerEntryDirectionDebit):
		return ledgerdomain.LedgerEntryDirectionDebit, nil
	case string(ledgerdomain.LedgerEntryDirectionCredit):
		return ledgerdomain.LedgerEntryDirectionCredit, nil
	default:
		return "", ledgerdomain.ErrInvalidLineDirection
	}
}
