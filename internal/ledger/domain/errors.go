package domain

import "errors"

var (
	ErrInvalidOwner         = errors.New("invalid_owner")
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidOccurredAt    = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines    = errors.New("invalid_entry_lines")
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrUnbalancedEntry      = errors.New("unbalanced_entry")
)

// ValidateBalanced checks that debits equal credits.
func ValidateBalanced(postings []Posting) error {
	var debit, credit int64
	for _, p := range postings {
		switch p.Direction {
		case LedgerEntryDirectionDebit:
			debit += p.Amount
		case LedgerEntryDirectionCredit:
			credit += p.Amount
		default:
			return ErrInvalidLineDirection
		}
	}
	if debit != credit {
		return ErrUnbalancedEntry
	}
	return nil
}
