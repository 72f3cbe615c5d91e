package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/privatedrops/internal/clock"
	ledgerdomain "github.com/smallbiznis/privatedrops/internal/ledger/domain"
	"github.com/smallbiznis/privatedrops/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (ledgerdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	return svc, db, node
}

func viewPostings(price, payout, fee int64) []ledgerdomain.Posting {
	return []ledgerdomain.Posting{
		{Account: ledgerdomain.AccountCodeGatewayClearing, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: price},
		{Account: ledgerdomain.AccountCodeCreatorPayable, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: payout},
		{Account: ledgerdomain.AccountCodePlatformFee, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: fee},
	}
}

func TestCreateEntryIsIdempotentPerSource(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()
	owner := node.Generate()
	viewID := node.Generate()
	at := time.Date(2026, 6, 1, 11, 0, 0, 0, time.UTC)

	created, err := svc.CreateEntry(ctx, nil, owner, ledgerdomain.SourceTypeView, viewID, "EUR", at, viewPostings(1000, 900, 100))
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if !created {
		t.Fatalf("expected the first entry to be created")
	}

	created, err = svc.CreateEntry(ctx, nil, owner, ledgerdomain.SourceTypeView, viewID, "eur", at, viewPostings(1000, 900, 100))
	if err != nil {
		t.Fatalf("repeat entry: %v", err)
	}
	if created {
		t.Fatalf("expected the repeated source to be skipped")
	}

	var entries, lines, accounts int64
	db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries)
	db.Model(&ledgerdomain.LedgerEntryLine{}).Count(&lines)
	db.Model(&ledgerdomain.LedgerAccount{}).Count(&accounts)
	if entries != 1 || lines != 3 || accounts != 3 {
		t.Fatalf("expected 1 entry, 3 lines and 3 accounts, got %d, %d, %d", entries, lines, accounts)
	}

	rows, err := svc.ListAccountEntries(ctx, owner, ledgerdomain.AccountCodeCreatorPayable)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(rows) != 1 || rows[0].Amount != 900 || rows[0].Currency != "eur" || rows[0].SourceID != viewID {
		t.Fatalf("unexpected payable rows: %+v", rows)
	}
}

func TestCreateEntryRejectsInvalidPostings(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()
	at := time.Date(2026, 6, 1, 11, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		owner    snowflake.ID
		currency string
		postings []ledgerdomain.Posting
		want     error
	}{
		{name: "unbalanced", owner: node.Generate(), currency: "eur", postings: viewPostings(1000, 900, 50), want: ledgerdomain.ErrUnbalancedEntry},
		{name: "missing owner", owner: 0, currency: "eur", postings: viewPostings(1000, 900, 100), want: ledgerdomain.ErrInvalidOwner},
		{name: "missing currency", owner: node.Generate(), currency: " ", postings: viewPostings(1000, 900, 100), want: ledgerdomain.ErrInvalidCurrency},
		{name: "single line", owner: node.Generate(), currency: "eur", postings: viewPostings(1000, 900, 100)[:1], want: ledgerdomain.ErrInvalidEntryLines},
		{
			name: "bad direction", owner: node.Generate(), currency: "eur",
			postings: []ledgerdomain.Posting{
				{Account: ledgerdomain.AccountCodeGatewayClearing, Direction: "sideways", Amount: 10},
				{Account: ledgerdomain.AccountCodeCreatorPayable, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: 10},
			},
			want: ledgerdomain.ErrInvalidLineDirection,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateEntry(ctx, nil, tc.owner, ledgerdomain.SourceTypeView, node.Generate(), tc.currency, at, tc.postings)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	var entries int64
	db.Model(&ledgerdomain.LedgerEntry{}).Count(&entries)
	if entries != 0 {
		t.Fatalf("rejected entries must not be stored, got %d", entries)
	}
}
