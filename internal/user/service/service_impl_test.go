package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	ledgerdomain "github.com/smallbiznis/privatedrops/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/privatedrops/internal/ledger/service"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	mediarepo "github.com/smallbiznis/privatedrops/internal/media/repository"
	"github.com/smallbiznis/privatedrops/internal/providers/pdf"
	"github.com/smallbiznis/privatedrops/internal/testutil"
	"github.com/smallbiznis/privatedrops/internal/user/domain"
	"github.com/smallbiznis/privatedrops/internal/user/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// rateConverter multiplies by a fixed rate and rounds up.
type rateConverter struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (c *rateConverter) Convert(ctx context.Context, from, to string, amount int64) (int64, error) {
	c.calls++
	if c.err != nil {
		return 0, c.err
	}
	return decimal.NewFromInt(amount).Mul(c.rate).Ceil().IntPart(), nil
}

type fixture struct {
	db        *gorm.DB
	svc       domain.Service
	clock     *clock.FakeClock
	genID     *snowflake.Node
	converter *rateConverter
	ledger    ledgerdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	genID := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC))
	converter := &rateConverter{rate: decimal.RequireFromString("1.0834")}
	ledger := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: zap.NewNop(), GenID: genID, Clock: clk})

	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     genID,
		Cfg:       config.Config{Auth: config.AuthConfig{AdminEmails: []string{"root@privatedrops.test"}}},
		Clock:     clk,
		Repo:      repository.Provide(),
		MediaRepo: mediarepo.Provide(),
		LedgerSvc: ledger,
		Exchange:  converter,
		PDF:       pdf.NewProvider(),
	})
	return &fixture{db: db, svc: svc, clock: clk, genID: genID, converter: converter, ledger: ledger}
}

func (f *fixture) seedMedia(t *testing.T, ownerID snowflake.ID, price int64) *mediadomain.Media {
	t.Helper()
	now := f.clock.Now()
	media := &mediadomain.Media{
		ID: f.genID.Generate(), Code: "m" + f.genID.Generate().String(), OwnerID: ownerID,
		Price: price, Currency: "eur", MimeType: "image/png", Size: 20000,
		OriginalKey: "o", OriginalURL: "https://cdn.test/o", BlurredURL: "https://cdn.test/b",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(media).Error)
	return media
}

func TestFindOrCreateByEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.FindOrCreateByEmail(ctx, "  Bob@Example.com ")
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", first.Email)
	require.Equal(t, domain.DefaultCurrency, first.Currency)
	require.Equal(t, domain.RoleCreator, first.Role)

	again, err := f.svc.FindOrCreateByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	admin, err := f.svc.FindOrCreateByEmail(ctx, "root@privatedrops.test")
	require.NoError(t, err)
	require.True(t, admin.IsAdmin())

	if _, err := f.svc.FindOrCreateByEmail(ctx, "not-an-email"); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestUpdateNickname(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice, err := f.svc.FindOrCreateByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	bob, err := f.svc.FindOrCreateByEmail(ctx, "bob@example.com")
	require.NoError(t, err)

	updated, err := f.svc.UpdateNickname(ctx, alice.ID, "alice42")
	require.NoError(t, err)
	require.NotNil(t, updated.Nickname)
	require.Equal(t, "alice42", *updated.Nickname)

	exists, err := f.svc.NicknameExists(ctx, "ALICE42")
	require.NoError(t, err)
	require.True(t, exists)

	if _, err := f.svc.UpdateNickname(ctx, bob.ID, "Alice42"); !errors.Is(err, domain.ErrNicknameTaken) {
		t.Fatalf("expected ErrNicknameTaken, got %v", err)
	}
	if _, err := f.svc.UpdateNickname(ctx, bob.ID, "bob smith"); !errors.Is(err, domain.ErrInvalidNickname) {
		t.Fatalf("expected ErrInvalidNickname, got %v", err)
	}

	// Keeping the same nickname is not a conflict with oneself.
	_, err = f.svc.UpdateNickname(ctx, alice.ID, "alice42")
	require.NoError(t, err)
}

func TestUpdateCurrencyConvertsOwnedMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner, err := f.svc.FindOrCreateByEmail(ctx, "creator@example.com")
	require.NoError(t, err)
	cheap := f.seedMedia(t, owner.ID, 1000)
	dear := f.seedMedia(t, owner.ID, 2501)

	updated, err := f.svc.UpdateCurrency(ctx, owner.ID, "USD")
	require.NoError(t, err)
	require.Equal(t, "usd", updated.Currency)
	require.Equal(t, 2, f.converter.calls)

	repo := mediarepo.Provide()
	got, err := repo.FindByID(ctx, f.db, cheap.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1084), got.Price)
	require.Equal(t, "usd", got.Currency)
	require.Equal(t, int64(1), got.Version)

	got, err = repo.FindByID(ctx, f.db, dear.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2710), got.Price)

	// Switching to the current currency is a no-op.
	_, err = f.svc.UpdateCurrency(ctx, owner.ID, "usd")
	require.NoError(t, err)
	require.Equal(t, 2, f.converter.calls)
}

func TestUpdateCurrencyFailuresLeaveDataUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner, err := f.svc.FindOrCreateByEmail(ctx, "creator@example.com")
	require.NoError(t, err)
	media := f.seedMedia(t, owner.ID, 1000)

	if _, err := f.svc.UpdateCurrency(ctx, owner.ID, "zzz"); !errors.Is(err, domain.ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}

	f.converter.err = errors.New("rates down")
	_, err = f.svc.UpdateCurrency(ctx, owner.ID, "gbp")
	require.Error(t, err)

	self, err := f.svc.GetSelf(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, "eur", self.Currency)

	got, err := mediarepo.Provide().FindByID(ctx, f.db, media.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), got.Price)
	require.Equal(t, "eur", got.Currency)
}

func TestSetVerifiedByEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	found, err := f.svc.SetVerifiedByEmail(ctx, "ghost@example.com", true)
	require.NoError(t, err)
	require.False(t, found)

	user, err := f.svc.FindOrCreateByEmail(ctx, "creator@example.com")
	require.NoError(t, err)

	found, err = f.svc.SetVerifiedByEmail(ctx, "Creator@Example.com", true)
	require.NoError(t, err)
	require.True(t, found)

	self, err := f.svc.GetSelf(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, self.Verified)
}

func TestStatementListsPayoutCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.FindOrCreateByEmail(ctx, "creator@example.com")
	require.NoError(t, err)

	viewID := f.genID.Generate()
	err = f.db.Transaction(func(tx *gorm.DB) error {
		if _, err := f.ledger.CreateEntry(ctx, tx, user.ID, ledgerdomain.SourceTypeView, viewID, "eur", f.clock.Now(), []ledgerdomain.Posting{
			{Account: ledgerdomain.AccountCodeGatewayClearing, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: 1000},
			{Account: ledgerdomain.AccountCodeCreatorPayable, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: 900},
			{Account: ledgerdomain.AccountCodePlatformFee, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: 100},
		}); err != nil {
			return err
		}
		return repository.Provide().CreditPayouts(ctx, tx, user.ID, 900, f.clock.Now())
	})
	require.NoError(t, err)

	statement, err := f.svc.Statement(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, statement.Lines, 1)
	require.Equal(t, int64(900), statement.Lines[0].Amount)
	require.Equal(t, viewID, statement.Lines[0].SourceID)
	require.Equal(t, int64(900), statement.Balance)

	r, err := f.svc.StatementPDF(ctx, user.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	if _, err := f.svc.Statement(ctx, f.genID.Generate()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
