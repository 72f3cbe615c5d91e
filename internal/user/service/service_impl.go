package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	"github.com/smallbiznis/privatedrops/internal/exchange"
	ledgerdomain "github.com/smallbiznis/privatedrops/internal/ledger/domain"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	"github.com/smallbiznis/privatedrops/internal/providers/pdf"
	"github.com/smallbiznis/privatedrops/internal/user/domain"
	"github.com/smallbiznis/privatedrops/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Cfg       config.Config
	Clock     clock.Clock
	Repo      domain.Repository
	MediaRepo mediadomain.Repository
	LedgerSvc ledgerdomain.Service
	Exchange  exchange.Converter
	PDF       pdf.Provider
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	cfg       config.Config
	clock     clock.Clock
	repo      domain.Repository
	mediaRepo mediadomain.Repository
	ledgerSvc ledgerdomain.Service
	exchange  exchange.Converter
	pdf       pdf.Provider
	validate  *validator.Validate
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("user.service"),
		genID:     p.GenID,
		cfg:       p.Cfg,
		clock:     p.Clock,
		repo:      p.Repo,
		mediaRepo: p.MediaRepo,
		ledgerSvc: p.LedgerSvc,
		exchange:  p.Exchange,
		pdf:       p.PDF,
		validate:  validator.New(),
	}
}

func (s *Service) GetSelf(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) NicknameExists(ctx context.Context, nickname string) (bool, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return false, nil
	}
	user, err := s.repo.FindByNickname(ctx, s.db, nickname)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

func (s *Service) UpdateNickname(ctx context.Context, id snowflake.ID, nickname string) (*domain.User, error) {
	nickname = strings.TrimSpace(nickname)
	if err := s.validate.Var(nickname, "required,alphanum,max=32"); err != nil {
		return nil, domain.ErrInvalidNickname
	}

	user, err := s.GetSelf(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Nickname != nil && *user.Nickname == nickname {
		return user, nil
	}

	taken, err := s.repo.FindByNickname(ctx, s.db, nickname)
	if err != nil {
		return nil, err
	}
	if taken != nil && taken.ID != id {
		return nil, domain.ErrNicknameTaken
	}

	if err := s.repo.SetNickname(ctx, s.db, id, nickname, s.clock.Now()); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrNicknameTaken
		}
		return nil, err
	}
	return s.GetSelf(ctx, id)
}

// UpdateCurrency converts every owned media price into the new currency
// before switching the account currency.
func (s *Service) UpdateCurrency(ctx context.Context, id snowflake.ID, currency string) (*domain.User, error) {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if err := s.validate.Var(strings.ToUpper(currency), "required,iso4217"); err != nil {
		return nil, domain.ErrInvalidCurrency
	}

	user, err := s.GetSelf(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Currency == currency {
		return user, nil
	}

	items, err := s.mediaRepo.ListByOwner(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	type conversion struct {
		media mediadomain.Media
		price int64
	}
	converted := make([]conversion, 0, len(items))
	for _, item := range items {
		from := item.Currency
		if from == "" {
			from = user.Currency
		}
		price, err := s.exchange.Convert(ctx, from, currency, item.Price)
		if err != nil {
			return nil, fmt.Errorf("convert media %s: %w", item.Code, err)
		}
		converted = append(converted, conversion{media: item, price: price})
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range converted {
			ok, err := s.mediaRepo.UpdatePrice(ctx, tx, c.media.ID, c.media.Version, c.price, currency, now)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			// A settled view bumped the version; retry once when the price is untouched.
			current, err := s.mediaRepo.FindByID(ctx, tx, c.media.ID)
			if err != nil {
				return err
			}
			if current == nil {
				continue
			}
			if current.Price != c.media.Price || current.Currency != c.media.Currency {
				return mediadomain.ErrVersionConflict
			}
			ok, err = s.mediaRepo.UpdatePrice(ctx, tx, current.ID, current.Version, c.price, currency, now)
			if err != nil {
				return err
			}
			if !ok {
				return mediadomain.ErrVersionConflict
			}
		}
		return s.repo.SetCurrency(ctx, tx, id, currency, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("currency updated",
		zap.String("user_id", id.String()),
		zap.String("from", user.Currency),
		zap.String("to", currency),
		zap.Int("media", len(converted)),
	)
	return s.GetSelf(ctx, id)
}

func (s *Service) FindOrCreateByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, domain.ErrInvalidEmail
	}

	user, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	now := s.clock.Now()
	role := domain.RoleCreator
	if s.cfg.IsAdminEmail(email) {
		role = domain.RoleAdmin
	}
	user = &domain.User{
		ID:        s.genID.Generate(),
		Email:     email,
		Currency:  domain.DefaultCurrency,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		if !db.IsDuplicateKeyErr(err) {
			return nil, err
		}
		// Lost a concurrent signup for the same address.
		existing, findErr := s.repo.FindByEmail(ctx, s.db, email)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, err
		}
		return existing, nil
	}

	s.log.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	return user, nil
}

func (s *Service) SetVerifiedByEmail(ctx context.Context, email string, verified bool) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	if err := s.repo.SetVerified(ctx, s.db, user.ID, verified, s.clock.Now()); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) Statement(ctx context.Context, id snowflake.ID) (*domain.Statement, error) {
	user, err := s.GetSelf(ctx, id)
	if err != nil {
		return nil, err
	}

	entries, err := s.ledgerSvc.ListAccountEntries(ctx, id, ledgerdomain.AccountCodeCreatorPayable)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.StatementLine, 0, len(entries))
	for _, entry := range entries {
		amount := entry.Amount
		// creator_payable is a liability: credits grow the balance.
		if entry.Direction == string(ledgerdomain.LedgerEntryDirectionDebit) {
			amount = -amount
		}
		lines = append(lines, domain.StatementLine{
			EntryID:    entry.EntryID,
			SourceType: string(entry.SourceType),
			SourceID:   entry.SourceID,
			Currency:   entry.Currency,
			Amount:     amount,
			OccurredAt: entry.OccurredAt,
		})
	}

	return &domain.Statement{
		User:    user,
		Lines:   lines,
		Balance: user.Payouts,
	}, nil
}

func (s *Service) StatementPDF(ctx context.Context, id snowflake.ID) (io.Reader, error) {
	statement, err := s.Statement(ctx, id)
	if err != nil {
		return nil, err
	}

	data := pdf.StatementData{
		Email:       statement.User.Email,
		Currency:    statement.User.Currency,
		GeneratedAt: s.clock.Now(),
		Balance:     statement.Balance,
		Lines:       make([]pdf.StatementLine, 0, len(statement.Lines)),
	}
	if statement.User.Nickname != nil {
		data.Nickname = *statement.User.Nickname
	}
	for _, line := range statement.Lines {
		data.Lines = append(data.Lines, pdf.StatementLine{
			Date:        line.OccurredAt,
			Description: describe(line),
			Amount:      line.Amount,
		})
	}
	return s.pdf.GenerateStatement(ctx, data)
}

func describe(line domain.StatementLine) string {
	switch ledgerdomain.LedgerSourceType(line.SourceType) {
	case ledgerdomain.SourceTypeView:
		return "View payout #" + line.SourceID.String()
	case ledgerdomain.SourceTypePayout:
		return "Withdrawal #" + line.SourceID.String()
	default:
		return line.SourceType
	}
}
