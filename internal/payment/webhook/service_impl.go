package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	ledgerdomain "github.com/smallbiznis/privatedrops/internal/ledger/domain"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	"github.com/smallbiznis/privatedrops/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/privatedrops/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/privatedrops/internal/payment/domain"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const versionRetries = 3

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Pricing   *config.PricingConfigHolder
	Adapter   paymentdomain.PaymentAdapter
	Repo      paymentdomain.Repository
	MediaRepo mediadomain.Repository
	UserRepo  userdomain.Repository
	LedgerSvc ledgerdomain.Service
	Notifier  paymentdomain.PayoutNotifier
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	pricing   *config.PricingConfigHolder
	adapter   paymentdomain.PaymentAdapter
	repo      paymentdomain.Repository
	mediaRepo mediadomain.Repository
	userRepo  userdomain.Repository
	ledgerSvc ledgerdomain.Service
	notifier  paymentdomain.PayoutNotifier
	metrics   *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.webhook"),
		genID:     p.GenID,
		clock:     p.Clock,
		pricing:   p.Pricing,
		adapter:   p.Adapter,
		repo:      p.Repo,
		mediaRepo: p.MediaRepo,
		userRepo:  p.UserRepo,
		ledgerSvc: p.LedgerSvc,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
	}
}

// settlement carries what the payout mail needs once the transaction commits.
type settlement struct {
	email    string
	currency string
	payout   int64
}

func (s *Service) IngestWebhook(ctx context.Context, endpoint paymentdomain.Endpoint, payload []byte, headers http.Header) error {
	if err := s.adapter.Verify(ctx, endpoint, payload, headers); err != nil {
		s.metrics.RecordWebhookEvent(ctx, paymentdomain.ProviderStripe, "unknown", "invalid_signature")
		return err
	}

	event, err := s.adapter.Parse(ctx, payload)
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, paymentdomain.ProviderStripe, "unknown", "invalid_payload")
		return err
	}

	log := logger.WithContext(ctx, s.log).With(
		zap.String("event_id", event.ProviderEventID()),
		zap.String("event_type", event.EventType()),
		zap.String("endpoint", string(endpoint)),
	)

	recordID, err := s.record(ctx, event, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			log.Info("webhook event already processed")
			s.metrics.RecordWebhookEvent(ctx, paymentdomain.ProviderStripe, event.EventType(), "duplicate")
		}
		return err
	}

	switch ev := event.(type) {
	case paymentdomain.CheckoutCompleted:
		err = s.handleCheckout(ctx, log, recordID, ev)
	case paymentdomain.AccountUpdated:
		err = s.handleAccountUpdated(ctx, log, recordID, ev)
	case paymentdomain.Ignored:
		if err := s.repo.MarkProcessed(ctx, s.db, recordID, s.clock.Now()); err != nil {
			return err
		}
		s.metrics.RecordWebhookEvent(ctx, paymentdomain.ProviderStripe, ev.Type, "ignored")
		return paymentdomain.ErrEventIgnored
	default:
		return paymentdomain.ErrInvalidEvent
	}

	outcome := "processed"
	if err != nil {
		outcome = "failed"
		log.Error("webhook processing failed", zap.Error(err))
	}
	s.metrics.RecordWebhookEvent(ctx, paymentdomain.ProviderStripe, event.EventType(), outcome)
	return err
}

// record stores the delivery once and returns its row id. A delivery that was
// stored earlier but never finished is handed back for another attempt.
func (s *Service) record(ctx context.Context, event paymentdomain.Event, payload []byte) (snowflake.ID, error) {
	row := &paymentdomain.WebhookEvent{
		ID:              s.genID.Generate(),
		Provider:        paymentdomain.ProviderStripe,
		ProviderEventID: event.ProviderEventID(),
		EventType:       event.EventType(),
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      s.clock.Now(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, row)
	if err != nil {
		return 0, err
	}
	if inserted {
		return row.ID, nil
	}

	existing, err := s.repo.FindEvent(ctx, s.db, row.Provider, row.ProviderEventID)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		return 0, fmt.Errorf("webhook event %s vanished after conflict", row.ProviderEventID)
	}
	if existing.ProcessedAt != nil {
		return 0, paymentdomain.ErrEventAlreadyProcessed
	}
	return existing.ID, nil
}

func (s *Service) handleCheckout(ctx context.Context, log *zap.Logger, recordID snowflake.ID, ev paymentdomain.CheckoutCompleted) error {
	session, err := s.adapter.RetrieveCheckoutSession(ctx, ev.SessionID)
	if err != nil {
		return err
	}
	log = log.With(zap.String("session_id", session.ID))

	if session.PaymentStatus != paymentdomain.PaymentStatusPaid {
		log.Info("checkout session not paid, skipping", zap.String("payment_status", session.PaymentStatus))
		return s.repo.MarkProcessed(ctx, s.db, recordID, s.clock.Now())
	}

	mediaID, err := snowflake.ParseString(session.Metadata[paymentdomain.MetadataMediaID])
	if err != nil {
		log.Warn("checkout session carries no media id")
		return paymentdomain.ErrInvalidEvent
	}
	ip := session.Metadata[paymentdomain.MetadataIP]
	if ip == "" {
		log.Warn("checkout session carries no payer ip")
		return paymentdomain.ErrInvalidEvent
	}

	var done *settlement
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		done, err = s.settle(ctx, tx, log, mediaID, ip)
		if err != nil {
			return err
		}
		return s.repo.MarkProcessed(ctx, tx, recordID, s.clock.Now())
	})
	if err != nil {
		return err
	}
	if done == nil {
		return nil
	}

	s.metrics.RecordSettlement(ctx, done.currency, done.payout)
	if err := s.notifier.EnqueuePayout(ctx, done.email, done.currency, done.payout); err != nil {
		log.Warn("payout notification not enqueued", zap.Error(err))
	}
	return nil
}

// settle appends the paid view and credits the owner. It returns nil when
// there is nothing to credit.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, log *zap.Logger, mediaID snowflake.ID, ip string) (*settlement, error) {
	now := s.clock.Now()

	media, err := s.mediaRepo.FindByID(ctx, tx, mediaID)
	if err != nil {
		return nil, err
	}
	if media == nil {
		log.Error("paid media not found", zap.String("media_id", mediaID.String()))
		return nil, nil
	}

	fee, payout := s.pricing.Get().Fee(media.Price)
	log = log.With(
		zap.String("media_id", media.ID.String()),
		zap.Int64("price", media.Price),
		zap.Int64("fee", fee),
		zap.String("currency", media.Currency),
	)

	owner, err := s.userRepo.FindByID(ctx, tx, media.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		log.Error("media owner not found, payout owed",
			zap.String("owner_id", media.OwnerID.String()),
			zap.Int64("payout", payout),
		)
		return nil, nil
	}

	if media.SingleView {
		paid, err := s.mediaRepo.CountPaidViews(ctx, tx, media.ID)
		if err != nil {
			return nil, err
		}
		if paid > 0 {
			// The payment already happened; the buyer still gets their view.
			log.Warn("single view media paid more than once")
		}
	}

	view := &mediadomain.View{
		ID:        s.genID.Generate(),
		MediaID:   media.ID,
		IP:        ip,
		Payment:   true,
		LastSeen:  now,
		CreatedAt: now,
	}
	inserted, err := s.mediaRepo.InsertView(ctx, tx, view)
	if err != nil {
		return nil, err
	}
	if !inserted {
		log.Info("view already settled for payer")
		return nil, nil
	}

	if err := s.bumpVersion(ctx, tx, media, now); err != nil {
		return nil, err
	}

	if err := s.userRepo.CreditPayouts(ctx, tx, owner.ID, payout, now); err != nil {
		return nil, err
	}

	_, err = s.ledgerSvc.CreateEntry(ctx, tx, owner.ID, ledgerdomain.SourceTypeView, view.ID, media.Currency, now, []ledgerdomain.Posting{
		{Account: ledgerdomain.AccountCodeGatewayClearing, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: media.Price},
		{Account: ledgerdomain.AccountCodeCreatorPayable, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: payout},
		{Account: ledgerdomain.AccountCodePlatformFee, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: fee},
	})
	if err != nil {
		return nil, err
	}

	log.Info("view settled", zap.String("view_id", view.ID.String()), zap.Int64("payout", payout))
	return &settlement{email: owner.Email, currency: media.Currency, payout: payout}, nil
}

func (s *Service) bumpVersion(ctx context.Context, tx *gorm.DB, media *mediadomain.Media, now time.Time) error {
	version := media.Version
	for attempt := 0; attempt < versionRetries; attempt++ {
		ok, err := s.mediaRepo.BumpVersion(ctx, tx, media.ID, version, now)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		current, err := s.mediaRepo.FindByID(ctx, tx, media.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return mediadomain.ErrMediaNotFound
		}
		version = current.Version
	}
	return mediadomain.ErrVersionConflict
}

func (s *Service) handleAccountUpdated(ctx context.Context, log *zap.Logger, recordID snowflake.ID, ev paymentdomain.AccountUpdated) error {
	verified := ev.Verified()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.FindByEmail(ctx, tx, ev.Email)
		if err != nil {
			return err
		}
		if user == nil {
			log.Warn("account update for unknown email", zap.String("account_id", ev.AccountID))
			return s.repo.MarkProcessed(ctx, tx, recordID, s.clock.Now())
		}

		if err := s.userRepo.SetVerified(ctx, tx, user.ID, verified, s.clock.Now()); err != nil {
			return err
		}
		log.Info("creator verification updated",
			zap.String("user_id", user.ID.String()),
			zap.Bool("verified", verified),
		)
		return s.repo.MarkProcessed(ctx, tx, recordID, s.clock.Now())
	})
}
