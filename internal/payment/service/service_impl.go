package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	"github.com/smallbiznis/privatedrops/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/privatedrops/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/privatedrops/internal/payment/domain"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	Clock      clock.Clock
	Gateway    paymentdomain.PaymentAdapter
	MediaRepo  mediadomain.Repository
	UserRepo   userdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	gateway    paymentdomain.Gateway
	mediaRepo  mediadomain.Repository
	userRepo   userdomain.Repository
	obsMetrics *obsmetrics.Metrics

	appURL         string
	defaultCountry string
	refreshURL     string
	returnURL      string
}

func NewService(p Params) paymentdomain.Service {
	appURL := strings.TrimRight(p.Cfg.AppURL, "/")
	refreshURL := strings.TrimSpace(p.Cfg.Stripe.OnboardingRefreshURL)
	if refreshURL == "" {
		refreshURL = appURL + "/profile"
	}
	returnURL := strings.TrimSpace(p.Cfg.Stripe.OnboardingReturnURL)
	if returnURL == "" {
		returnURL = appURL + "/profile"
	}

	return &Service{
		db:             p.DB,
		log:            p.Log.Named("payment.service"),
		clock:          p.Clock,
		gateway:        p.Gateway,
		mediaRepo:      p.MediaRepo,
		userRepo:       p.UserRepo,
		obsMetrics:     p.ObsMetrics,
		appURL:         appURL,
		defaultCountry: strings.TrimSpace(p.Cfg.Stripe.DefaultCountry),
		refreshURL:     refreshURL,
		returnURL:      returnURL,
	}
}

func (s *Service) GetCheckoutLink(ctx context.Context, req paymentdomain.CheckoutRequest) (string, error) {
	code := strings.ToLower(strings.TrimSpace(req.Code))
	ip := strings.TrimSpace(req.PayerIP)
	if code == "" || ip == "" {
		return "", paymentdomain.ErrInvalidCheckoutRequest
	}

	media, err := s.findMedia(ctx, code)
	if err != nil {
		return "", err
	}

	view, err := s.mediaRepo.FindView(ctx, s.db, media.ID, ip)
	if err != nil {
		return "", err
	}
	if view != nil && view.Payment {
		s.obsMetrics.RecordCheckoutSession(ctx, "already_paid")
		return "", paymentdomain.ErrAlreadyPaid
	}
	if media.SingleView {
		paid, err := s.mediaRepo.CountPaidViews(ctx, s.db, media.ID)
		if err != nil {
			return "", err
		}
		if paid > 0 {
			s.obsMetrics.RecordCheckoutSession(ctx, "max_views")
			return "", paymentdomain.ErrMaxViewsReached
		}
	}

	successURL := strings.TrimSpace(req.SuccessURL)
	if successURL == "" {
		successURL = fmt.Sprintf("%s/media/%s?paid=1", s.appURL, media.Code)
	}
	cancelURL := strings.TrimSpace(req.CancelURL)
	if cancelURL == "" {
		cancelURL = fmt.Sprintf("%s/media/%s", s.appURL, media.Code)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, paymentdomain.CheckoutSessionParams{
		MediaID:        media.ID,
		Code:           media.Code,
		Amount:         media.Price,
		Currency:       media.Currency,
		ProductName:    "Media " + media.Code,
		ImageURL:       media.BlurredURL,
		PayerIP:        ip,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		IdempotencyKey: fmt.Sprintf("checkout:%s:%s", media.ID, ip),
	})
	if err != nil {
		s.obsMetrics.RecordCheckoutSession(ctx, "gateway_error")
		logger.WithContext(ctx, s.log).Warn("checkout session failed",
			zap.String("media_code", media.Code),
			zap.Error(err),
		)
		return "", err
	}

	s.obsMetrics.RecordCheckoutSession(ctx, "created")
	return session.URL, nil
}

func (s *Service) VerifyPayment(ctx context.Context, code string, payerIP string) (bool, error) {
	media, err := s.findMedia(ctx, strings.ToLower(strings.TrimSpace(code)))
	if err != nil {
		return false, err
	}
	view, err := s.mediaRepo.FindView(ctx, s.db, media.ID, strings.TrimSpace(payerIP))
	if err != nil {
		return false, err
	}
	return view != nil && view.Payment, nil
}

func (s *Service) OnboardingLink(ctx context.Context, userID snowflake.ID) (string, error) {
	accountID, err := s.EnsureConnectedAccount(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.gateway.CreateAccountLink(ctx, accountID, s.refreshURL, s.returnURL)
}

func (s *Service) EnsureConnectedAccount(ctx context.Context, userID snowflake.ID) (string, error) {
	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", userdomain.ErrUserNotFound
	}
	if user.StripeAccountID != "" {
		return user.StripeAccountID, nil
	}

	accountID, err := s.gateway.CreateConnectedAccount(ctx, paymentdomain.ConnectedAccountParams{
		Email:   user.Email,
		Country: s.defaultCountry,
	})
	if err != nil {
		return "", err
	}
	if err := s.userRepo.SetStripeAccount(ctx, s.db, user.ID, accountID, s.clock.Now()); err != nil {
		return "", err
	}
	logger.WithContext(ctx, s.log).Info("connected account created",
		zap.String("user_id", user.ID.String()),
		zap.String("account_id", accountID),
	)
	return accountID, nil
}

func (s *Service) findMedia(ctx context.Context, code string) (*mediadomain.Media, error) {
	if code == "" {
		return nil, mediadomain.ErrMediaNotFound
	}
	media, err := s.mediaRepo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if media == nil || media.Flagged {
		return nil, mediadomain.ErrMediaNotFound
	}
	return media, nil
}
