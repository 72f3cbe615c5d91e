package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/privatedrops/internal/auth/domain"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"github.com/smallbiznis/privatedrops/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	nonceBytes    = 6
	nonceAttempts = 3
	tokenIssuer   = "privatedrops"
)

// LoginMailer delivers the sign-in link.
type LoginMailer interface {
	EnqueueLogin(ctx context.Context, to string, link string, expiresIn time.Duration) error
}

// AccountProvisioner makes sure the creator has a payout account at the gateway.
type AccountProvisioner interface {
	EnsureConnectedAccount(ctx context.Context, userID snowflake.ID) (string, error)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Clock    clock.Clock
	Users    userdomain.Service
	UserRepo userdomain.Repository
	Mailer   LoginMailer
	Accounts AccountProvisioner
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	users    userdomain.Service
	userRepo userdomain.Repository
	mailer   LoginMailer
	accounts AccountProvisioner

	appURL   string
	secret   []byte
	tokenTTL time.Duration
	nonceTTL time.Duration
}

func New(p Params) (domain.Service, error) {
	log := p.Log.Named("auth.service")

	secret := []byte(p.Cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		// Tokens will not survive a restart.
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSigningKey, err)
		}
		log.Warn("AUTH_JWT_SECRET not set, using an ephemeral signing key")
	}

	tokenTTL := p.Cfg.Auth.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	nonceTTL := p.Cfg.Auth.NonceTTL
	if nonceTTL <= 0 {
		nonceTTL = 15 * time.Minute
	}

	return &Service{
		db:       p.DB,
		log:      log,
		clock:    p.Clock,
		users:    p.Users,
		userRepo: p.UserRepo,
		mailer:   p.Mailer,
		accounts: p.Accounts,
		appURL:   strings.TrimRight(p.Cfg.AppURL, "/"),
		secret:   secret,
		tokenTTL: tokenTTL,
		nonceTTL: nonceTTL,
	}, nil
}

func (s *Service) RequestLogin(ctx context.Context, email string) error {
	user, err := s.users.FindOrCreateByEmail(ctx, email)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.nonceTTL)

	var nonce string
	for attempt := 0; attempt < nonceAttempts; attempt++ {
		nonce, err = newNonce()
		if err != nil {
			return err
		}
		err = s.userRepo.SetNonce(ctx, s.db, user.ID, &nonce, &expiresAt, now)
		if err == nil {
			break
		}
		if !db.IsDuplicateKeyErr(err) {
			return err
		}
	}
	if err != nil {
		return domain.ErrNonceExhausted
	}

	link := s.appURL + "/login/" + nonce
	if err := s.mailer.EnqueueLogin(ctx, user.Email, link, s.nonceTTL); err != nil {
		return fmt.Errorf("enqueue login mail: %w", err)
	}

	s.log.Info("login requested", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *Service) Login(ctx context.Context, nonce string, ip string) (*domain.LoginResult, error) {
	nonce = strings.ToUpper(strings.TrimSpace(nonce))
	if nonce == "" {
		return nil, domain.ErrInvalidNonce
	}

	user, err := s.userRepo.FindByNonce(ctx, s.db, nonce)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidNonce
	}

	now := s.clock.Now()
	if user.NonceExpiresAt == nil || user.NonceExpiresAt.Before(now) {
		return nil, domain.ErrNonceExpired
	}
	if user.Banned {
		return nil, userdomain.ErrUserBanned
	}

	if user.StripeAccountID == "" {
		if _, err := s.accounts.EnsureConnectedAccount(ctx, user.ID); err != nil {
			s.log.Error("connected account setup failed",
				zap.String("user_id", user.ID.String()),
				zap.String("ip", ip),
				zap.Error(err),
			)
			return nil, fmt.Errorf("ensure connected account: %w", err)
		}
	}

	// Single use: only one concurrent redemption clears the nonce.
	consumed, err := s.userRepo.ConsumeNonce(ctx, s.db, user.ID, nonce, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, domain.ErrInvalidNonce
	}

	token, expiresAt, err := s.issueToken(user, now)
	if err != nil {
		return nil, err
	}

	s.log.Info("user logged in", zap.String("user_id", user.ID.String()))
	return &domain.LoginResult{
		UserID:      user.ID,
		Nickname:    user.Nickname,
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

func (s *Service) ParseToken(ctx context.Context, raw string) (*domain.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.ErrMissingToken
	}

	claims := &domain.Claims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}
	if !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	id, err := snowflake.ParseString(claims.Subject)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return &domain.Principal{UserID: id, Role: userdomain.Role(claims.Role)}, nil
}

func (s *Service) issueToken(user *userdomain.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.tokenTTL)
	claims := domain.Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", domain.ErrSigningKey, err)
	}
	return signed, expiresAt, nil
}

func newNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
