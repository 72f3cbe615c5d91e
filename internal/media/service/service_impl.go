package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	"github.com/smallbiznis/privatedrops/internal/preview"
	"github.com/smallbiznis/privatedrops/internal/storage"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recentViewWindow blocks deletion while a paid viewer may still be watching.
const recentViewWindow = 24 * time.Hour

var allowedMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"video/mp4",
	"video/mpeg",
	"video/webm",
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Cfg      config.Config
	Pricing  *config.PricingConfigHolder
	Clock    clock.Clock
	Repo     mediadomain.Repository
	UserRepo userdomain.Repository
	Store    storage.ObjectStore
	Blurrer  preview.Blurrer
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	pricing         *config.PricingConfigHolder
	clock           clock.Clock
	repo            mediadomain.Repository
	userRepo        userdomain.Repository
	store           storage.ObjectStore
	blurrer         preview.Blurrer
	videoBlurredURL string
	banThreshold    int64
}

func NewService(p Params) mediadomain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("media.service"),
		genID:           p.GenID,
		pricing:         p.Pricing,
		clock:           p.Clock,
		repo:            p.Repo,
		userRepo:        p.UserRepo,
		store:           p.Store,
		blurrer:         p.Blurrer,
		videoBlurredURL: strings.TrimSpace(p.Cfg.Media.VideoBlurredURL),
		banThreshold:    p.Cfg.Media.ReportBanThreshold,
	}
}

func (s *Service) Get(ctx context.Context, code string, ip string) (*mediadomain.MediaView, error) {
	media, err := s.findVisible(ctx, code)
	if err != nil {
		return nil, err
	}

	view, err := s.repo.FindView(ctx, s.db, media.ID, ip)
	if err != nil {
		return nil, err
	}
	hasPaid := view != nil && view.Payment

	url := media.BlurredURL
	if hasPaid {
		if err := s.repo.TouchView(ctx, s.db, view.ID, s.clock.Now()); err != nil {
			return nil, err
		}
		url = media.OriginalURL
	}

	totalViews, err := s.repo.CountPaidViews(ctx, s.db, media.ID)
	if err != nil {
		return nil, err
	}

	result := &mediadomain.MediaView{
		Code:       media.Code,
		URL:        url,
		MimeType:   media.MimeType,
		Price:      media.Price,
		Currency:   media.Currency,
		SingleView: media.SingleView,
		TotalViews: totalViews,
		Viewer: mediadomain.ViewerState{
			HasPaid:      hasPaid,
			LeftFeedback: view != nil && view.LeftFeedback,
		},
	}

	owner, err := s.userRepo.FindByID(ctx, s.db, media.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner != nil && owner.Nickname != nil {
		result.Owner.Nickname = *owner.Nickname
	}
	average, count, err := s.repo.AverageRating(ctx, s.db, media.OwnerID)
	if err != nil {
		return nil, err
	}
	result.Owner.AverageRating = average
	result.Owner.Ratings = count

	return result, nil
}

func (s *Service) ListForOwner(ctx context.Context, ownerID snowflake.ID) ([]mediadomain.OwnerMedia, error) {
	items, err := s.repo.ListByOwner(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	counts, err := s.repo.CountPaidViewsByMedia(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]mediadomain.OwnerMedia, 0, len(items))
	for _, item := range items {
		views := counts[item.ID]
		out = append(out, mediadomain.OwnerMedia{
			Media:       item,
			OriginalURL: item.OriginalURL,
			TotalViews:  views,
			Earnings:    item.Price * views,
		})
	}
	return out, nil
}

func (s *Service) Upload(ctx context.Context, req mediadomain.UploadRequest) (*mediadomain.Media, error) {
	owner, err := s.userRepo.FindByID(ctx, s.db, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, userdomain.ErrUserNotFound
	}
	if owner.Banned {
		return nil, userdomain.ErrUserBanned
	}
	if !owner.Verified {
		return nil, mediadomain.ErrOwnerNotVerified
	}

	pricing := s.pricing.Get()
	if req.Price < pricing.MinPrice || req.Price > pricing.MaxPrice {
		return nil, mediadomain.ErrInvalidPrice
	}
	size := int64(len(req.Body))
	if size < pricing.MinUploadBytes || size > pricing.MaxUploadBytes {
		return nil, mediadomain.ErrInvalidMediaSize
	}

	mimeType, ok := detectMimeType(req.Body)
	if !ok {
		return nil, mediadomain.ErrUnsupportedMediaType
	}

	ownerKey := owner.ID.String()
	originalKey := storage.ObjectKey(ownerKey, req.Filename, req.Body, "")
	originalURL, err := s.store.Put(ctx, originalKey, mimeType, req.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mediadomain.ErrStorageUnavailable, err)
	}

	var blurredKey, blurredURL string
	if strings.HasPrefix(mimeType, "image/") {
		blurred, contentType, err := s.blurrer.Blur(req.Body, mimeType)
		if err != nil {
			s.cleanup(ctx, originalKey)
			return nil, fmt.Errorf("%w: %v", mediadomain.ErrPreviewGenerationError, err)
		}
		blurredKey = storage.ObjectKey(ownerKey, req.Filename, req.Body, "blurred")
		blurredURL, err = s.store.Put(ctx, blurredKey, contentType, blurred)
		if err != nil {
			s.cleanup(ctx, originalKey)
			return nil, fmt.Errorf("%w: %v", mediadomain.ErrStorageUnavailable, err)
		}
	} else {
		blurredURL = s.videoBlurredURL
	}

	now := s.clock.Now()
	media := &mediadomain.Media{
		ID:          s.genID.Generate(),
		Code:        strings.ToLower(ulid.Make().String()),
		OwnerID:     owner.ID,
		Price:       req.Price,
		Currency:    owner.Currency,
		SingleView:  req.SingleView,
		MimeType:    mimeType,
		Size:        size,
		OriginalKey: originalKey,
		OriginalURL: originalURL,
		BlurredKey:  blurredKey,
		BlurredURL:  blurredURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, media); err != nil {
		s.cleanup(ctx, originalKey, blurredKey)
		return nil, err
	}

	s.log.Info("media uploaded",
		zap.String("media_id", media.ID.String()),
		zap.String("owner_id", owner.ID.String()),
		zap.String("mime_type", mimeType),
		zap.Int64("size", size),
	)
	return media, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID, ownerID snowflake.ID) error {
	media, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if media == nil {
		return mediadomain.ErrMediaNotFound
	}
	if media.OwnerID != ownerID {
		return mediadomain.ErrForbidden
	}

	recent, err := s.repo.HasViewsSince(ctx, s.db, media.ID, s.clock.Now().Add(-recentViewWindow))
	if err != nil {
		return err
	}
	if recent {
		return mediadomain.ErrRecentViews
	}

	if err := s.store.Delete(ctx, media.OriginalKey, media.BlurredKey); err != nil {
		return fmt.Errorf("%w: %v", mediadomain.ErrStorageUnavailable, err)
	}
	return s.repo.Delete(ctx, s.db, media.ID)
}

func (s *Service) LeaveFeedback(ctx context.Context, req mediadomain.FeedbackRequest) error {
	if req.Rating < 1 || req.Rating > 5 {
		return mediadomain.ErrInvalidRating
	}
	media, err := s.repo.FindByCode(ctx, s.db, strings.ToLower(strings.TrimSpace(req.Code)))
	if err != nil {
		return err
	}
	if media == nil {
		return mediadomain.ErrMediaNotFound
	}

	view, err := s.repo.FindView(ctx, s.db, media.ID, req.IP)
	if err != nil {
		return err
	}
	if view == nil || !view.Payment {
		return mediadomain.ErrNotPaidViewer
	}
	if view.LeftFeedback {
		return mediadomain.ErrFeedbackAlreadyLeft
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marked, err := s.repo.MarkFeedbackLeft(ctx, tx, view.ID)
		if err != nil {
			return err
		}
		if !marked {
			return mediadomain.ErrFeedbackAlreadyLeft
		}
		return s.repo.InsertRating(ctx, tx, &mediadomain.Rating{
			ID:        s.genID.Generate(),
			UserID:    media.OwnerID,
			MediaID:   media.ID,
			ViewID:    view.ID,
			Score:     req.Rating,
			CreatedAt: s.clock.Now(),
		})
	})
}

func (s *Service) Report(ctx context.Context, code string) error {
	media, err := s.findVisible(ctx, code)
	if err != nil {
		return err
	}
	banned, err := s.userRepo.IncrementReports(ctx, s.db, media.OwnerID, s.banThreshold, s.clock.Now())
	if err != nil {
		if errors.Is(err, userdomain.ErrUserNotFound) {
			return mediadomain.ErrMediaNotFound
		}
		return err
	}
	log := s.log.With(zap.String("media_id", media.ID.String()), zap.String("owner_id", media.OwnerID.String()))
	log.Warn("media reported")
	if banned {
		log.Warn("owner banned after reports", zap.Int64("threshold", s.banThreshold))
	}
	return nil
}

// findVisible hides flagged media from the public.
func (s *Service) findVisible(ctx context.Context, code string) (*mediadomain.Media, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, mediadomain.ErrMediaNotFound
	}
	media, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if media == nil || media.Flagged {
		return nil, mediadomain.ErrMediaNotFound
	}
	return media, nil
}

func (s *Service) cleanup(ctx context.Context, keys ...string) {
	if err := s.store.Delete(ctx, keys...); err != nil {
		s.log.Warn("failed to remove orphaned objects", zap.Strings("keys", keys), zap.Error(err))
	}
}

func detectMimeType(body []byte) (string, bool) {
	detected := mimetype.Detect(body)
	for _, allowed := range allowedMimeTypes {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	return "", false
}
