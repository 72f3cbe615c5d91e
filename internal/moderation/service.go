package moderation

import (
	"context"
	"errors"

	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultThreshold = 0.7

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	Clock     clock.Clock
	MediaRepo mediadomain.Repository
	Checker   Checker
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	mediaRepo mediadomain.Repository
	checker   Checker
	threshold float64
}

type SweepResult struct {
	Checked int
	Flagged int
	Skipped int
}

func NewService(p Params) *Service {
	threshold := p.Cfg.Moderate.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultThreshold
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("moderation.service"),
		clock:     p.Clock,
		mediaRepo: p.MediaRepo,
		checker:   p.Checker,
		threshold: threshold,
	}
}

// Sweep moderates up to limit media that were never checked. Only images are
// scored; other media are marked moderated as-is. Media whose check fails
// stay unmoderated for the next sweep.
func (s *Service) Sweep(ctx context.Context, limit int) (SweepResult, error) {
	var result SweepResult

	items, err := s.mediaRepo.ListUnmoderated(ctx, s.db, limit)
	if err != nil {
		return result, err
	}

	for _, media := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		flagged := false
		if media.IsImage() {
			score, err := s.checker.MinorScore(ctx, media.OriginalURL)
			if errors.Is(err, ErrNotConfigured) {
				return result, nil
			}
			if errors.Is(err, ErrUnavailable) {
				return result, err
			}
			if err != nil {
				result.Skipped++
				s.log.Warn("moderation check failed", zap.String("media_id", media.ID.String()), zap.Error(err))
				continue
			}
			flagged = score >= s.threshold
			result.Checked++
		}

		if err := s.mediaRepo.MarkModerated(ctx, s.db, media.ID, flagged, s.clock.Now()); err != nil {
			return result, err
		}
		if flagged {
			result.Flagged++
			s.log.Warn("media flagged: may contain minors",
				zap.String("media_id", media.ID.String()),
				zap.String("owner_id", media.OwnerID.String()),
			)
		}
	}
	return result, nil
}
