package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/privatedrops/internal/media/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const mediaColumns = `id, code, owner_id, price, currency, single_view, mime_type, size,
	original_key, original_url, blurred_key, blurred_url, flagged, moderated_at, version,
	created_at, updated_at`

const viewColumns = `id, media_id, ip, payment, left_feedback, last_seen, created_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, media *domain.Media) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO media (`+mediaColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		media.ID,
		media.Code,
		media.OwnerID,
		media.Price,
		media.Currency,
		media.SingleView,
		media.MimeType,
		media.Size,
		media.OriginalKey,
		media.OriginalURL,
		media.BlurredKey,
		media.BlurredURL,
		media.Flagged,
		media.ModeratedAt,
		media.Version,
		media.CreatedAt,
		media.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Media, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Media, error) {
	return r.findOne(ctx, db, `code = ?`, code)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.Media, error) {
	var item domain.Media
	err := db.WithContext(ctx).Raw(
		`SELECT `+mediaColumns+`
		 FROM media
		 WHERE `+where+`
		 LIMIT 1`,
		arg,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]domain.Media, error) {
	var items []domain.Media
	err := db.WithContext(ctx).Raw(
		`SELECT `+mediaColumns+`
		 FROM media
		 WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC`,
		ownerID,
	).Scan(&items).Error
	return items, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]domain.Media, error) {
	var items []domain.Media
	err := db.WithContext(ctx).Raw(
		`SELECT `+mediaColumns+`
		 FROM media
		 WHERE id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		afterID,
		limit,
	).Scan(&items).Error
	return items, err
}

func (r *repo) ListFlagged(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]domain.Media, error) {
	var items []domain.Media
	err := db.WithContext(ctx).Raw(
		`SELECT `+mediaColumns+`
		 FROM media
		 WHERE flagged = ? AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		true,
		afterID,
		limit,
	).Scan(&items).Error
	return items, err
}

func (r *repo) ListUnmoderated(ctx context.Context, db *gorm.DB, limit int) ([]domain.Media, error) {
	var items []domain.Media
	err := db.WithContext(ctx).Raw(
		`SELECT `+mediaColumns+`
		 FROM media
		 WHERE moderated_at IS NULL
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		limit,
	).Scan(&items).Error
	return items, err
}

func (r *repo) BumpVersion(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE media
		 SET version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		now,
		id,
		version,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdatePrice(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, price int64, currency string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE media
		 SET price = ?, currency = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		price,
		currency,
		now,
		id,
		version,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkModerated(ctx context.Context, db *gorm.DB, id snowflake.ID, flagged bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE media
		 SET flagged = ?, moderated_at = ?, updated_at = ?
		 WHERE id = ?`,
		flagged,
		now,
		now,
		id,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM ratings WHERE media_id = ?`, id).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM views WHERE media_id = ?`, id).Error; err != nil {
			return err
		}
		res := tx.Exec(`DELETE FROM media WHERE id = ?`, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrMediaNotFound
		}
		return nil
	})
}

func (r *repo) InsertView(ctx context.Context, db *gorm.DB, view *domain.View) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO views (`+viewColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (media_id, ip) DO NOTHING`,
		view.ID,
		view.MediaID,
		view.IP,
		view.Payment,
		view.LeftFeedback,
		view.LastSeen,
		view.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindView(ctx context.Context, db *gorm.DB, mediaID snowflake.ID, ip string) (*domain.View, error) {
	var item domain.View
	err := db.WithContext(ctx).Raw(
		`SELECT `+viewColumns+`
		 FROM views
		 WHERE media_id = ? AND ip = ?
		 LIMIT 1`,
		mediaID,
		ip,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListViews(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]domain.View, error) {
	var items []domain.View
	err := db.WithContext(ctx).Raw(
		`SELECT `+viewColumns+`
		 FROM views
		 WHERE id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		afterID,
		limit,
	).Scan(&items).Error
	return items, err
}

func (r *repo) CountPaidViews(ctx context.Context, db *gorm.DB, mediaID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*)
		 FROM views
		 WHERE media_id = ? AND payment = ?`,
		mediaID,
		true,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountPaidViewsByMedia(ctx context.Context, db *gorm.DB, mediaIDs []snowflake.ID) (map[snowflake.ID]int64, error) {
	counts := make(map[snowflake.ID]int64, len(mediaIDs))
	if len(mediaIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		MediaID snowflake.ID `gorm:"column:media_id"`
		Total   int64        `gorm:"column:total"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT media_id, COUNT(*) AS total
		 FROM views
		 WHERE media_id IN ? AND payment = ?
		 GROUP BY media_id`,
		mediaIDs,
		true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.MediaID] = row.Total
	}
	return counts, nil
}

func (r *repo) TouchView(ctx context.Context, db *gorm.DB, viewID snowflake.ID, seenAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE views SET last_seen = ? WHERE id = ?`,
		seenAt,
		viewID,
	).Error
}

func (r *repo) HasViewsSince(ctx context.Context, db *gorm.DB, mediaID snowflake.ID, since time.Time) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*)
		 FROM views
		 WHERE media_id = ? AND last_seen > ?`,
		mediaID,
		since,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) MarkFeedbackLeft(ctx context.Context, db *gorm.DB, viewID snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE views
		 SET left_feedback = ?
		 WHERE id = ? AND left_feedback = ?`,
		true,
		viewID,
		false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertRating(ctx context.Context, db *gorm.DB, rating *domain.Rating) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ratings (id, user_id, media_id, view_id, score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rating.ID,
		rating.UserID,
		rating.MediaID,
		rating.ViewID,
		rating.Score,
		rating.CreatedAt,
	).Error
}

func (r *repo) AverageRating(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (float64, int64, error) {
	var row struct {
		Average *float64 `gorm:"column:average"`
		Total   int64    `gorm:"column:total"`
	}
	err := db.WithContext(ctx).Raw(
		`SELECT AVG(score) AS average, COUNT(*) AS total
		 FROM ratings
		 WHERE user_id = ?`,
		ownerID,
	).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	if row.Average == nil {
		return 0, row.Total, nil
	}
	return *row.Average, row.Total, nil
}
