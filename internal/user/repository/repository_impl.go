package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/privatedrops/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const userColumns = `id, email, nickname, payouts, currency, stripe_account_id, verified, role,
	banned, reports, nonce, nonce_expires_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Nickname,
		user.Payouts,
		user.Currency,
		user.StripeAccountID,
		user.Verified,
		string(user.Role),
		user.Banned,
		user.Reports,
		user.Nonce,
		user.NonceExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, db, `id = ?`, id)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return r.findOne(ctx, db, `email = ?`, email)
}

func (r *repo) FindByNonce(ctx context.Context, db *gorm.DB, nonce string) (*domain.User, error) {
	return r.findOne(ctx, db, `nonce = ?`, nonce)
}

func (r *repo) FindByNickname(ctx context.Context, db *gorm.DB, nickname string) (*domain.User, error) {
	return r.findOne(ctx, db, `LOWER(nickname) = LOWER(?)`, nickname)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, where string, arg any) (*domain.User, error) {
	var item domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+`
		 FROM users
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

func (r *repo) List(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]domain.User, error) {
	var items []domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT `+userColumns+`
		 FROM users
		 WHERE id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		afterID,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CreditPayouts(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, now time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET payouts = payouts + ?, updated_at = ?
		 WHERE id = ?`,
		amount,
		now,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *repo) SetVerified(ctx context.Context, db *gorm.DB, id snowflake.ID, verified bool, now time.Time) error {
	return r.update(ctx, db, id, `verified = ?`, verified, now)
}

func (r *repo) SetNickname(ctx context.Context, db *gorm.DB, id snowflake.ID, nickname string, now time.Time) error {
	return r.update(ctx, db, id, `nickname = ?`, nickname, now)
}

func (r *repo) SetCurrency(ctx context.Context, db *gorm.DB, id snowflake.ID, currency string, now time.Time) error {
	return r.update(ctx, db, id, `currency = ?`, currency, now)
}

func (r *repo) SetStripeAccount(ctx context.Context, db *gorm.DB, id snowflake.ID, accountID string, now time.Time) error {
	return r.update(ctx, db, id, `stripe_account_id = ?`, accountID, now)
}

func (r *repo) SetRole(ctx context.Context, db *gorm.DB, id snowflake.ID, role domain.Role, now time.Time) error {
	return r.update(ctx, db, id, `role = ?`, string(role), now)
}

func (r *repo) SetNonce(ctx context.Context, db *gorm.DB, id snowflake.ID, nonce *string, expiresAt *time.Time, now time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET nonce = ?, nonce_expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		nonce,
		expiresAt,
		now,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *repo) ConsumeNonce(ctx context.Context, db *gorm.DB, id snowflake.ID, nonce string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET nonce = NULL, nonce_expires_at = NULL, updated_at = ?
		 WHERE id = ? AND nonce = ?`,
		now,
		id,
		nonce,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) IncrementReports(ctx context.Context, db *gorm.DB, id snowflake.ID, banThreshold int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET reports = reports + 1,
		     banned = CASE WHEN ? > 0 AND reports + 1 >= ? THEN ? ELSE banned END,
		     updated_at = ?
		 WHERE id = ?`,
		banThreshold,
		banThreshold,
		true,
		now,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, domain.ErrUserNotFound
	}

	var banned bool
	if err := db.WithContext(ctx).Raw(`SELECT banned FROM users WHERE id = ?`, id).Scan(&banned).Error; err != nil {
		return false, err
	}
	return banned, nil
}

func (r *repo) PurgeExpiredNonces(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET nonce = NULL, nonce_expires_at = NULL, updated_at = ?
		 WHERE nonce IS NOT NULL AND nonce_expires_at < ?`,
		now,
		now,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) update(ctx context.Context, db *gorm.DB, id snowflake.ID, set string, value any, now time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET `+set+`, updated_at = ?
		 WHERE id = ?`,
		value,
		now,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
