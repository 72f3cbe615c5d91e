package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository methods return (nil, nil) when a lookup matches nothing.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, media *Media) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Media, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Media, error)
	ListByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]Media, error)
	List(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]Media, error)
	ListFlagged(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]Media, error)
	ListUnmoderated(ctx context.Context, db *gorm.DB, limit int) ([]Media, error)
	// BumpVersion succeeds only while the stored version still equals version.
	BumpVersion(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, now time.Time) (bool, error)
	UpdatePrice(ctx context.Context, db *gorm.DB, id snowflake.ID, version int64, price int64, currency string, now time.Time) (bool, error)
	MarkModerated(ctx context.Context, db *gorm.DB, id snowflake.ID, flagged bool, now time.Time) error
	// Delete removes the media together with its views and ratings.
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	// InsertView reports false when the (media, ip) pair already has a view.
	InsertView(ctx context.Context, db *gorm.DB, view *View) (bool, error)
	FindView(ctx context.Context, db *gorm.DB, mediaID snowflake.ID, ip string) (*View, error)
	ListViews(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]View, error)
	CountPaidViews(ctx context.Context, db *gorm.DB, mediaID snowflake.ID) (int64, error)
	CountPaidViewsByMedia(ctx context.Context, db *gorm.DB, mediaIDs []snowflake.ID) (map[snowflake.ID]int64, error)
	TouchView(ctx context.Context, db *gorm.DB, viewID snowflake.ID, seenAt time.Time) error
	HasViewsSince(ctx context.Context, db *gorm.DB, mediaID snowflake.ID, since time.Time) (bool, error)
	// MarkFeedbackLeft reports false when feedback was already recorded.
	MarkFeedbackLeft(ctx context.Context, db *gorm.DB, viewID snowflake.ID) (bool, error)

	InsertRating(ctx context.Context, db *gorm.DB, rating *Rating) error
	AverageRating(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (float64, int64, error)
}
