package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Get(ctx context.Context, code string, ip string) (*MediaView, error)
	ListForOwner(ctx context.Context, ownerID snowflake.ID) ([]OwnerMedia, error)
	Upload(ctx context.Context, req UploadRequest) (*Media, error)
	Delete(ctx context.Context, id snowflake.ID, ownerID snowflake.ID) error
	LeaveFeedback(ctx context.Context, req FeedbackRequest) error
	Report(ctx context.Context, code string) error
}
