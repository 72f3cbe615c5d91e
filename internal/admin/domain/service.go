package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/privatedrops/pkg/db/pagination"
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Service interface {
	ListUsers(ctx context.Context, page pagination.Pagination) (*ListUsersResponse, error)
	GetUser(ctx context.Context, id snowflake.ID) (*UserDetail, error)
	ListMedia(ctx context.Context, page pagination.Pagination) (*ListMediaResponse, error)
	ListFlaggedMedia(ctx context.Context, page pagination.Pagination) (*ListMediaResponse, error)
	ListViews(ctx context.Context, page pagination.Pagination) (*ListViewsResponse, error)
	// CleanupMedia removes a media regardless of recent views.
	CleanupMedia(ctx context.Context, mediaID snowflake.ID) error
}
