package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	admindomain "github.com/smallbiznis/privatedrops/internal/admin/domain"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	"github.com/smallbiznis/privatedrops/internal/storage"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	"github.com/smallbiznis/privatedrops/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	UserRepo  userdomain.Repository
	MediaRepo mediadomain.Repository
	Store     storage.ObjectStore
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	userRepo  userdomain.Repository
	mediaRepo mediadomain.Repository
	store     storage.ObjectStore
}

func NewService(p Params) admindomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("admin.service"),
		userRepo:  p.UserRepo,
		mediaRepo: p.MediaRepo,
		store:     p.Store,
	}
}

func (s *Service) ListUsers(ctx context.Context, page pagination.Pagination) (*admindomain.ListUsersResponse, error) {
	afterID, limit, err := parsePage(page)
	if err != nil {
		return nil, err
	}
	rows, err := s.userRepo.List(ctx, s.db, afterID, limit+1)
	if err != nil {
		return nil, err
	}
	users, info := pagination.Page(rows, limit, func(u userdomain.User) string { return cursorFor(u.ID) })
	return &admindomain.ListUsersResponse{Users: users, PageInfo: info}, nil
}

func (s *Service) GetUser(ctx context.Context, id snowflake.ID) (*admindomain.UserDetail, error) {
	user, err := s.userRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, userdomain.ErrUserNotFound
	}
	media, err := s.mediaRepo.ListByOwner(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &admindomain.UserDetail{User: user, Media: media}, nil
}

func (s *Service) ListMedia(ctx context.Context, page pagination.Pagination) (*admindomain.ListMediaResponse, error) {
	afterID, limit, err := parsePage(page)
	if err != nil {
		return nil, err
	}
	rows, err := s.mediaRepo.List(ctx, s.db, afterID, limit+1)
	if err != nil {
		return nil, err
	}
	items, info := pagination.Page(rows, limit, func(m mediadomain.Media) string { return cursorFor(m.ID) })
	return &admindomain.ListMediaResponse{Media: items, PageInfo: info}, nil
}

func (s *Service) ListFlaggedMedia(ctx context.Context, page pagination.Pagination) (*admindomain.ListMediaResponse, error) {
	afterID, limit, err := parsePage(page)
	if err != nil {
		return nil, err
	}
	rows, err := s.mediaRepo.ListFlagged(ctx, s.db, afterID, limit+1)
	if err != nil {
		return nil, err
	}
	items, info := pagination.Page(rows, limit, func(m mediadomain.Media) string { return cursorFor(m.ID) })
	return &admindomain.ListMediaResponse{Media: items, PageInfo: info}, nil
}

func (s *Service) ListViews(ctx context.Context, page pagination.Pagination) (*admindomain.ListViewsResponse, error) {
	afterID, limit, err := parsePage(page)
	if err != nil {
		return nil, err
	}
	rows, err := s.mediaRepo.ListViews(ctx, s.db, afterID, limit+1)
	if err != nil {
		return nil, err
	}
	items, info := pagination.Page(rows, limit, func(v mediadomain.View) string { return cursorFor(v.ID) })
	return &admindomain.ListViewsResponse{Views: items, PageInfo: info}, nil
}

func (s *Service) CleanupMedia(ctx context.Context, mediaID snowflake.ID) error {
	media, err := s.mediaRepo.FindByID(ctx, s.db, mediaID)
	if err != nil {
		return err
	}
	if media == nil {
		return mediadomain.ErrMediaNotFound
	}

	if err := s.store.Delete(ctx, media.OriginalKey, media.BlurredKey); err != nil {
		return fmt.Errorf("%w: %v", mediadomain.ErrStorageUnavailable, err)
	}
	if err := s.mediaRepo.Delete(ctx, s.db, media.ID); err != nil {
		return err
	}

	s.log.Info("media cleaned up",
		zap.String("media_id", media.ID.String()),
		zap.String("owner_id", media.OwnerID.String()),
		zap.Bool("flagged", media.Flagged),
	)
	return nil
}

func parsePage(page pagination.Pagination) (snowflake.ID, int, error) {
	limit := page.PageSize
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page.PageToken == "" {
		return 0, limit, nil
	}
	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return 0, 0, admindomain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(cursor.ID)
	if err != nil {
		return 0, 0, admindomain.ErrInvalidPageToken
	}
	return id, limit, nil
}

func cursorFor(id snowflake.ID) string {
	token, err := pagination.EncodeCursor(pagination.Cursor{ID: id.String()})
	if err != nil {
		return ""
	}
	return token
}
