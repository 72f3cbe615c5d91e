package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	admindomain "github.com/smallbiznis/privatedrops/internal/admin/domain"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	mediarepo "github.com/smallbiznis/privatedrops/internal/media/repository"
	"github.com/smallbiznis/privatedrops/internal/storage"
	"github.com/smallbiznis/privatedrops/internal/testutil"
	userdomain "github.com/smallbiznis/privatedrops/internal/user/domain"
	userrepo "github.com/smallbiznis/privatedrops/internal/user/repository"
	"github.com/smallbiznis/privatedrops/pkg/db/pagination"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   admindomain.Service
	store *storage.MemoryStore
	genID *snowflake.Node
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	store := storage.NewMemoryStore("https://cdn.test")
	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		UserRepo:  userrepo.Provide(),
		MediaRepo: mediarepo.Provide(),
		Store:     store,
	})
	return &fixture{db: db, svc: svc, store: store, genID: testutil.NewNode(t), now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fixture) seedUser(t *testing.T, email string) *userdomain.User {
	t.Helper()
	user := &userdomain.User{
		ID: f.genID.Generate(), Email: email, Currency: "eur", Role: userdomain.RoleCreator,
		CreatedAt: f.now, UpdatedAt: f.now,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) seedMedia(t *testing.T, ownerID snowflake.ID, flagged bool) *mediadomain.Media {
	t.Helper()
	ctx := context.Background()
	id := f.genID.Generate()
	origURL, err := f.store.Put(ctx, "o-"+id.String(), "image/png", []byte("o"))
	require.NoError(t, err)
	blurURL, err := f.store.Put(ctx, "b-"+id.String(), "image/png", []byte("b"))
	require.NoError(t, err)
	media := &mediadomain.Media{
		ID: id, Code: "c" + id.String(), OwnerID: ownerID, Price: 1000, Currency: "eur",
		MimeType: "image/png", Size: 20000, Flagged: flagged,
		OriginalKey: "o-" + id.String(), OriginalURL: origURL,
		BlurredKey: "b-" + id.String(), BlurredURL: blurURL,
		CreatedAt: f.now, UpdatedAt: f.now,
	}
	require.NoError(t, f.db.Create(media).Error)
	return media
}

func TestListUsersPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		f.seedUser(t, email)
	}

	first, err := f.svc.ListUsers(ctx, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Users, 2)
	require.True(t, first.PageInfo.HasMore)

	second, err := f.svc.ListUsers(ctx, pagination.Pagination{PageSize: 2, PageToken: first.PageInfo.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Users, 1)
	require.False(t, second.PageInfo.HasMore)
	require.Equal(t, "c@example.com", second.Users[0].Email)

	if _, err := f.svc.ListUsers(ctx, pagination.Pagination{PageToken: "%%%"}); !errors.Is(err, admindomain.ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestListFlaggedMediaOnlyReturnsFlagged(t *testing.T) {
	f := newFixture(t)
	owner := f.seedUser(t, "owner@example.com")
	f.seedMedia(t, owner.ID, false)
	flagged := f.seedMedia(t, owner.ID, true)

	all, err := f.svc.ListMedia(context.Background(), pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, all.Media, 2)

	res, err := f.svc.ListFlaggedMedia(context.Background(), pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, res.Media, 1)
	require.Equal(t, flagged.ID, res.Media[0].ID)

	detail, err := f.svc.GetUser(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, detail.Media, 2)
}

func TestCleanupMediaIgnoresRecentViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, "owner@example.com")
	media := f.seedMedia(t, owner.ID, true)
	require.NoError(t, f.db.Create(&mediadomain.View{
		ID: f.genID.Generate(), MediaID: media.ID, IP: "10.0.0.1", Payment: true, LastSeen: time.Now(), CreatedAt: f.now,
	}).Error)

	views, err := f.svc.ListViews(ctx, pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, views.Views, 1)

	require.NoError(t, f.svc.CleanupMedia(ctx, media.ID))
	require.Equal(t, 0, f.store.Len())

	views, err = f.svc.ListViews(ctx, pagination.Pagination{})
	require.NoError(t, err)
	require.Empty(t, views.Views)

	if err := f.svc.CleanupMedia(ctx, media.ID); !errors.Is(err, mediadomain.ErrMediaNotFound) {
		t.Fatalf("expected ErrMediaNotFound, got %v", err)
	}
}
