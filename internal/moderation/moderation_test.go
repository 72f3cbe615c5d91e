package moderation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/privatedrops/internal/clock"
	"github.com/smallbiznis/privatedrops/internal/config"
	mediadomain "github.com/smallbiznis/privatedrops/internal/media/domain"
	mediarepo "github.com/smallbiznis/privatedrops/internal/media/repository"
	"github.com/smallbiznis/privatedrops/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db  *gorm.DB
	svc *Service
	now time.Time
}

func newFixture(t *testing.T, handler http.HandlerFunc, user string) *fixture {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	db := testutil.NewDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	cfg := config.Config{Moderate: config.ModerationConfig{BaseURL: srv.URL, User: user, Secret: "s", Threshold: 0.7}}
	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		Cfg:       cfg,
		Clock:     clk,
		MediaRepo: mediarepo.Provide(),
		Checker:   NewSightengineClient(cfg.Moderate, zap.NewNop()),
	})
	return &fixture{db: db, svc: svc, now: clk.Now()}
}

func (f *fixture) seed(t *testing.T, id int64, mime string, url string) {
	t.Helper()
	require.NoError(t, f.db.Create(&mediadomain.Media{
		ID: snowflake.ID(id), Code: "c" + url, OwnerID: 1, Price: 1000, Currency: "eur", MimeType: mime, Size: 20000,
		OriginalKey: url, OriginalURL: "https://cdn.test/" + url, BlurredURL: "https://cdn.test/b",
		CreatedAt: f.now, UpdatedAt: f.now,
	}).Error)
}

func (f *fixture) media(t *testing.T, url string) mediadomain.Media {
	t.Helper()
	var m mediadomain.Media
	require.NoError(t, f.db.Where("original_key = ?", url).First(&m).Error)
	return m
}

func faces(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Query().Get("url") {
	case "https://cdn.test/young.png":
		_, _ = w.Write([]byte(`{"status":"success","faces":[{"attributes":{"minor":0.2}},{"attributes":{"minor":0.91}}]}`))
	default:
		_, _ = w.Write([]byte(`{"status":"success","faces":[{"attributes":{"minor":0.1}}]}`))
	}
}

func TestSweepFlagsImagesWithMinors(t *testing.T) {
	f := newFixture(t, faces, "u")
	f.seed(t, 1, "image/png", "young.png")
	f.seed(t, 2, "image/jpeg", "adult.jpg")
	f.seed(t, 3, "video/mp4", "clip.mp4")

	result, err := f.svc.Sweep(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, result.Checked)
	require.Equal(t, 1, result.Flagged)

	young := f.media(t, "young.png")
	require.True(t, young.Flagged)
	require.NotNil(t, young.ModeratedAt)
	adult := f.media(t, "adult.jpg")
	require.False(t, adult.Flagged)
	require.NotNil(t, adult.ModeratedAt)
	clip := f.media(t, "clip.mp4")
	require.NotNil(t, clip.ModeratedAt)

	// Nothing left to moderate.
	result, err = f.svc.Sweep(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 0, result.Checked)
}

func TestSweepLeavesMediaWhenUpstreamFails(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, "u")
	f.seed(t, 1, "image/png", "young.png")

	_, err := f.svc.Sweep(context.Background(), 10)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	require.Nil(t, f.media(t, "young.png").ModeratedAt)
}

func TestSweepSkipsWhenNotConfigured(t *testing.T) {
	f := newFixture(t, faces, "")
	f.seed(t, 1, "image/png", "young.png")

	result, err := f.svc.Sweep(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 0, result.Checked)
	require.Nil(t, f.media(t, "young.png").ModeratedAt)
}
