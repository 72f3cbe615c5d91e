package storage

import (
	"context"
	"errors"

	"github.com/smallbiznis/privatedrops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(NewObjectStore),
)

// NewObjectStore uses S3 when a bucket is configured and falls back to memory otherwise.
func NewObjectStore(cfg config.Config, log *zap.Logger) (ObjectStore, error) {
	store, err := NewS3Store(context.Background(), cfg.Storage, log)
	if err == nil {
		return store, nil
	}
	if !errors.Is(err, ErrStorageDisabled) {
		return nil, err
	}
	if cfg.IsProduction() {
		return nil, errors.New("S3_BUCKET is required in production")
	}
	log.Warn("S3_BUCKET not set; media objects are kept in memory")
	return NewMemoryStore(cfg.AppURL + "/objects"), nil
}
