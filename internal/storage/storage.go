package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"path"
	"strings"

	"github.com/gosimple/slug"
	"golang.org/x/crypto/blake2b"
)

var ErrStorageDisabled = errors.New("storage_disabled")

// ObjectStore keeps media objects and exposes them through public URLs.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, keys ...string) error
}

// ObjectKey derives a stable key from the owner, the upload filename and the content digest.
// Identical uploads of the same owner map to the same key.
func ObjectKey(ownerID string, filename string, body []byte, variant string) string {
	sum := blake2b.Sum256(body)
	digest := hex.EncodeToString(sum[:12])

	ext := strings.ToLower(path.Ext(filename))
	stem := slug.Make(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if stem == "" {
		stem = "media"
	}
	if len(stem) > 48 {
		stem = stem[:48]
	}

	name := stem + "-" + digest
	if variant != "" {
		name += "-" + variant
	}
	return ownerID + "/" + name + ext
}

func publicURL(base string, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
