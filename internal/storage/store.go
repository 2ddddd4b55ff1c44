// Package storage keeps uploaded sources and processing artifacts. Keys are
// slash-separated relative paths such as "uploads/2026/10/18/<id>/source.png".
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/pockethour/image-sentinel/internal/common"
)

// Store is an artifact store. Open and Delete return common.ErrArtifactMissing
// when no object has the key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Presigner is implemented by stores that can hand out time-limited direct
// download links.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// CleanKey normalizes key and rejects keys that are empty, absolute, or
// escape the store root.
func CleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty storage key", common.ErrInvalidPayload)
	}
	c := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if path.IsAbs(c) || c == "." || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: storage key %q", common.ErrInvalidPayload, key)
	}
	return c, nil
}
