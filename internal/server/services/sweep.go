package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pockethour/image-sentinel/internal/common"
	"github.com/pockethour/image-sentinel/internal/dbx"
)

const (
	DefaultRetention      = 24 * time.Hour
	DefaultMaxUploadBytes = 20 << 20
)

// Sweep purges every record created more than window ago together with its
// artifacts and orders. Artifacts that are already gone are logged and
// skipped. It returns the number of records removed; records that could not
// be purged stay for the next run and their errors are joined.
func (s *FileService) Sweep(ctx context.Context, window time.Duration) (int, error) {
	if window <= 0 {
		window = DefaultRetention
	}
	cutoff := s.now().Add(-window)

	expired, err := s.repos.Files(s.db).ListExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var deleted int
	var errs []error
	for _, rec := range expired {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := s.purge(ctx, rec.ID)
		if err != nil {
			s.logger.Error(ctx, "failed to purge file", "file_id", rec.ID, "error", err)
			errs = append(errs, fmt.Errorf("purge %s: %w", rec.ID, err))
			continue
		}
		if ok {
			deleted++
		}
	}

	s.logger.Info(ctx, "retention sweep finished", "cutoff", cutoff, "expired", len(expired), "deleted", deleted)
	return deleted, errors.Join(errs...)
}

// purge removes one expired record. The listed snapshot only supplies the
// id; artifact keys are read again under the lock since a concurrent
// Process may have replaced them.
func (s *FileService) purge(ctx context.Context, id string) (bool, error) {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	rec, err := s.repos.Files(s.db).Get(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for _, key := range rec.ArtifactKeys() {
		err := s.store.Delete(ctx, key)
		if errors.Is(err, common.ErrArtifactMissing) {
			s.logger.Warn(ctx, "artifact already gone", "file_id", rec.ID, "key", key)
			continue
		}
		if err != nil {
			return false, err
		}
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (bool, error) {
		if _, err := s.repos.Orders(tx).DeleteByFileID(ctx, rec.ID); err != nil {
			return false, err
		}
		err := s.repos.Files(tx).Delete(ctx, rec.ID)
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return err == nil, err
	})
}
