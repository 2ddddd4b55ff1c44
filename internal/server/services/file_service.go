// Package services implements the file lifecycle: upload, processing,
// payment gating, free verification and retention purges.
package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pockethour/image-sentinel/internal/common"
	"github.com/pockethour/image-sentinel/internal/dbx"
	"github.com/pockethour/image-sentinel/internal/filex"
	"github.com/pockethour/image-sentinel/internal/imagex"
	"github.com/pockethour/image-sentinel/internal/keylock"
	"github.com/pockethour/image-sentinel/internal/logging"
	"github.com/pockethour/image-sentinel/internal/payment"
	"github.com/pockethour/image-sentinel/internal/processor"
	"github.com/pockethour/image-sentinel/internal/server/models"
	"github.com/pockethour/image-sentinel/internal/server/repositories/repomanager"
	"github.com/pockethour/image-sentinel/internal/storage"
	"golang.org/x/crypto/blake2b"
)

// Config holds the service knobs taken from the server configuration.
type Config struct {
	MaxUploadBytes int64
	WorkDir        string
	Price          int64
	Currency       string
	// PresignTTL enables direct download links when the store supports
	// them. Zero disables them.
	PresignTTL time.Duration
}

type FileService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	store   storage.Store
	proc    processor.Processor
	gateway payment.Gateway
	locks   *keylock.Locker
	machine *models.LifecycleMachine
	logger  logging.Logger
	config  Config
	now     func() time.Time
	newID   func() string
}

type Option func(*FileService)

// WithClock overrides time.Now, mostly for retention tests.
func WithClock(now func() time.Time) Option {
	return func(s *FileService) { s.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(s *FileService) { s.newID = f }
}

func NewFileService(db *sql.DB, repos repomanager.RepositoryManager, store storage.Store, proc processor.Processor,
	gateway payment.Gateway, config Config, logger logging.Logger, opts ...Option) *FileService {
	s := &FileService{
		db:      db,
		repos:   repos,
		store:   store,
		proc:    proc,
		gateway: gateway,
		locks:   keylock.New(),
		machine: models.NewLifecycleMachine(),
		logger:  logger.With("module", "files"),
		config:  config,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// StorageKey builds the key of an artifact belonging to record id.
func StorageKey(t time.Time, id, name string) string {
	return fmt.Sprintf("uploads/%d/%d/%d/%s/%s", t.Year(), t.Month(), t.Day(), id, name)
}

// Checksum is the hex BLAKE2b-256 digest of b.
func Checksum(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type UploadInput struct {
	Name     string
	Body     io.Reader
	FreeTier bool
}

// Upload stores a new source image and creates its record in state created.
func (s *FileService) Upload(ctx context.Context, in UploadInput) (*models.FileRecord, error) {
	limit := s.config.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	b, err := io.ReadAll(io.LimitReader(in.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", common.ErrInvalidPayload, limit)
	}

	cfg, format, err := imagex.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &models.FileRecord{
		ID:           s.newID(),
		OriginalName: filepath.Base(in.Name),
		Format:       format,
		SizeBytes:    int64(len(b)),
		Checksum:     Checksum(b),
		Width:        cfg.Width,
		Height:       cfg.Height,
		State:        models.StateCreated,
		PaymentState: models.PaymentUnpaid,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.FreeTier {
		rec.PaymentState = models.PaymentFreeTier
	}
	rec.SourceKey = StorageKey(now, rec.ID, "source"+imagex.Extension(format))

	if _, err := s.store.Put(ctx, rec.SourceKey, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("store source: %w", err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Files(tx).Create(ctx, rec)
	})
	if err != nil {
		if derr := s.store.Delete(ctx, rec.SourceKey); derr != nil {
			s.logger.Warn(ctx, "orphaned source after failed insert", "key", rec.SourceKey, "error", derr)
		}
		return nil, err
	}

	s.logger.Info(ctx, "file uploaded", "file_id", rec.ID, "format", format, "bytes", rec.SizeBytes,
		"payment_state", rec.PaymentState.String())
	return rec, nil
}

// Get returns the record with id.
func (s *FileService) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	return s.repos.Files(s.db).Get(ctx, id)
}

// Count returns the number of live records.
func (s *FileService) Count(ctx context.Context) (int64, error) {
	return s.repos.Files(s.db).Count(ctx)
}

// materialize copies the artifact at key into dir so a processor can read
// it from disk.
func (s *FileService) materialize(ctx context.Context, key, dir string) (string, error) {
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	p := filepath.Join(dir, "input"+path.Ext(key))
	if _, err := filex.WriteFile(p, rc); err != nil {
		return "", err
	}
	return p, nil
}

func (s *FileService) scratchDir(id string) (string, func(), error) {
	base := s.config.WorkDir
	if base == "" {
		base = os.TempDir()
	}
	base, err := filex.EnsureDir(base)
	if err != nil {
		return "", nil, err
	}
	dir, err := os.MkdirTemp(base, id+"-")
	if err != nil {
		return "", nil, fmt.Errorf("scratch dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func (s *FileService) putFile(ctx context.Context, key, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()
	_, err = s.store.Put(ctx, key, f)
	return err
}

// Process runs mode over the record's source and stores the artifacts and
// evidence. The record must be in created or processed and must not be a
// free-tier record.
func (s *FileService) Process(ctx context.Context, id, mode, payload string) (*models.FileRecord, error) {
	if mode != models.ModeWatermark && mode != models.ModeForensics {
		return nil, fmt.Errorf("%w: mode %q", common.ErrUnknownAlgorithm, mode)
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := s.repos.Files(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := rec.State
	next, err := s.machine.Next(rec, models.EventProcess)
	if err != nil {
		return nil, err
	}

	dir, cleanup, err := s.scratchDir(id)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	input, err := s.materialize(ctx, rec.SourceKey, dir)
	if err != nil {
		return nil, err
	}

	resp, err := s.proc.Process(ctx, processor.Request{
		InputPath:     input,
		OutputPath:    filepath.Join(dir, "processed"+path.Ext(rec.SourceKey)),
		Algorithm:     mode,
		WatermarkData: payload,
	})
	if err != nil {
		s.logger.Warn(ctx, "processing failed", "file_id", id, "mode", mode, "error", err)
		return nil, err
	}

	// Fresh keys per run; artifacts of the committed record are never
	// overwritten.
	prefix := path.Dir(rec.SourceKey)
	run := "processed-" + s.newID()
	processedKey := path.Join(prefix, run+filepath.Ext(resp.OutputPath))
	previewKey := path.Join(prefix, run+".preview.jpg")

	var written []string
	for _, a := range []struct{ key, file, what string }{
		{processedKey, resp.OutputPath, "processed artifact"},
		{previewKey, resp.PreviewPath, "preview"},
	} {
		if err := s.putFile(ctx, a.key, a.file); err != nil {
			s.discard(ctx, id, written)
			return nil, fmt.Errorf("store %s: %w", a.what, err)
		}
		written = append(written, a.key)
	}
	previous := []string{rec.ProcessedKey, rec.PreviewKey}

	rec.ProcessedKey = processedKey
	rec.PreviewKey = previewKey
	rec.Mode = mode
	rec.CustomPayload = ""
	if mode == models.ModeWatermark {
		rec.CustomPayload = payload
		rec.Result = models.WatermarkEvidence{EmbeddedText: resp.EmbeddedText, Algorithm: resp.Algorithm}
	} else {
		rec.Result = models.ForensicEvidence{
			Score:            resp.Score,
			RiskLevel:        resp.RiskLevel,
			AnomalyIntensity: resp.AnomalyIntensity,
			Algorithm:        resp.Algorithm,
			Disclaimer:       resp.Disclaimer,
		}
	}
	rec.State = next
	rec.UpdatedAt = s.now().UTC()

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Files(tx).UpdateProcessed(ctx, rec, from)
	})
	if err != nil {
		s.discard(ctx, id, written)
		return nil, err
	}
	s.discard(ctx, id, previous)

	s.logger.Info(ctx, "file processed", "file_id", id, "mode", mode, "state", string(rec.State))
	return rec, nil
}

// discard removes artifacts no record points at. Failures are logged only;
// the caller already has an outcome to report.
func (s *FileService) discard(ctx context.Context, id string, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, common.ErrArtifactMissing) {
			s.logger.Warn(ctx, "failed to remove unreferenced artifact", "file_id", id, "key", key, "error", err)
		}
	}
}

// Preview streams the preview artifact. Previews are never gated.
func (s *FileService) Preview(ctx context.Context, id string) (io.ReadCloser, *models.FileRecord, error) {
	rec, err := s.repos.Files(s.db).Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if rec.PreviewKey == "" {
		return nil, nil, fmt.Errorf("%w: no preview for %s", common.ErrArtifactMissing, id)
	}
	rc, err := s.store.Open(ctx, rec.PreviewKey)
	if err != nil {
		return nil, nil, err
	}
	return rc, rec, nil
}

func (s *FileService) downloadable(ctx context.Context, id string) (*models.FileRecord, error) {
	rec, err := s.repos.Files(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.PaymentState == models.PaymentUnpaid {
		return nil, common.ErrPaymentRequired
	}
	return rec, nil
}

func (s *FileService) countDownload(ctx context.Context, id string) error {
	err := s.repos.Files(s.db).IncrementDownloads(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		// purged between the read and the count
		return fmt.Errorf("%w: %s", common.ErrArtifactMissing, id)
	}
	return err
}

// Download streams the best available artifact of a paid or free-tier
// record. Unpaid records fail with common.ErrPaymentRequired.
func (s *FileService) Download(ctx context.Context, id string) (io.ReadCloser, *models.FileRecord, error) {
	rec, err := s.downloadable(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, rec.BestArtifactKey())
	if err != nil {
		return nil, nil, err
	}
	if err := s.countDownload(ctx, id); err != nil {
		_ = rc.Close()
		return nil, nil, err
	}
	s.logger.Info(ctx, "file downloaded", "file_id", id)
	return rc, rec, nil
}

// DownloadLink returns a time-limited direct link to the artifact, or ""
// when the store cannot presign or links are disabled. Gating is the same
// as for Download.
func (s *FileService) DownloadLink(ctx context.Context, id string) (string, error) {
	p, ok := s.store.(storage.Presigner)
	if !ok || s.config.PresignTTL <= 0 {
		return "", nil
	}
	rec, err := s.downloadable(ctx, id)
	if err != nil {
		return "", err
	}
	url, err := p.PresignGet(ctx, rec.BestArtifactKey(), s.config.PresignTTL)
	if err != nil {
		return "", err
	}
	if err := s.countDownload(ctx, id); err != nil {
		return "", err
	}
	return url, nil
}

// VerifyFree extracts a watermark from the best available artifact. It is
// never gated. A free-tier record additionally moves to free_verified with
// the evidence persisted.
func (s *FileService) VerifyFree(ctx context.Context, id string) (*models.VerificationEvidence, error) {
	rec, err := s.repos.Files(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}

	dir, cleanup, err := s.scratchDir(id)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	input, err := s.materialize(ctx, rec.BestArtifactKey(), dir)
	if err != nil {
		return nil, err
	}
	resp, err := s.proc.Verify(ctx, processor.VerifyRequest{InputPath: input})
	if err != nil {
		return nil, err
	}
	ev := &models.VerificationEvidence{
		Found:         resp.Success,
		ExtractedText: resp.ExtractedText,
		Confidence:    resp.ConfidenceScore,
	}

	if !s.machine.Allowed(rec, models.EventFreeVerify) {
		return ev, nil
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		files := s.repos.Files(tx)
		cur, err := files.Get(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.machine.Next(cur, models.EventFreeVerify); err != nil {
			return err
		}
		return files.MarkFreeVerified(ctx, id, *ev, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "free verification recorded", "file_id", id, "found", ev.Found)
	return ev, nil
}
