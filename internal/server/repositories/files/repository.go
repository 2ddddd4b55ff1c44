// Package files persists FileRecords.
package files

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pockethour/image-sentinel/internal/common"
	"github.com/pockethour/image-sentinel/internal/server/models"
)

// Repository stores FileRecords. Implementations are bound to a dbx.DBTX so
// the same code runs inside or outside a transaction.
type Repository interface {
	Create(ctx context.Context, f *models.FileRecord) error
	// Get returns common.ErrorNotFound when no record has the id.
	Get(ctx context.Context, id string) (*models.FileRecord, error)
	// UpdateProcessed stores processing output. It only applies while the
	// record is still in state from; otherwise it returns
	// common.ErrVersionConflict.
	UpdateProcessed(ctx context.Context, f *models.FileRecord, from models.State) error
	// MarkPaid moves a processed, unpaid record to paid. applied is false
	// when the record was not in that condition.
	MarkPaid(ctx context.Context, id string, at time.Time) (applied bool, err error)
	// MarkFreeVerified stores verification evidence on a free-tier record.
	MarkFreeVerified(ctx context.Context, id string, result models.Evidence, at time.Time) error
	IncrementDownloads(ctx context.Context, id string) error
	// ListExpired returns records created strictly before cutoff.
	ListExpired(ctx context.Context, cutoff time.Time) ([]*models.FileRecord, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

const fileColumns = `id, original_name, format, size_bytes, checksum, width, height,
	source_key, processed_key, preview_key, mode, custom_payload, result,
	state, payment_state, download_count, created_at, updated_at`

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullBytes keeps an absent evidence blob as SQL NULL.
func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

// expectOne interprets RowsAffected for single-row conditional updates.
func expectOne(res sql.Result, zero error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return zero
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// rowFields holds the nullable columns shared by both dialect scanners.
type rowFields struct {
	processed, preview, mode, payload sql.NullString
	result                            []byte
	paymentState                      int
}

func (r *rowFields) apply(f *models.FileRecord) error {
	f.ProcessedKey = r.processed.String
	f.PreviewKey = r.preview.String
	f.Mode = r.mode.String
	f.CustomPayload = r.payload.String
	f.PaymentState = models.PaymentState(r.paymentState)
	if !f.PaymentState.Valid() {
		return fmt.Errorf("%w: payment state %d", common.ErrorInternal, r.paymentState)
	}
	e, err := models.UnmarshalEvidence(r.result)
	if err != nil {
		return err
	}
	f.Result = e
	return nil
}
