package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pockethour/image-sentinel/internal/common"
	"github.com/pockethour/image-sentinel/internal/dbx"
	"github.com/pockethour/image-sentinel/internal/server/models"
)

// SQLiteRepository implements Repository for SQLite. Timestamps are stored
// as unix milliseconds.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, f *models.FileRecord) error {
	result, err := models.MarshalEvidence(f.Result)
	if err != nil {
		return err
	}

	query := `INSERT INTO files (` + fileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		f.ID, f.OriginalName, f.Format, f.SizeBytes, f.Checksum, f.Width, f.Height,
		f.SourceKey, nullString(f.ProcessedKey), nullString(f.PreviewKey), nullString(f.Mode),
		nullString(f.CustomPayload), evidenceText(result),
		string(f.State), int(f.PaymentState), f.DownloadCount, f.CreatedAt.UnixMilli(), f.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) scan(row interface{ Scan(...any) error }) (*models.FileRecord, error) {
	var f models.FileRecord
	var rf rowFields
	var state string
	var result sql.NullString
	var created, updated int64
	err := row.Scan(&f.ID, &f.OriginalName, &f.Format, &f.SizeBytes, &f.Checksum, &f.Width, &f.Height,
		&f.SourceKey, &rf.processed, &rf.preview, &rf.mode, &rf.payload, &result,
		&state, &rf.paymentState, &f.DownloadCount, &created, &updated)
	if err != nil {
		return nil, err
	}
	if result.Valid {
		rf.result = []byte(result.String)
	}
	f.State = models.State(state)
	f.CreatedAt = time.UnixMilli(created).UTC()
	f.UpdatedAt = time.UnixMilli(updated).UTC()
	if err := rf.apply(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	f, err := r.scan(r.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

func (r *SQLiteRepository) UpdateProcessed(ctx context.Context, f *models.FileRecord, from models.State) error {
	result, err := models.MarshalEvidence(f.Result)
	if err != nil {
		return err
	}

	query := `UPDATE files SET processed_key=?, preview_key=?, mode=?, custom_payload=?,
		result=?, state=?, updated_at=?
		WHERE id=? AND state=?`
	res, err := r.db.ExecContext(ctx, query,
		nullString(f.ProcessedKey), nullString(f.PreviewKey), nullString(f.Mode), nullString(f.CustomPayload),
		evidenceText(result), string(f.State), f.UpdatedAt.UnixMilli(), f.ID, string(from))
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}
	return expectOne(res, common.ErrVersionConflict)
}

func (r *SQLiteRepository) MarkPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE files SET state='paid', payment_state=1, updated_at=?
		WHERE id=? AND state='processed' AND payment_state=0`
	res, err := r.db.ExecContext(ctx, query, at.UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) MarkFreeVerified(ctx context.Context, id string, e models.Evidence, at time.Time) error {
	result, err := models.MarshalEvidence(e)
	if err != nil {
		return err
	}

	query := `UPDATE files SET state='free_verified', result=?, updated_at=?
		WHERE id=? AND payment_state=-1 AND state IN ('created', 'free_verified')`
	res, err := r.db.ExecContext(ctx, query, evidenceText(result), at.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to mark verified: %w", err)
	}
	return expectOne(res, common.ErrVersionConflict)
}

func (r *SQLiteRepository) IncrementDownloads(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET download_count=download_count+1 WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to count download: %w", err)
	}
	return expectOne(res, common.ErrorNotFound)
}

func (r *SQLiteRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]*models.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files WHERE created_at<? ORDER BY created_at`, cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("error selecting files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		f, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return expectOne(res, common.ErrorNotFound)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

// evidenceText stores the JSON envelope as TEXT so it stays readable in the
// sqlite shell.
func evidenceText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
