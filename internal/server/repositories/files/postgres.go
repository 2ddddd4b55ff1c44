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

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.FileRecord) error {
	result, err := models.MarshalEvidence(f.Result)
	if err != nil {
		return err
	}

	query := `INSERT INTO files (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err = r.db.ExecContext(ctx, query,
		f.ID, f.OriginalName, f.Format, f.SizeBytes, f.Checksum, f.Width, f.Height,
		f.SourceKey, nullString(f.ProcessedKey), nullString(f.PreviewKey), nullString(f.Mode),
		nullString(f.CustomPayload), nullBytes(result),
		string(f.State), int(f.PaymentState), f.DownloadCount, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scan(row interface{ Scan(...any) error }) (*models.FileRecord, error) {
	var f models.FileRecord
	var rf rowFields
	var state string
	err := row.Scan(&f.ID, &f.OriginalName, &f.Format, &f.SizeBytes, &f.Checksum, &f.Width, &f.Height,
		&f.SourceKey, &rf.processed, &rf.preview, &rf.mode, &rf.payload, &rf.result,
		&state, &rf.paymentState, &f.DownloadCount, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.State = models.State(state)
	if err := rf.apply(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id=$1`
	f, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) UpdateProcessed(ctx context.Context, f *models.FileRecord, from models.State) error {
	result, err := models.MarshalEvidence(f.Result)
	if err != nil {
		return err
	}

	query := `UPDATE files SET processed_key=$1, preview_key=$2, mode=$3, custom_payload=$4,
		result=$5, state=$6, updated_at=$7
		WHERE id=$8 AND state=$9`
	res, err := r.db.ExecContext(ctx, query,
		nullString(f.ProcessedKey), nullString(f.PreviewKey), nullString(f.Mode), nullString(f.CustomPayload),
		nullBytes(result), string(f.State), f.UpdatedAt, f.ID, string(from))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, common.ErrVersionConflict)
}

func (r *PostgresRepository) MarkPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE files SET state='paid', payment_state=1, updated_at=$1
		WHERE id=$2 AND state='processed' AND payment_state=0`
	res, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	if err := expectOne(res, common.ErrVersionConflict); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) MarkFreeVerified(ctx context.Context, id string, e models.Evidence, at time.Time) error {
	result, err := models.MarshalEvidence(e)
	if err != nil {
		return err
	}

	query := `UPDATE files SET state='free_verified', result=$1, updated_at=$2
		WHERE id=$3 AND payment_state=-1 AND state IN ('created', 'free_verified')`
	res, err := r.db.ExecContext(ctx, query, nullBytes(result), at, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, common.ErrVersionConflict)
}

func (r *PostgresRepository) IncrementDownloads(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE files SET download_count=download_count+1 WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, common.ErrorNotFound)
}

func (r *PostgresRepository) ListExpired(ctx context.Context, cutoff time.Time) ([]*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE created_at<$1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
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

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, common.ErrorNotFound)
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}
