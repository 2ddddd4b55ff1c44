package orders

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

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, o *models.Order) error {
	var confirmed any
	if o.ConfirmedAt != nil {
		confirmed = o.ConfirmedAt.UnixMilli()
	}
	query := `INSERT INTO orders (` + orderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, o.ID, o.FileID, o.Amount, o.Currency, string(o.Status), o.CreatedAt.UnixMilli(), confirmed)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	var status string
	var created int64
	var confirmed sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=?`, id).
		Scan(&o.ID, &o.FileID, &o.Amount, &o.Currency, &status, &created, &confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select order: %w", err)
	}
	o.Status = models.OrderStatus(status)
	o.CreatedAt = time.UnixMilli(created).UTC()
	if confirmed.Valid {
		t := time.UnixMilli(confirmed.Int64).UTC()
		o.ConfirmedAt = &t
	}
	return &o, nil
}

func (r *SQLiteRepository) MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.settle(ctx, id, models.OrderConfirmed, at)
}

func (r *SQLiteRepository) MarkSuperseded(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.settle(ctx, id, models.OrderSuperseded, at)
}

func (r *SQLiteRepository) settle(ctx context.Context, id string, status models.OrderStatus, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET status=?, confirmed_at=? WHERE id=? AND status='pending'`, string(status), at.UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("failed to settle order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) DeleteByFileID(ctx context.Context, fileID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE file_id=?`, fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orders: %w", err)
	}
	return res.RowsAffected()
}
