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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, o *models.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, o.ID, o.FileID, o.Amount, o.Currency, string(o.Status), o.CreatedAt, o.ConfirmedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	var status string
	var confirmed sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.FileID, &o.Amount, &o.Currency, &status, &o.CreatedAt, &confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select order: %w", err)
	}
	o.Status = models.OrderStatus(status)
	if confirmed.Valid {
		t := confirmed.Time
		o.ConfirmedAt = &t
	}
	return &o, nil
}

func (r *PostgresRepository) MarkConfirmed(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.settle(ctx, id, models.OrderConfirmed, at)
}

func (r *PostgresRepository) MarkSuperseded(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.settle(ctx, id, models.OrderSuperseded, at)
}

func (r *PostgresRepository) settle(ctx context.Context, id string, status models.OrderStatus, at time.Time) (bool, error) {
	query := `UPDATE orders SET status=$1, confirmed_at=$2 WHERE id=$3 AND status='pending'`
	res, err := r.db.ExecContext(ctx, query, string(status), at, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) DeleteByFileID(ctx context.Context, fileID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE file_id=$1`, fileID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
