// Package orders persists payment orders.
package orders

import (
	"context"
	"time"

	"github.com/pockethour/image-sentinel/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, o *models.Order) error
	// Get returns common.ErrorNotFound when no order has the id.
	Get(ctx context.Context, id string) (*models.Order, error)
	// MarkConfirmed flips a pending order to confirmed. applied is false
	// when the order was already confirmed.
	MarkConfirmed(ctx context.Context, id string, at time.Time) (applied bool, err error)
	// MarkSuperseded records a successful charge for a file another order
	// already paid. applied is false unless the order was pending.
	MarkSuperseded(ctx context.Context, id string, at time.Time) (applied bool, err error)
	DeleteByFileID(ctx context.Context, fileID string) (int64, error)
}

const orderColumns = `id, file_id, amount, currency, status, created_at, confirmed_at`
