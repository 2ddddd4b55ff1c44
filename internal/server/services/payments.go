package services

import (
	"context"
	"errors"

	"github.com/pockethour/image-sentinel/internal/common"
	"github.com/pockethour/image-sentinel/internal/dbx"
	"github.com/pockethour/image-sentinel/internal/payment"
	"github.com/pockethour/image-sentinel/internal/server/models"
)

// CallbackOutcome tells what a payment callback did. The HTTP layer
// answers the provider with success regardless.
type CallbackOutcome string

const (
	CallbackConfirmed CallbackOutcome = "confirmed"
	CallbackDuplicate CallbackOutcome = "duplicate"
	CallbackDeclined  CallbackOutcome = "declined"
	CallbackRejected  CallbackOutcome = "rejected"
	CallbackFailed    CallbackOutcome = "failed"

	// CallbackSuperseded is a successful charge for a file that was already
	// paid through another order.
	CallbackSuperseded CallbackOutcome = "superseded"
)

// InitiatePayment opens a pending order for a processed, unpaid record and
// returns the provider's checkout form.
func (s *FileService) InitiatePayment(ctx context.Context, id string) (*payment.RedirectForm, *models.Order, error) {
	rec, err := s.repos.Files(s.db).Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.machine.Next(rec, models.EventConfirmPayment); err != nil {
		return nil, nil, err
	}

	order := &models.Order{
		ID:        s.newID(),
		FileID:    rec.ID,
		Amount:    s.config.Price,
		Currency:  s.config.Currency,
		Status:    models.OrderPending,
		CreatedAt: s.now().UTC(),
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Orders(tx).Create(ctx, order)
	})
	if err != nil {
		return nil, nil, err
	}

	form, err := s.gateway.Initiate(ctx, order)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info(ctx, "payment initiated", "file_id", id, "order_id", order.ID, "amount", order.Amount)
	return form, order, nil
}

// ConfirmPayment marks the order confirmed and its record paid. Confirming
// an order twice is a no-op that reports applied=false, as is a charge for a
// record another order already paid, which is kept as a superseded order.
func (s *FileService) ConfirmPayment(ctx context.Context, orderID string) (bool, error) {
	outcome, err := s.settle(ctx, orderID)
	return outcome == CallbackConfirmed, err
}

func (s *FileService) settle(ctx context.Context, orderID string) (CallbackOutcome, error) {
	order, err := s.repos.Orders(s.db).Get(ctx, orderID)
	if err != nil {
		return CallbackFailed, err
	}
	if order.Status != models.OrderPending {
		return CallbackDuplicate, nil
	}

	unlock, err := s.locks.Lock(ctx, order.FileID)
	if err != nil {
		return CallbackFailed, err
	}
	defer unlock()

	outcome, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (CallbackOutcome, error) {
		orders, files := s.repos.Orders(tx), s.repos.Files(tx)
		at := s.now().UTC()

		rec, err := files.Get(ctx, order.FileID)
		if err != nil {
			return CallbackFailed, err
		}
		if rec.PaymentState == models.PaymentPaid {
			ok, err := orders.MarkSuperseded(ctx, orderID, at)
			if err != nil || !ok {
				return CallbackDuplicate, err
			}
			return CallbackSuperseded, nil
		}

		ok, err := orders.MarkConfirmed(ctx, orderID, at)
		if err != nil || !ok {
			return CallbackDuplicate, err
		}
		if _, err := s.machine.Next(rec, models.EventConfirmPayment); err != nil {
			return CallbackFailed, err
		}
		paid, err := files.MarkPaid(ctx, rec.ID, at)
		if err != nil {
			return CallbackFailed, err
		}
		if !paid {
			return CallbackFailed, common.ErrVersionConflict
		}
		return CallbackConfirmed, nil
	})
	if err != nil {
		return CallbackFailed, err
	}

	switch outcome {
	case CallbackConfirmed:
		s.logger.Info(ctx, "payment confirmed", "order_id", orderID, "file_id", order.FileID)
	case CallbackSuperseded:
		s.logger.Warn(ctx, "payment for an already paid file, refund required",
			"order_id", orderID, "file_id", order.FileID, "amount", order.Amount, "currency", order.Currency)
	}
	return outcome, nil
}

// HandlePaymentCallback verifies and applies a provider callback. Failures
// are logged and reported through the outcome, never returned.
func (s *FileService) HandlePaymentCallback(ctx context.Context, payload []byte) CallbackOutcome {
	res, err := s.gateway.VerifyCallback(payload)
	if err != nil || !res.Valid {
		s.logger.Warn(ctx, "rejected payment callback", "error", err)
		return CallbackRejected
	}
	if !res.Succeeded {
		s.logger.Info(ctx, "payment declined", "order_id", res.OrderID)
		return CallbackDeclined
	}

	outcome, err := s.settle(ctx, res.OrderID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		s.logger.Warn(ctx, "payment callback for unknown order", "order_id", res.OrderID)
		return CallbackFailed
	case err != nil:
		s.logger.Error(ctx, "payment confirmation failed", "order_id", res.OrderID, "error", err)
		return CallbackFailed
	case outcome == CallbackDuplicate:
		s.logger.Debug(ctx, "duplicate payment callback", "order_id", res.OrderID)
	}
	return outcome
}
