// Package payment is the boundary to the payment provider. The service only
// needs to start a checkout for an order and to verify the provider's
// asynchronous callback.
package payment

import (
	"context"
	"errors"

	"github.com/pockethour/image-sentinel/internal/server/models"
)

var ErrInvalidCallback = errors.New("invalid payment callback")

// RedirectForm is what the client posts to the provider's checkout page.
type RedirectForm struct {
	Action string            `json:"action"`
	Method string            `json:"method"`
	Fields map[string]string `json:"fields"`
}

// CallbackResult is the verified content of a provider callback.
type CallbackResult struct {
	Valid     bool
	OrderID   string
	Succeeded bool
}

type Gateway interface {
	Initiate(ctx context.Context, order *models.Order) (*RedirectForm, error)
	// VerifyCallback checks the provider signature. A callback that fails
	// verification yields Valid=false and a non-nil error.
	VerifyCallback(payload []byte) (CallbackResult, error)
}
