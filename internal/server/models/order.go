package models

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"

	// OrderSuperseded is a successful charge that arrived after another
	// order had already paid for the file. It needs a refund.
	OrderSuperseded OrderStatus = "superseded"
)

// Order links a payment attempt to the file it unlocks. Confirmation arrives
// asynchronously and may be redelivered.
type Order struct {
	ID          string
	FileID      string
	Amount      int64
	Currency    string
	Status      OrderStatus
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}
