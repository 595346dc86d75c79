// Package order exposes the read-mostly view of the order subsystem that the
// escrow lifecycle depends on. Orders themselves are owned elsewhere; the
// escrow only needs to resolve parties and track the delivery-confirmed flag.
package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Order is the slice of an order the escrow service reads
type Order struct {
	ID                uuid.UUID `json:"id"`
	BuyerID           uuid.UUID `json:"buyer_id"`
	ArtisanID         uuid.UUID `json:"artisan_id"`
	TotalAmount       int64     `json:"total_amount"` // Stored in cents/minor units
	DeliveryConfirmed bool      `json:"delivery_confirmed"`
	CreatedAt         time.Time `json:"created_at"`
}

// Party identifies one side of an order together with the phone number
// payments are sent to or collected from
type Party struct {
	UserID uuid.UUID `json:"user_id"`
	Phone  string    `json:"phone"`
}

// Link is the escrow's view onto the order subsystem
type Link interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	IsDeliveryConfirmed(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkDeliveryConfirmed flips the delivery flag; reports false when the
	// order was already confirmed.
	MarkDeliveryConfirmed(ctx context.Context, id uuid.UUID) (bool, error)

	// ClearDeliveryConfirmed rolls the flag back after a failed disbursement.
	ClearDeliveryConfirmed(ctx context.Context, id uuid.UUID) error

	GetBuyer(ctx context.Context, id uuid.UUID) (*Party, error)
	GetArtisan(ctx context.Context, id uuid.UUID) (*Party, error)
}

// ErrOrderNotFound indicates a missing order
type ErrOrderNotFound struct {
	OrderID uuid.UUID
}

func (e ErrOrderNotFound) Error() string {
	return "order not found: " + e.OrderID.String()
}

// Is implements the errors.Is interface for ErrOrderNotFound
func (e ErrOrderNotFound) Is(target error) bool {
	t, ok := target.(ErrOrderNotFound)
	if !ok {
		return false
	}
	if t.OrderID == uuid.Nil {
		return true
	}
	return e.OrderID == t.OrderID
}
