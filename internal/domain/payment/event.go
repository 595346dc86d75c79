package payment

import (
	"time"

	"github.com/google/uuid"
)

// Event is published to Kafka after every successful state transition so that
// downstream consumers (notifications, analytics) can react without polling
// the ledger. Publication is best-effort and never blocks a transition.
type Event struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	OrderRef   uuid.UUID `json:"order_ref"`
	State      State     `json:"state"`
	Amount     int64     `json:"amount"` // Stored in cents/minor units
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
