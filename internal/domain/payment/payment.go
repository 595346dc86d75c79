package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrEmptyOutboundRef   = errors.New("outbound transaction reference cannot be empty")
	ErrMissingRefundReason = errors.New("refund reason cannot be empty")
)

// State tracks where a payment sits in the escrow lifecycle
type State string

const (
	// StatePending means a collection request was accepted by the gateway
	// and the service is waiting for the asynchronous confirmation.
	StatePending State = "PENDING"
	// StateHeld means funds are confirmed collected and retained by the
	// platform until delivery confirmation or auto-release.
	StateHeld State = "HELD"
	// StateReleasing is the interim state acquired before the disbursement
	// call so that a racing sweep and delivery confirmation cannot both
	// reach the gateway for the same entry.
	StateReleasing State = "RELEASING"
	StateReleased  State = "RELEASED"
	StateRefunded  State = "REFUNDED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transition is permitted from s.
func (s State) Terminal() bool {
	return s == StateReleased || s == StateRefunded || s == StateFailed
}

// Payment is the durable record of one order's escrow lifecycle.
// Rows are never deleted; they form the platform's audit trail.
type Payment struct {
	ID                uuid.UUID  `json:"id"`
	OrderRef          uuid.UUID  `json:"order_ref"`
	Amount            int64      `json:"amount"` // Stored in cents/minor units
	BuyerPhone        string     `json:"buyer_phone"`
	ArtisanPhone      string     `json:"artisan_phone"`
	OutboundRef       string     `json:"outbound_ref"` // Gateway CheckoutRequestID, unique
	GatewayReceiptRef string     `json:"gateway_receipt_ref,omitempty"`
	State             State      `json:"state"`
	ResultDescription string     `json:"result_description,omitempty"`
	RefundReason      string     `json:"refund_reason,omitempty"`
	InitiatedAt       time.Time  `json:"initiated_at"`
	HeldAt            *time.Time `json:"held_at,omitempty"`
	ReleasedAt        *time.Time `json:"released_at,omitempty"`
	RefundedAt        *time.Time `json:"refunded_at,omitempty"`
}

// New creates a pending payment for an accepted collection request.
// Phones are normalized to E.164 and captured as they were at initiation,
// independent of later profile edits.
func New(orderRef uuid.UUID, amount int64, buyerPhone, artisanPhone, outboundRef string) (*Payment, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if outboundRef == "" {
		return nil, ErrEmptyOutboundRef
	}

	normalizedBuyer, err := NormalizePhone(buyerPhone)
	if err != nil {
		return nil, err
	}
	normalizedArtisan, err := NormalizePhone(artisanPhone)
	if err != nil {
		return nil, err
	}

	return &Payment{
		ID:           uuid.New(),
		OrderRef:     orderRef,
		Amount:       amount,
		BuyerPhone:   normalizedBuyer,
		ArtisanPhone: normalizedArtisan,
		OutboundRef:  outboundRef,
		State:        StatePending,
		InitiatedAt:  time.Now().UTC(),
	}, nil
}

// HeldConfirmation carries the fields extracted from a successful gateway
// callback that get stamped onto the payment when it transitions to HELD.
type HeldConfirmation struct {
	Amount            int64
	ReceiptRef        string
	PayerPhone        string
	PaidAt            time.Time
	ResultDescription string
}
