package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository manages payment persistence. Every state transition is a
// conditional update keyed on the expected current state: the boolean result
// reports whether this caller won the transition. A false result with a nil
// error means another actor already advanced the entry and the operation is a
// no-op for this caller.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByOrderRef(ctx context.Context, orderRef uuid.UUID) (*Payment, error)
	GetByOutboundRef(ctx context.Context, outboundRef string) (*Payment, error)

	// GetActiveByOrderRef returns the non-terminal entry for an order, or
	// ErrEntryNotFound when every entry for the order is terminal or none exist.
	GetActiveByOrderRef(ctx context.Context, orderRef uuid.UUID) (*Payment, error)

	// MarkHeld applies the PENDING -> HELD transition with the callback details.
	MarkHeld(ctx context.Context, outboundRef string, conf HeldConfirmation) (bool, error)

	// MarkClosedFromPending applies PENDING -> FAILED or PENDING -> REFUNDED
	// for an unsuccessful callback result.
	MarkClosedFromPending(ctx context.Context, outboundRef string, state State, description string) (bool, error)

	// BeginRelease applies HELD -> RELEASING, gating the outbound disbursement call.
	BeginRelease(ctx context.Context, id uuid.UUID) (bool, error)

	// CompleteRelease applies RELEASING -> RELEASED after a confirmed disbursement.
	CompleteRelease(ctx context.Context, id uuid.UUID, releasedAt time.Time) (bool, error)

	// RevertRelease applies RELEASING -> HELD when the disbursement call failed.
	RevertRelease(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkRefunded applies HELD -> REFUNDED with the operator-supplied reason.
	MarkRefunded(ctx context.Context, id uuid.UUID, reason string, refundedAt time.Time) (bool, error)

	// ListHeldBefore returns HELD entries whose held_at is at or before the
	// cutoff, oldest first, for the auto-release sweep.
	ListHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Payment, error)
}

// ErrEntryNotFound indicates a missing payment entry
type ErrEntryNotFound struct {
	Ref string
}

func (e ErrEntryNotFound) Error() string {
	return "payment entry not found: " + e.Ref
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	// An empty target Ref matches any ErrEntryNotFound
	if t.Ref == "" {
		return true
	}
	return e.Ref == t.Ref
}

// ErrDuplicateEntry indicates a uniqueness violation on the outbound
// transaction reference or an active entry already existing for the order
type ErrDuplicateEntry struct {
	OrderRef uuid.UUID
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate payment entry for order: " + e.OrderRef.String()
}

// Is implements the errors.Is interface for ErrDuplicateEntry
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	if t.OrderRef == uuid.Nil {
		return true
	}
	return e.OrderRef == t.OrderRef
}
