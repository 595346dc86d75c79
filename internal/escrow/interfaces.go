package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/sokocraft/escrow-service/internal/domain/payment"
	"github.com/sokocraft/escrow-service/internal/gateway/daraja"
)

// Gateway is the outbound payment gateway surface the escrow depends on.
// Implemented by daraja.Client; mocked in tests.
type Gateway interface {
	InitiateCollection(ctx context.Context, payerPhone string, amount int64, reference, description string) (*daraja.CollectionResponse, error)
	InitiateDisbursement(ctx context.Context, payeePhone string, amount int64, reference, description, occasion string) (*daraja.DisbursementResponse, error)
}

// EventPublisher publishes payment lifecycle events. Implemented by the Kafka
// payment event producer.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// CallbackArchive persists every inbound gateway notification verbatim before
// processing, matched or not, as an immutable audit record.
type CallbackArchive interface {
	Archive(ctx context.Context, receivedAt time.Time, raw []byte) error
}

// Service-level errors
var (
	// ErrPermissionDenied means the acting user has no right to the operation
	ErrPermissionDenied = errors.New("acting user is not the order's buyer")

	// ErrDeliveryAlreadyConfirmed means the order's delivery flag is already set
	ErrDeliveryAlreadyConfirmed = errors.New("delivery is already confirmed for this order")
)

// ErrInvalidState indicates an operation that is not legal in the payment's
// current lifecycle state
type ErrInvalidState struct {
	Current payment.State
}

func (e ErrInvalidState) Error() string {
	return "operation not permitted in payment state: " + string(e.Current)
}

// Is implements the errors.Is interface for ErrInvalidState
func (e ErrInvalidState) Is(target error) bool {
	t, ok := target.(ErrInvalidState)
	if !ok {
		return false
	}
	if t.Current == "" {
		return true
	}
	return e.Current == t.Current
}

// ValidationError indicates a malformed gateway notification. It is absorbed
// at the reconciler boundary: logged, acknowledged, never propagated to the
// gateway.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return "malformed gateway notification: " + e.Reason
}

// Is implements the errors.Is interface for ValidationError
func (e ValidationError) Is(target error) bool {
	t, ok := target.(ValidationError)
	if !ok {
		return false
	}
	if t.Reason == "" {
		return true
	}
	return e.Reason == t.Reason
}
