// Package escrow implements the payment lifecycle that moves money from buyer
// to platform to artisan: collection initiation, callback reconciliation,
// delivery-confirmed release, platform-side refunds and the timed auto-release
// sweep. Concurrency correctness comes from the storage layer's conditional
// state transitions, not in-memory locks.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sokocraft/escrow-service/internal/config"
	"github.com/sokocraft/escrow-service/internal/domain/order"
	"github.com/sokocraft/escrow-service/internal/domain/payment"
)

const (
	autoReleaseDescription = "auto-release after timeout"
	releaseDescription     = "Delivery confirmed"
)

// Service orchestrates the escrow payment lifecycle
type Service struct {
	payments   payment.Repository
	orders     order.Link
	gateway    Gateway
	events     EventPublisher
	logger     *slog.Logger
	holdPeriod time.Duration
	sweepBatch int
	pool       *ants.Pool
}

// NewService creates the escrow service together with its sweep worker pool
func NewService(
	logger *slog.Logger,
	payments payment.Repository,
	orders order.Link,
	gateway Gateway,
	events EventPublisher,
	cfg *config.EscrowConfig,
) (*Service, error) {
	pool, err := ants.NewPool(cfg.SweepWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep worker pool: %w", err)
	}

	return &Service{
		payments:   payments,
		orders:     orders,
		gateway:    gateway,
		events:     events,
		logger:     logger,
		holdPeriod: cfg.HoldPeriod,
		sweepBatch: cfg.SweepBatchSize,
		pool:       pool,
	}, nil
}

// Close releases the sweep worker pool
func (s *Service) Close() {
	s.pool.Release()
}

// InitiateCollection starts the escrow lifecycle for an order: it submits a
// collection request to the gateway and, only once the gateway has accepted it
// and returned an outbound reference, records a PENDING ledger entry. Gateway
// failure leaves no partial state.
func (s *Service) InitiateCollection(ctx context.Context, orderRef, actorID uuid.UUID, buyerPhone string, amount int64, description string) (*payment.Payment, error) {
	o, err := s.orders.GetOrder(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != actorID {
		return nil, ErrPermissionDenied
	}

	if _, err := s.payments.GetActiveByOrderRef(ctx, orderRef); err == nil {
		return nil, payment.ErrDuplicateEntry{OrderRef: orderRef}
	} else if !errors.Is(err, payment.ErrEntryNotFound{}) {
		return nil, err
	}

	normalizedBuyer, err := payment.NormalizePhone(buyerPhone)
	if err != nil {
		return nil, err
	}

	artisan, err := s.orders.GetArtisan(ctx, orderRef)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.InitiateCollection(ctx, normalizedBuyer, amount, orderRef.String(), description)
	if err != nil {
		// Surfaced unchanged; no ledger entry exists for a rejected request
		return nil, err
	}

	p, err := payment.New(orderRef, amount, normalizedBuyer, artisan.Phone, resp.GatewayTransactionID)
	if err != nil {
		return nil, err
	}

	if err := s.payments.Create(ctx, p); err != nil {
		// The gateway accepted the request but the ledger write failed;
		// the eventual callback will not correlate. Loud on purpose.
		s.logger.Error("Ledger write failed after gateway accepted collection",
			"order_ref", orderRef.String(),
			"outbound_ref", resp.GatewayTransactionID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Collection initiated",
		"order_ref", orderRef.String(),
		"outbound_ref", p.OutboundRef,
		"amount", p.Amount,
	)
	s.publishEvent(ctx, p, "collection initiated")

	return p, nil
}

// ApplyCallback applies a reconciled gateway notification to the ledger.
// Safe to invoke twice with the identical notification: once the entry has
// left PENDING the conditional update loses and the call is a no-op.
func (s *Service) ApplyCallback(ctx context.Context, result CallbackResult) error {
	p, err := s.payments.GetByOutboundRef(ctx, result.OutboundRef)
	if err != nil {
		return err
	}

	logger := s.logger.With("outbound_ref", result.OutboundRef, "order_ref", p.OrderRef.String())

	if p.State != payment.StatePending {
		logger.Info("Callback for already-settled payment ignored", "state", string(p.State), "result_code", result.ResultCode)
		return nil
	}

	if !result.Success {
		state, description := classifyFailure(result)
		applied, err := s.payments.MarkClosedFromPending(ctx, result.OutboundRef, state, description)
		if err != nil {
			return err
		}
		if applied {
			logger.Info("Payment closed from callback", "state", string(state), "result_code", result.ResultCode)
			p.State = state
			s.publishEvent(ctx, p, description)
		}
		return nil
	}

	// The gateway cannot carry sub-unit precision, so amounts are compared in
	// whole units. A mismatch is flagged, never silently overwritten.
	if payment.MajorUnits(result.Amount) != payment.MajorUnits(p.Amount) {
		description := fmt.Sprintf("amount mismatch: gateway reported %s, ledger holds %s",
			payment.FormatAmount(result.Amount), payment.FormatAmount(p.Amount))
		logger.Warn("Callback amount does not match ledger", "gateway_amount", result.Amount, "ledger_amount", p.Amount)

		applied, err := s.payments.MarkClosedFromPending(ctx, result.OutboundRef, payment.StateFailed, description)
		if err != nil {
			return err
		}
		if applied {
			p.State = payment.StateFailed
			s.publishEvent(ctx, p, description)
		}
		return nil
	}

	conf := payment.HeldConfirmation{
		Amount:            result.Amount,
		ReceiptRef:        result.ReceiptRef,
		PayerPhone:        result.PayerPhone,
		PaidAt:            result.PaidAt,
		ResultDescription: result.ResultDescription,
	}
	applied, err := s.payments.MarkHeld(ctx, result.OutboundRef, conf)
	if err != nil {
		return err
	}
	if !applied {
		logger.Info("Duplicate success callback ignored")
		return nil
	}

	logger.Info("Payment held", "receipt_ref", result.ReceiptRef, "amount", result.Amount)
	p.State = payment.StateHeld
	s.publishEvent(ctx, p, "funds held")

	return nil
}

// ConfirmDeliveryAndRelease is the buyer's confirmation path: mark the order
// delivered, disburse the held amount to the artisan, then settle the ledger.
// The RELEASING transition is acquired before the gateway call so a racing
// sweep cannot also disburse; disbursement failure rolls the delivery flag
// back and leaves the entry HELD for an operator retry.
func (s *Service) ConfirmDeliveryAndRelease(ctx context.Context, orderRef, actorID uuid.UUID) (*payment.Payment, error) {
	o, err := s.orders.GetOrder(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != actorID {
		return nil, ErrPermissionDenied
	}
	if o.DeliveryConfirmed {
		return nil, ErrDeliveryAlreadyConfirmed
	}

	p, err := s.payments.GetActiveByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if p.State != payment.StateHeld {
		return nil, ErrInvalidState{Current: p.State}
	}

	applied, err := s.payments.BeginRelease(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrInvalidState{Current: s.currentState(ctx, p)}
	}

	marked, err := s.orders.MarkDeliveryConfirmed(ctx, orderRef)
	if err != nil {
		s.revertRelease(ctx, p.ID)
		return nil, err
	}
	if !marked {
		s.revertRelease(ctx, p.ID)
		return nil, ErrDeliveryAlreadyConfirmed
	}

	if _, err := s.gateway.InitiateDisbursement(ctx, p.ArtisanPhone, p.Amount, p.OutboundRef, releaseDescription, ""); err != nil {
		s.logger.Error("Disbursement failed, rolling back delivery confirmation",
			"order_ref", orderRef.String(),
			"payment_id", p.ID.String(),
			"error", err,
		)
		if clearErr := s.orders.ClearDeliveryConfirmed(ctx, orderRef); clearErr != nil {
			s.logger.Error("Failed to roll back delivery flag", "order_ref", orderRef.String(), "error", clearErr)
		}
		s.revertRelease(ctx, p.ID)
		return nil, err
	}

	if err := s.completeRelease(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Refund reverses a held payment on the platform ledger. The gateway is not
// called: an actual buyer-side reversal is reconciled out of band.
func (s *Service) Refund(ctx context.Context, orderRef, actorID uuid.UUID, reason string) (*payment.Payment, error) {
	if reason == "" {
		return nil, payment.ErrMissingRefundReason
	}

	o, err := s.orders.GetOrder(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if o.BuyerID != actorID {
		return nil, ErrPermissionDenied
	}

	p, err := s.payments.GetActiveByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if p.State != payment.StateHeld {
		return nil, ErrInvalidState{Current: p.State}
	}

	now := time.Now().UTC()
	applied, err := s.payments.MarkRefunded(ctx, p.ID, reason, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrInvalidState{Current: s.currentState(ctx, p)}
	}

	s.logger.Info("Payment refunded", "order_ref", orderRef.String(), "payment_id", p.ID.String(), "reason", reason)
	p.State = payment.StateRefunded
	p.RefundReason = reason
	p.RefundedAt = &now
	s.publishEvent(ctx, p, reason)

	return p, nil
}

// GetByOrder returns the most recent ledger view for an order
func (s *Service) GetByOrder(ctx context.Context, orderRef uuid.UUID) (*payment.Payment, error) {
	return s.payments.GetByOrderRef(ctx, orderRef)
}

// AutoRelease sweeps HELD entries whose hold period has expired and whose
// order is not delivery-confirmed, disbursing each to the artisan. Entries are
// processed independently on the worker pool: one failure never aborts the
// batch, and a failed disbursement leaves the entry HELD for the next sweep.
// Returns the number of entries released.
func (s *Service) AutoRelease(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.holdPeriod)
	entries, err := s.payments.ListHeldBefore(ctx, cutoff, s.sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list due held payments: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	s.logger.Info("Auto-release sweep processing due entries", "count", len(entries), "cutoff", cutoff)

	var released atomic.Int64
	var wg sync.WaitGroup
	for _, entry := range entries {
		p := entry
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if s.autoReleaseOne(ctx, p) {
				released.Add(1)
			}
		}
		if err := s.pool.Submit(task); err != nil {
			// Pool unavailable (e.g. shutting down); run inline rather than drop the entry
			s.logger.Warn("Sweep worker pool rejected task, processing inline", "payment_id", p.ID.String(), "error", err)
			task()
		}
	}
	wg.Wait()

	return int(released.Load()), nil
}

// autoReleaseOne processes a single due entry; reports whether it was released
func (s *Service) autoReleaseOne(ctx context.Context, p *payment.Payment) bool {
	logger := s.logger.With("payment_id", p.ID.String(), "order_ref", p.OrderRef.String())

	confirmed, err := s.orders.IsDeliveryConfirmed(ctx, p.OrderRef)
	if err != nil {
		logger.Error("Sweep could not read delivery flag, skipping entry", "error", err)
		return false
	}
	if confirmed {
		// The confirmation path owns this entry
		return false
	}

	applied, err := s.payments.BeginRelease(ctx, p.ID)
	if err != nil {
		logger.Error("Sweep could not begin release, skipping entry", "error", err)
		return false
	}
	if !applied {
		// A concurrent confirmation or sweep won the transition
		return false
	}

	if _, err := s.gateway.InitiateDisbursement(ctx, p.ArtisanPhone, p.Amount, p.OutboundRef, autoReleaseDescription, ""); err != nil {
		logger.Warn("Sweep disbursement failed, entry stays held for next sweep", "error", err)
		s.revertRelease(ctx, p.ID)
		return false
	}

	if err := s.completeRelease(ctx, p); err != nil {
		return false
	}

	logger.Info("Payment auto-released")
	return true
}

// completeRelease settles RELEASING -> RELEASED after a confirmed disbursement.
// If the local write fails the disbursement cannot be un-sent: the entry stays
// RELEASING and must be reconciled against gateway receipts.
func (s *Service) completeRelease(ctx context.Context, p *payment.Payment) error {
	now := time.Now().UTC()
	applied, err := s.payments.CompleteRelease(ctx, p.ID, now)
	if err != nil {
		s.logger.Error("Disbursement sent but ledger settlement failed; entry needs reconciliation",
			"payment_id", p.ID.String(),
			"order_ref", p.OrderRef.String(),
			"error", err,
		)
		return err
	}
	if !applied {
		s.logger.Warn("Release settlement found entry already advanced", "payment_id", p.ID.String())
		return nil
	}

	p.State = payment.StateReleased
	p.ReleasedAt = &now
	s.publishEvent(ctx, p, "funds released to artisan")

	return nil
}

func (s *Service) revertRelease(ctx context.Context, id uuid.UUID) {
	if _, err := s.payments.RevertRelease(ctx, id); err != nil {
		s.logger.Error("Failed to revert releasing payment to held", "payment_id", id.String(), "error", err)
	}
}

// currentState re-reads an entry's state after a lost conditional update so
// the error reports what actually won
func (s *Service) currentState(ctx context.Context, p *payment.Payment) payment.State {
	refreshed, err := s.payments.GetByID(ctx, p.ID)
	if err != nil {
		return p.State
	}
	return refreshed.State
}

// publishEvent emits a lifecycle event; failures are logged and never fail the
// transition that triggered them
func (s *Service) publishEvent(ctx context.Context, p *payment.Payment, detail string) {
	event := payment.Event{
		PaymentID:  p.ID,
		OrderRef:   p.OrderRef,
		State:      p.State,
		Amount:     p.Amount,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, p.OrderRef.String(), event); err != nil {
		s.logger.Warn("Failed to publish payment event",
			"payment_id", p.ID.String(),
			"state", string(p.State),
			"error", err,
		)
	}
}
