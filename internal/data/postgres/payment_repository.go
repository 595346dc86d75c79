// Package postgres provides PostgreSQL implementations of the domain repositories.
// State transitions on the payment ledger are conditional updates keyed on the
// expected current state so that racing callers cannot both apply a transition.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sokocraft/escrow-service/internal/domain/payment"
	"github.com/sokocraft/escrow-service/internal/platform/persistence"
)

const uniqueViolationCode = "23505"

const paymentColumns = `id, order_ref, amount, buyer_phone, artisan_phone, outbound_ref,
		       gateway_receipt_ref, state, result_description, refund_reason,
		       initiated_at, held_at, released_at, refunded_at`

// PaymentRepository implements the payment.Repository interface for PostgreSQL
type PaymentRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &PaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new pending payment. A partial unique index on order_ref for
// non-terminal states and the unique outbound_ref column both surface as
// ErrDuplicateEntry.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (id, order_ref, amount, buyer_phone, artisan_phone, outbound_ref, state, initiated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		p.ID,
		p.OrderRef,
		p.Amount,
		p.BuyerPhone,
		p.ArtisanPhone,
		p.OutboundRef,
		p.State,
		p.InitiatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return payment.ErrDuplicateEntry{OrderRef: p.OrderRef}
		}
		r.logger.Error("Failed to create payment", "order_ref", p.OrderRef.String(), "error", err)
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := r.scanOne(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrEntryNotFound{Ref: id.String()}
		}
		r.logger.Error("Failed to get payment", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return p, nil
}

// GetByOrderRef retrieves the most recent payment for an order
func (r *PaymentRepository) GetByOrderRef(ctx context.Context, orderRef uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_ref = $1 ORDER BY initiated_at DESC LIMIT 1`

	p, err := r.scanOne(r.querier.QueryRow(ctx, query, orderRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrEntryNotFound{Ref: orderRef.String()}
		}
		r.logger.Error("Failed to get payment by order ref", "order_ref", orderRef.String(), "error", err)
		return nil, fmt.Errorf("failed to get payment by order ref: %w", err)
	}

	return p, nil
}

// GetActiveByOrderRef retrieves the single non-terminal payment for an order
func (r *PaymentRepository) GetActiveByOrderRef(ctx context.Context, orderRef uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_ref = $1 AND state IN ('PENDING', 'HELD', 'RELEASING')`

	p, err := r.scanOne(r.querier.QueryRow(ctx, query, orderRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrEntryNotFound{Ref: orderRef.String()}
		}
		r.logger.Error("Failed to get active payment", "order_ref", orderRef.String(), "error", err)
		return nil, fmt.Errorf("failed to get active payment: %w", err)
	}

	return p, nil
}

// GetByOutboundRef retrieves a payment by its gateway transaction reference
func (r *PaymentRepository) GetByOutboundRef(ctx context.Context, outboundRef string) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE outbound_ref = $1`

	p, err := r.scanOne(r.querier.QueryRow(ctx, query, outboundRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrEntryNotFound{Ref: outboundRef}
		}
		r.logger.Error("Failed to get payment by outbound ref", "outbound_ref", outboundRef, "error", err)
		return nil, fmt.Errorf("failed to get payment by outbound ref: %w", err)
	}

	return p, nil
}

// MarkHeld applies PENDING -> HELD atomically. A replayed callback finds the
// entry already advanced and reports false with no error.
func (r *PaymentRepository) MarkHeld(ctx context.Context, outboundRef string, conf payment.HeldConfirmation) (bool, error) {
	query := `
		UPDATE payments
		SET state = 'HELD', gateway_receipt_ref = $2, buyer_phone = $3, result_description = $4, held_at = $5
		WHERE outbound_ref = $1 AND state = 'PENDING'
	`

	result, err := r.querier.Exec(ctx, query, outboundRef, conf.ReceiptRef, conf.PayerPhone, conf.ResultDescription, conf.PaidAt)
	if err != nil {
		r.logger.Error("Failed to mark payment held", "outbound_ref", outboundRef, "error", err)
		return false, fmt.Errorf("failed to mark payment held: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkClosedFromPending applies PENDING -> FAILED or PENDING -> REFUNDED.
// A refunded closure records the description as the refund reason as well,
// since a refunded entry must always carry one.
func (r *PaymentRepository) MarkClosedFromPending(ctx context.Context, outboundRef string, state payment.State, description string) (bool, error) {
	if state != payment.StateFailed && state != payment.StateRefunded {
		return false, fmt.Errorf("state %s is not a valid pending closure", state)
	}

	query := `
		UPDATE payments
		SET state = $2, result_description = $3,
			refund_reason = CASE WHEN $2 = 'REFUNDED' THEN $3 ELSE refund_reason END,
			refunded_at = CASE WHEN $2 = 'REFUNDED' THEN NOW() ELSE refunded_at END
		WHERE outbound_ref = $1 AND state = 'PENDING'
	`

	result, err := r.querier.Exec(ctx, query, outboundRef, state, description)
	if err != nil {
		r.logger.Error("Failed to close pending payment", "outbound_ref", outboundRef, "state", string(state), "error", err)
		return false, fmt.Errorf("failed to close pending payment: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// BeginRelease applies HELD -> RELEASING, gating the disbursement call
func (r *PaymentRepository) BeginRelease(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE payments SET state = 'RELEASING' WHERE id = $1 AND state = 'HELD'`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to begin release", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to begin release: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// CompleteRelease applies RELEASING -> RELEASED after a confirmed disbursement
func (r *PaymentRepository) CompleteRelease(ctx context.Context, id uuid.UUID, releasedAt time.Time) (bool, error) {
	query := `UPDATE payments SET state = 'RELEASED', released_at = $2 WHERE id = $1 AND state = 'RELEASING'`

	result, err := r.querier.Exec(ctx, query, id, releasedAt)
	if err != nil {
		r.logger.Error("Failed to complete release", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to complete release: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// RevertRelease applies RELEASING -> HELD after a failed disbursement
func (r *PaymentRepository) RevertRelease(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE payments SET state = 'HELD' WHERE id = $1 AND state = 'RELEASING'`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to revert release", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to revert release: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// MarkRefunded applies HELD -> REFUNDED with the supplied reason
func (r *PaymentRepository) MarkRefunded(ctx context.Context, id uuid.UUID, reason string, refundedAt time.Time) (bool, error) {
	query := `UPDATE payments SET state = 'REFUNDED', refund_reason = $2, refunded_at = $3 WHERE id = $1 AND state = 'HELD'`

	result, err := r.querier.Exec(ctx, query, id, reason, refundedAt)
	if err != nil {
		r.logger.Error("Failed to mark payment refunded", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to mark payment refunded: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListHeldBefore returns HELD entries with held_at at or before the cutoff, oldest first
func (r *PaymentRepository) ListHeldBefore(ctx context.Context, cutoff time.Time, limit int) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE state = 'HELD' AND held_at <= $1 ORDER BY held_at ASC LIMIT $2`

	rows, err := r.querier.Query(ctx, query, cutoff, limit)
	if err != nil {
		r.logger.Error("Failed to list held payments", "cutoff", cutoff, "error", err)
		return nil, fmt.Errorf("failed to list held payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := r.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan held payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate held payments: %w", err)
	}

	return payments, nil
}

func (r *PaymentRepository) scanOne(row pgx.Row) (*payment.Payment, error) {
	var p payment.Payment
	var receiptRef, resultDescription, refundReason *string
	err := row.Scan(
		&p.ID,
		&p.OrderRef,
		&p.Amount,
		&p.BuyerPhone,
		&p.ArtisanPhone,
		&p.OutboundRef,
		&receiptRef,
		&p.State,
		&resultDescription,
		&refundReason,
		&p.InitiatedAt,
		&p.HeldAt,
		&p.ReleasedAt,
		&p.RefundedAt,
	)
	if err != nil {
		return nil, err
	}

	if receiptRef != nil {
		p.GatewayReceiptRef = *receiptRef
	}
	if resultDescription != nil {
		p.ResultDescription = *resultDescription
	}
	if refundReason != nil {
		p.RefundReason = *refundReason
	}

	return &p, nil
}
