package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sokocraft/escrow-service/internal/domain/order"
	"github.com/sokocraft/escrow-service/internal/platform/persistence"
)

// OrderRepository implements the order.Link interface against the order
// subsystem's tables. The escrow only reads orders and flips the
// delivery-confirmed flag; everything else about orders is owned elsewhere.
type OrderRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOrderRepository creates a new PostgreSQL order link
func NewOrderRepository(logger *slog.Logger, db *persistence.PostgresDB) order.Link {
	return &OrderRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// GetOrder retrieves the escrow-relevant view of an order
func (r *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	query := `
		SELECT id, buyer_id, artisan_id, total_amount, delivery_confirmed, created_at
		FROM orders
		WHERE id = $1
	`

	var o order.Order
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.BuyerID,
		&o.ArtisanID,
		&o.TotalAmount,
		&o.DeliveryConfirmed,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{OrderID: id}
		}
		r.logger.Error("Failed to get order", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &o, nil
}

// IsDeliveryConfirmed reports whether the order's delivery has been confirmed
func (r *OrderRepository) IsDeliveryConfirmed(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `SELECT delivery_confirmed FROM orders WHERE id = $1`

	var confirmed bool
	err := r.querier.QueryRow(ctx, query, id).Scan(&confirmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, order.ErrOrderNotFound{OrderID: id}
		}
		r.logger.Error("Failed to read delivery flag", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to read delivery flag: %w", err)
	}

	return confirmed, nil
}

// MarkDeliveryConfirmed flips the delivery flag; reports false when the order
// was already confirmed (conditional update, same discipline as the ledger).
func (r *OrderRepository) MarkDeliveryConfirmed(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE orders SET delivery_confirmed = TRUE, updated_at = NOW() WHERE id = $1 AND delivery_confirmed = FALSE`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to mark delivery confirmed", "id", id.String(), "error", err)
		return false, fmt.Errorf("failed to mark delivery confirmed: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ClearDeliveryConfirmed rolls the flag back after a failed disbursement
func (r *OrderRepository) ClearDeliveryConfirmed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE orders SET delivery_confirmed = FALSE, updated_at = NOW() WHERE id = $1`

	_, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to clear delivery flag", "id", id.String(), "error", err)
		return fmt.Errorf("failed to clear delivery flag: %w", err)
	}

	return nil
}

// GetBuyer resolves the buyer party and phone for an order
func (r *OrderRepository) GetBuyer(ctx context.Context, id uuid.UUID) (*order.Party, error) {
	return r.getParty(ctx, id, "buyer_id")
}

// GetArtisan resolves the artisan party and phone for an order
func (r *OrderRepository) GetArtisan(ctx context.Context, id uuid.UUID) (*order.Party, error) {
	return r.getParty(ctx, id, "artisan_id")
}

func (r *OrderRepository) getParty(ctx context.Context, id uuid.UUID, column string) (*order.Party, error) {
	// column is one of the two constants above, never user input
	query := fmt.Sprintf(`
		SELECT u.id, u.phone
		FROM orders o
		JOIN users u ON u.id = o.%s
		WHERE o.id = $1
	`, column)

	var p order.Party
	err := r.querier.QueryRow(ctx, query, id).Scan(&p.UserID, &p.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{OrderID: id}
		}
		r.logger.Error("Failed to resolve order party", "id", id.String(), "party", column, "error", err)
		return nil, fmt.Errorf("failed to resolve order party: %w", err)
	}

	return &p, nil
}
