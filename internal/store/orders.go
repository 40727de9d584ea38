package store

import (
	"context"
	"database/sql"
	"fmt"

	"vintrade-orders/internal/apperr"
	"vintrade-orders/internal/models"
)

// CreateOrder inserts a draft order and assigns its order number.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (partner_id, client_id, status, total_cases, total_value_gbp, total_value_eur)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, order, query,
		order.PartnerID, order.ClientID, order.Status,
		order.TotalCases, order.TotalValueGBP, order.TotalValueEUR); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	order.OrderNumber = fmt.Sprintf("ORD-%04d", order.ID)
	if _, err := tx.ExecContext(ctx,
		"UPDATE orders SET order_number = $1 WHERE id = $2",
		order.OrderNumber, order.ID); err != nil {
		return fmt.Errorf("failed to set order number: %w", err)
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order %d does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderScope restricts a listing to one org's orders. Zero value lists all.
type OrderScope struct {
	PartnerID     string
	DistributorID string
}

// ListOrders retrieves orders, newest first, optionally scoped to an org.
func (s *Store) ListOrders(ctx context.Context, scope OrderScope) ([]models.Order, error) {
	var orders []models.Order
	var err error

	switch {
	case scope.PartnerID != "":
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders WHERE partner_id = $1 ORDER BY created_at DESC", scope.PartnerID)
	case scope.DistributorID != "":
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders WHERE distributor_id = $1 ORDER BY created_at DESC", scope.DistributorID)
	default:
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders ORDER BY created_at DESC")
	}
	return orders, err
}

// TransitionOrder persists an order mutation conditionally on its status not
// having moved since it was read, and appends the audit entry in the same
// transaction. Exactly one of two racing callers succeeds; the loser gets
// Conflict (or NotFound if the row is gone).
func (s *Store) TransitionOrder(ctx context.Context, order *models.Order, expected models.OrderStatus, entry *models.ActivityLogEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE orders SET
			status = $1,
			distributor_id = $2,
			distributor_assigned_at = $3,
			payment_reference = $4,
			partner_verification_response = $5,
			partner_verification_at = $6,
			partner_verification_by = $7,
			partner_verification_notes = $8,
			distributor_verification_response = $9,
			distributor_verification_at = $10,
			distributor_verification_by = $11,
			distributor_verification_notes = $12,
			submitted_at = $13,
			approved_at = $14,
			delivered_at = $15,
			cancelled_at = $16,
			updated_at = NOW()
		WHERE id = $17 AND status = $18`

	res, err := tx.ExecContext(ctx, query,
		order.Status,
		order.DistributorID, order.DistributorAssignedAt,
		order.PaymentReference,
		order.PartnerVerificationResponse, order.PartnerVerificationAt,
		order.PartnerVerificationBy, order.PartnerVerificationNotes,
		order.DistributorVerificationResponse, order.DistributorVerificationAt,
		order.DistributorVerificationBy, order.DistributorVerificationNotes,
		order.SubmittedAt, order.ApprovedAt, order.DeliveredAt, order.CancelledAt,
		order.ID, expected)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", order.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current models.OrderStatus
		err := tx.GetContext(ctx, &current, "SELECT status FROM orders WHERE id = $1", order.ID)
		if err == sql.ErrNoRows {
			return apperr.NotFound("order %d does not exist", order.ID)
		}
		if err != nil {
			return err
		}
		return apperr.Conflict("order %d moved to %s while transitioning from %s", order.ID, current, expected)
	}

	if err := insertActivityTx(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}
