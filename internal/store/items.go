package store

import (
	"context"
	"fmt"
	"time"

	"vintrade-orders/internal/apperr"
	"vintrade-orders/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateLineItem inserts a line item for an order.
func (s *Store) CreateLineItem(ctx context.Context, item *models.OrderLineItem) error {
	query := `
		INSERT INTO order_items (order_id, product_name, vintage, quantity, stock_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, item, query,
		item.OrderID, item.ProductName, item.Vintage, item.Quantity, item.StockStatus)
}

// GetOrderItems retrieves all items for an order.
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetItemsByIDs retrieves multiple line items by id.
func (s *Store) GetItemsByIDs(ctx context.Context, ids []int64) ([]models.OrderLineItem, error) {
	if len(ids) == 0 {
		return []models.OrderLineItem{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM order_items WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.OrderLineItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// StockFieldSet is the mutation applied by a stock transition. ExpectedAt and
// Notes are left untouched when nil; ConfirmedAt is stamped only on entry to
// the confirmed status.
type StockFieldSet struct {
	Status       models.StockStatus
	ExpectedAt   *time.Time
	Notes        *string
	SetConfirmed bool
}

// UpdateItemsStock applies one stock mutation to a set of items atomically,
// then appends the audit entry in the same transaction. All ids must still
// belong to orderID at write time; short rows abort the whole batch.
func (s *Store) UpdateItemsStock(ctx context.Context, orderID int64, itemIDs []int64, set StockFieldSet, entry *models.ActivityLogEntry) error {
	if len(itemIDs) == 0 {
		return apperr.ValidationFailed("no item ids given")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(`
		UPDATE order_items SET
			stock_status = ?,
			stock_expected_at = COALESCE(?, stock_expected_at),
			stock_notes = COALESCE(?, stock_notes),
			stock_confirmed_at = CASE WHEN ? AND stock_confirmed_at IS NULL THEN NOW() ELSE stock_confirmed_at END,
			updated_at = NOW()
		WHERE order_id = ? AND id IN (?)`,
		set.Status, set.ExpectedAt, set.Notes, set.SetConfirmed, orderID, itemIDs)
	if err != nil {
		return err
	}
	query = tx.Rebind(query)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(itemIDs)) {
		return apperr.Conflict("stock update touched %d of %d items for order %d", affected, len(itemIDs), orderID)
	}

	if err := insertActivityTx(ctx, tx, entry); err != nil {
		return err
	}

	return tx.Commit()
}
