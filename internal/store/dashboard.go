package store

import (
	"context"

	"vintrade-orders/internal/models"

	"github.com/shopspring/decimal"
)

// scopeClause builds the WHERE fragment for a dashboard scope. Queries here
// read without locking; rollups are advisory snapshots.
func scopeClause(scope OrderScope) (string, []any) {
	switch {
	case scope.PartnerID != "":
		return "partner_id = $1", []any{scope.PartnerID}
	case scope.DistributorID != "":
		return "distributor_id = $1", []any{scope.DistributorID}
	default:
		return "TRUE", nil
	}
}

// OrderRollup aggregates order counts, value sums, and this-month windows for
// the given scope.
func (s *Store) OrderRollup(ctx context.Context, scope OrderScope) (*models.OrderRollup, error) {
	where, args := scopeClause(scope)
	rollup := &models.OrderRollup{StatusCounts: make(map[models.OrderStatus]int)}

	rows, err := s.db.QueryxContext(ctx,
		"SELECT status, COUNT(*) FROM orders WHERE "+where+" GROUP BY status", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status models.OrderStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		rollup.StatusCounts[status] = count
		rollup.TotalOrders += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sums := struct {
		Cases int    `db:"cases"`
		GBP   string `db:"gbp"`
		EUR   string `db:"eur"`
	}{}
	err = s.db.GetContext(ctx, &sums, `
		SELECT
			COALESCE(SUM(total_cases), 0) AS cases,
			COALESCE(SUM(total_value_gbp), 0)::text AS gbp,
			COALESCE(SUM(total_value_eur), 0)::text AS eur
		FROM orders WHERE `+where, args...)
	if err != nil {
		return nil, err
	}
	rollup.TotalCases = sums.Cases
	if rollup.TotalValueGBP, err = decimal.NewFromString(sums.GBP); err != nil {
		return nil, err
	}
	if rollup.TotalValueEUR, err = decimal.NewFromString(sums.EUR); err != nil {
		return nil, err
	}

	err = s.db.GetContext(ctx, &rollup.SubmittedThisMonth, `
		SELECT COUNT(*) FROM orders
		WHERE `+where+` AND submitted_at >= date_trunc('month', NOW())`, args...)
	if err != nil {
		return nil, err
	}

	err = s.db.GetContext(ctx, &rollup.DeliveredThisMonth, `
		SELECT COUNT(*) FROM orders
		WHERE `+where+` AND delivered_at >= date_trunc('month', NOW())`, args...)
	if err != nil {
		return nil, err
	}

	return rollup, nil
}

// ItemsAwaitingReceipt counts a distributor's line items parked in a status
// that receipt confirmation would advance.
func (s *Store) ItemsAwaitingReceipt(ctx context.Context, distributorID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.distributor_id = $1
		  AND i.stock_status IN ($2, $3)`,
		distributorID, models.StockStatusAtCCBonded, models.StockStatusInTransitToDistrib)
	return count, err
}
