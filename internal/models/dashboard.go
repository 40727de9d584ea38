package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRollup is a read-only aggregation of the orders visible to one role.
// Derived from the authoritative tables on each read; never written back.
type OrderRollup struct {
	StatusCounts       map[OrderStatus]int `json:"status_counts"`
	TotalOrders        int                 `json:"total_orders"`
	TotalCases         int                 `json:"total_cases"`
	TotalValueGBP      decimal.Decimal     `json:"total_value_gbp"`
	TotalValueEUR      decimal.Decimal     `json:"total_value_eur"`
	SubmittedThisMonth int                 `json:"submitted_this_month"`
	DeliveredThisMonth int                 `json:"delivered_this_month"`
}

// Dashboard is one role's rollup snapshot.
type Dashboard struct {
	Role  Role   `json:"role"`
	OrgID string `json:"org_id,omitempty"`

	Rollup OrderRollup `json:"rollup"`

	// Distributor only: items sitting in at_cc_bonded or
	// in_transit_to_distributor, waiting on a receipt confirmation.
	ItemsAwaitingReceipt int `json:"items_awaiting_receipt,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}
