package service

import (
	"context"
	"time"

	"vintrade-orders/internal/models"
	"vintrade-orders/internal/store"
)

// Store is the persistence capability the workflow services consume.
// *store.Store satisfies it; tests substitute an in-memory implementation.
type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, scope store.OrderScope) ([]models.Order, error)
	TransitionOrder(ctx context.Context, order *models.Order, expected models.OrderStatus, entry *models.ActivityLogEntry) error

	CreateLineItem(ctx context.Context, item *models.OrderLineItem) error
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderLineItem, error)
	GetItemsByIDs(ctx context.Context, ids []int64) ([]models.OrderLineItem, error)
	UpdateItemsStock(ctx context.Context, orderID int64, itemIDs []int64, set store.StockFieldSet, entry *models.ActivityLogEntry) error

	AppendActivity(ctx context.Context, e *models.ActivityLogEntry) error
	ListActivity(ctx context.Context, orderID int64) ([]models.ActivityLogEntry, error)
}

// DashboardStore is the read-side capability for rollups.
type DashboardStore interface {
	OrderRollup(ctx context.Context, scope store.OrderScope) (*models.OrderRollup, error)
	ItemsAwaitingReceipt(ctx context.Context, distributorID string) (int, error)
}

// Notifier is the fire-and-forget notification capability. Implementations
// must never block a transition on delivery.
type Notifier interface {
	Notify(ctx context.Context, note *models.Notification)
}

// DashboardCache holds short-lived rollup snapshots. Both methods are
// best-effort; a nil cache disables caching.
type DashboardCache interface {
	Get(ctx context.Context, key string) (*models.Dashboard, bool)
	Set(ctx context.Context, key string, d *models.Dashboard, ttl time.Duration)
}
