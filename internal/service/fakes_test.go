package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vintrade-orders/internal/apperr"
	"vintrade-orders/internal/models"
	"vintrade-orders/internal/store"
)

// memStore is an in-memory Store/DashboardStore with the same compare-and-set
// semantics as the SQL implementation.
type memStore struct {
	mu         sync.Mutex
	nextOrder  int64
	nextItem   int64
	nextEntry  int64
	orders     map[int64]*models.Order
	items      map[int64]*models.OrderLineItem
	activities []models.ActivityLogEntry
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[int64]*models.Order),
		items:  make(map[int64]*models.OrderLineItem),
	}
}

func (m *memStore) CreateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextOrder++
	order.ID = m.nextOrder
	order.OrderNumber = fmt.Sprintf("ORD-%04d", order.ID)
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *memStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, apperr.NotFound("order %d not found", id)
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListOrders(_ context.Context, scope store.OrderScope) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if scope.PartnerID != "" && o.PartnerID != scope.PartnerID {
			continue
		}
		if scope.DistributorID != "" && (o.DistributorID == nil || *o.DistributorID != scope.DistributorID) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) TransitionOrder(_ context.Context, order *models.Order, expected models.OrderStatus, entry *models.ActivityLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok {
		return apperr.NotFound("order %d not found", order.ID)
	}
	if stored.Status != expected {
		return apperr.Conflict("order %d is %s, expected %s", order.ID, stored.Status, expected)
	}
	cp := *order
	cp.UpdatedAt = time.Now()
	m.orders[order.ID] = &cp
	m.appendEntry(entry)
	return nil
}

func (m *memStore) CreateLineItem(_ context.Context, item *models.OrderLineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextItem++
	item.ID = m.nextItem
	item.CreatedAt = time.Now()
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *memStore) GetOrderItems(_ context.Context, orderID int64) ([]models.OrderLineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OrderLineItem
	for _, it := range m.items {
		if it.OrderID == orderID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetItemsByIDs(_ context.Context, ids []int64) ([]models.OrderLineItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.OrderLineItem
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *memStore) UpdateItemsStock(_ context.Context, orderID int64, itemIDs []int64, set store.StockFieldSet, entry *models.ActivityLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := 0
	for _, id := range itemIDs {
		if it, ok := m.items[id]; ok && it.OrderID == orderID {
			matched++
		}
	}
	if matched != len(itemIDs) {
		return apperr.Conflict("stock update matched %d of %d items", matched, len(itemIDs))
	}
	now := time.Now()
	for _, id := range itemIDs {
		it := m.items[id]
		it.StockStatus = set.Status
		if set.ExpectedAt != nil {
			it.StockExpectedAt = set.ExpectedAt
		}
		if set.Notes != nil {
			it.StockNotes = set.Notes
		}
		if set.SetConfirmed && it.StockConfirmedAt == nil {
			it.StockConfirmedAt = &now
		}
	}
	m.appendEntry(entry)
	return nil
}

func (m *memStore) AppendActivity(_ context.Context, e *models.ActivityLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendEntry(e)
	return nil
}

func (m *memStore) ListActivity(_ context.Context, orderID int64) ([]models.ActivityLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ActivityLogEntry
	for i := len(m.activities) - 1; i >= 0; i-- {
		if m.activities[i].OrderID == orderID {
			out = append(out, m.activities[i])
		}
	}
	return out, nil
}

func (m *memStore) OrderRollup(_ context.Context, scope store.OrderScope) (*models.OrderRollup, error) {
	orders, _ := m.ListOrders(context.Background(), scope)
	rollup := &models.OrderRollup{StatusCounts: make(map[models.OrderStatus]int)}
	for _, o := range orders {
		rollup.StatusCounts[o.Status]++
		rollup.TotalOrders++
		rollup.TotalCases += o.TotalCases
		rollup.TotalValueGBP = rollup.TotalValueGBP.Add(o.TotalValueGBP)
		rollup.TotalValueEUR = rollup.TotalValueEUR.Add(o.TotalValueEUR)
	}
	return rollup, nil
}

func (m *memStore) ItemsAwaitingReceipt(_ context.Context, distributorID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, it := range m.items {
		o, ok := m.orders[it.OrderID]
		if !ok || o.DistributorID == nil || *o.DistributorID != distributorID {
			continue
		}
		if models.ReceiptConfirmable[it.StockStatus] {
			count++
		}
	}
	return count, nil
}

// appendEntry requires m.mu held.
func (m *memStore) appendEntry(e *models.ActivityLogEntry) {
	m.nextEntry++
	e.ID = m.nextEntry
	e.CreatedAt = time.Now()
	m.activities = append(m.activities, *e)
}

// setStatus force-sets a stored order's status, for arranging test states.
func (m *memStore) setStatus(id int64, s models.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id].Status = s
}

// capturingNotifier records every published notification.
type capturingNotifier struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (c *capturingNotifier) Notify(_ context.Context, note *models.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, *note)
}

func (c *capturingNotifier) sentTo(orgID string) []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.Notification
	for _, n := range c.notes {
		if n.RecipientOrgID == orgID {
			out = append(out, n)
		}
	}
	return out
}

func (c *capturingNotifier) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = nil
}
