package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vintrade-orders/internal/apperr"
	"vintrade-orders/internal/models"
	"vintrade-orders/internal/store"
	"vintrade-orders/internal/util"

	"go.uber.org/zap"
)

// StockWorkflowService tracks the physical custody of each line item through
// the stock sub-workflow, independently of the parent order's status. Stock
// can start moving before verification finishes and keep moving after
// delivery is marked; only a cancelled parent freezes it.
type StockWorkflowService struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewStockWorkflowService creates the stock sub-workflow service.
func NewStockWorkflowService(store Store, notifier Notifier) *StockWorkflowService {
	return &StockWorkflowService{
		store:    store,
		notifier: notifier,
		logger:   util.GetLogger(),
	}
}

// StockUpdateRequest moves one item to a target stock status.
type StockUpdateRequest struct {
	Status     models.StockStatus `json:"status" binding:"required"`
	ExpectedAt *time.Time         `json:"expected_at"`
	Notes      string             `json:"notes"`
}

// BulkStockUpdateRequest moves a set of items of one order to the same
// target status atomically.
type BulkStockUpdateRequest struct {
	ItemIDs    []int64            `json:"item_ids" binding:"required,min=1"`
	Status     models.StockStatus `json:"status" binding:"required"`
	ExpectedAt *time.Time         `json:"expected_at"`
	Notes      string             `json:"notes"`
}

// ConfirmReceiptRequest is the distributor's receipt confirmation.
type ConfirmReceiptRequest struct {
	ItemIDs []int64 `json:"item_ids" binding:"required,min=1"`
}

// UpdateItemStock transitions a single item. stockConfirmedAt is stamped
// exactly on first entry to confirmed.
func (s *StockWorkflowService) UpdateItemStock(ctx context.Context, actor models.Actor, orderID, itemID int64, req *StockUpdateRequest) (*models.OrderLineItem, error) {
	ctx, span := util.StartSpan(ctx, "StockWorkflow.UpdateItemStock")
	defer span.End()

	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	order, items, err := s.loadBatch(ctx, orderID, []int64{itemID})
	if err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, apperr.ValidationFailed("unknown stock status %q", req.Status)
	}
	item := items[0]
	if !item.StockStatus.Before(req.Status) {
		return nil, apperr.PreconditionFailed("item %d is %s; stock only moves forward, not to %s",
			item.ID, item.StockStatus, req.Status)
	}

	set := store.StockFieldSet{
		Status:       req.Status,
		ExpectedAt:   req.ExpectedAt,
		Notes:        notesPtr(req.Notes),
		SetConfirmed: req.Status == models.StockStatusConfirmed && item.StockConfirmedAt == nil,
	}
	entry := &models.ActivityLogEntry{
		OrderID:        order.ID,
		ActorID:        actor.ID,
		Action:         models.ActionStockStatusChange,
		PreviousStatus: string(item.StockStatus),
		NewStatus:      string(req.Status),
		Notes:          notesPtr(req.Notes),
		Metadata:       map[string]any{"item_id": item.ID, "product_name": item.ProductName},
	}
	if err := s.store.UpdateItemsStock(ctx, order.ID, []int64{item.ID}, set, entry); err != nil {
		return nil, err
	}

	util.StockTransitionsTotal.WithLabelValues(string(req.Status)).Inc()
	s.logger.Info("Item stock transitioned",
		zap.Int64("order_id", order.ID),
		zap.Int64("item_id", item.ID),
		zap.String("from", string(item.StockStatus)),
		zap.String("to", string(req.Status)))

	s.notifyStockChange(ctx, order, req.Status,
		fmt.Sprintf("%s (%s) on order %s is now %s", item.ProductName, item.Vintage, order.OrderNumber, req.Status))

	updated, err := s.store.GetItemsByIDs(ctx, []int64{item.ID})
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return nil, apperr.NotFound("item %d no longer exists", item.ID)
	}
	return &updated[0], nil
}

// BulkUpdateStock transitions a shipment-sized set of items in one atomic
// write, recording a single summarizing audit entry rather than one per item.
func (s *StockWorkflowService) BulkUpdateStock(ctx context.Context, actor models.Actor, orderID int64, req *BulkStockUpdateRequest) ([]models.OrderLineItem, error) {
	ctx, span := util.StartSpan(ctx, "StockWorkflow.BulkUpdateStock")
	defer span.End()

	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	order, items, err := s.loadBatch(ctx, orderID, req.ItemIDs)
	if err != nil {
		return nil, err
	}
	if !req.Status.Valid() {
		return nil, apperr.ValidationFailed("unknown stock status %q", req.Status)
	}

	anyUnconfirmed := false
	names := make([]string, 0, len(items))
	for _, it := range items {
		if !it.StockStatus.Before(req.Status) {
			return nil, apperr.PreconditionFailed("item %d (%s) is %s; stock only moves forward, not to %s",
				it.ID, it.ProductName, it.StockStatus, req.Status)
		}
		names = append(names, it.ProductName)
		if it.StockConfirmedAt == nil {
			anyUnconfirmed = true
		}
	}

	set := store.StockFieldSet{
		Status:       req.Status,
		ExpectedAt:   req.ExpectedAt,
		Notes:        notesPtr(req.Notes),
		SetConfirmed: req.Status == models.StockStatusConfirmed && anyUnconfirmed,
	}
	entry := &models.ActivityLogEntry{
		OrderID:        order.ID,
		ActorID:        actor.ID,
		Action:         models.ActionBulkStockStatusChange,
		PreviousStatus: batchPreviousStatus(items),
		NewStatus:      string(req.Status),
		Notes:          notesPtr(req.Notes),
		Metadata: map[string]any{
			"item_ids":   req.ItemIDs,
			"item_count": len(items),
			"item_names": strings.Join(names, ", "),
		},
	}
	if err := s.store.UpdateItemsStock(ctx, order.ID, req.ItemIDs, set, entry); err != nil {
		return nil, err
	}

	util.BulkStockUpdatesTotal.Inc()
	util.StockTransitionsTotal.WithLabelValues(string(req.Status)).Add(float64(len(items)))
	s.logger.Info("Bulk stock transition",
		zap.Int64("order_id", order.ID),
		zap.Int("item_count", len(items)),
		zap.String("to", string(req.Status)))

	s.notifyStockChange(ctx, order, req.Status,
		fmt.Sprintf("%d items on order %s are now %s", len(items), order.OrderNumber, req.Status))

	return s.store.GetItemsByIDs(ctx, req.ItemIDs)
}

// ConfirmReceipt is the distributor's half of the sub-workflow: items that
// are at_cc_bonded or in_transit_to_distributor move to at_distributor.
func (s *StockWorkflowService) ConfirmReceipt(ctx context.Context, actor models.Actor, orderID int64, req *ConfirmReceiptRequest) ([]models.OrderLineItem, error) {
	ctx, span := util.StartSpan(ctx, "StockWorkflow.ConfirmReceipt")
	defer span.End()

	order, items, err := s.loadBatch(ctx, orderID, req.ItemIDs)
	if err != nil {
		return nil, err
	}
	if err := requireOrderDistributor(actor, order); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(items))
	for _, it := range items {
		if !models.ReceiptConfirmable[it.StockStatus] {
			return nil, apperr.PreconditionFailed("item %d (%s) is %s; receipt can only be confirmed from at_cc_bonded or in_transit_to_distributor",
				it.ID, it.ProductName, it.StockStatus)
		}
		names = append(names, it.ProductName)
	}

	set := store.StockFieldSet{Status: models.StockStatusAtDistributor}
	entry := &models.ActivityLogEntry{
		OrderID:        order.ID,
		ActorID:        actor.ID,
		Action:         models.ActionStockReceiptConfirmed,
		PreviousStatus: batchPreviousStatus(items),
		NewStatus:      string(models.StockStatusAtDistributor),
		Metadata: map[string]any{
			"item_ids":   req.ItemIDs,
			"item_count": len(items),
			"item_names": strings.Join(names, ", "),
		},
	}
	if err := s.store.UpdateItemsStock(ctx, order.ID, req.ItemIDs, set, entry); err != nil {
		return nil, err
	}

	util.StockTransitionsTotal.WithLabelValues(string(models.StockStatusAtDistributor)).Add(float64(len(items)))
	s.notifyStockChange(ctx, order, models.StockStatusAtDistributor,
		fmt.Sprintf("Distributor confirmed receipt of %d items on order %s", len(items), order.OrderNumber))

	return s.store.GetItemsByIDs(ctx, req.ItemIDs)
}

// loadBatch fetches the order and the items, verifying the ids are distinct,
// every id exists and belongs to the order, and the parent is not cancelled.
func (s *StockWorkflowService) loadBatch(ctx context.Context, orderID int64, itemIDs []int64) (*models.Order, []models.OrderLineItem, error) {
	seen := make(map[int64]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			return nil, nil, apperr.ValidationFailed("duplicate item id %d in batch", id)
		}
		seen[id] = struct{}{}
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, nil, apperr.PreconditionFailed("order %s is cancelled; stock cannot move", order.OrderNumber)
	}

	items, err := s.store.GetItemsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(items) != len(itemIDs) {
		return nil, nil, apperr.NotFound("one or more items do not exist")
	}
	for _, it := range items {
		if it.OrderID != order.ID {
			return nil, nil, apperr.ValidationFailed("item %d does not belong to order %s", it.ID, order.OrderNumber)
		}
	}
	return order, items, nil
}

// notifyStockChange applies the routing policy: partner on every change,
// distributor only on the statuses where it must act or expect stock.
func (s *StockWorkflowService) notifyStockChange(ctx context.Context, order *models.Order, target models.StockStatus, message string) {
	s.notifier.Notify(ctx, &models.Notification{
		Type:           models.NotificationTypeStockStatus,
		Title:          "Stock update",
		Message:        message,
		RecipientOrgID: order.PartnerID,
		EntityType:     "order",
		EntityID:       order.ID,
		Metadata:       map[string]any{"stock_status": string(target)},
	})
	if models.StockNotifiesDistributor[target] && order.DistributorID != nil {
		s.notifier.Notify(ctx, &models.Notification{
			Type:           models.NotificationTypeStockStatus,
			Title:          "Stock update",
			Message:        message,
			RecipientOrgID: *order.DistributorID,
			EntityType:     "order",
			EntityID:       order.ID,
			Metadata:       map[string]any{"stock_status": string(target)},
		})
	}
}

func batchPreviousStatus(items []models.OrderLineItem) string {
	prev := string(items[0].StockStatus)
	for _, it := range items[1:] {
		if string(it.StockStatus) != prev {
			return "mixed"
		}
	}
	return prev
}
