package service

import (
	"context"
	"testing"

	"vintrade-orders/internal/apperr"
	"vintrade-orders/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStockFixture(t *testing.T) (*StockWorkflowService, *OrderWorkflowService, *memStore, *capturingNotifier) {
	t.Helper()
	st := newMemStore()
	nt := &capturingNotifier{}
	return NewStockWorkflowService(st, nt), NewOrderWorkflowService(st, nt), st, nt
}

// orderWithItems arranges an order assigned to DIST01 with n line items and
// returns it with the item ids.
func orderWithItems(t *testing.T, orders *OrderWorkflowService, st *memStore, n int) (*models.Order, []int64) {
	t.Helper()
	ctx := context.Background()
	order, err := orders.CreateDraft(ctx, partnerActor, &CreateDraftRequest{PartnerID: "PTR-LON", ClientID: "client-77"})
	require.NoError(t, err)

	ids := make([]int64, 0, n)
	names := []string{"Chateau Margaux", "Pol Roger", "Domaine Leflaive", "Sassicaia", "Opus One"}
	for i := 0; i < n; i++ {
		item, err := orders.AddLineItem(ctx, partnerActor, order.ID, &AddLineItemRequest{
			ProductName: names[i%len(names)],
			Quantity:    6,
		})
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	dist := "DIST01"
	st.mu.Lock()
	st.orders[order.ID].DistributorID = &dist
	st.mu.Unlock()
	order.DistributorID = &dist
	return order, ids
}

func TestUpdateItemStock(t *testing.T) {
	stock, orders, st, _ := newStockFixture(t)
	ctx := context.Background()
	order, ids := orderWithItems(t, orders, st, 1)

	_, err := stock.UpdateItemStock(ctx, partnerActor, order.ID, ids[0], &StockUpdateRequest{Status: models.StockStatusConfirmed})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = stock.UpdateItemStock(ctx, opActor, order.ID, ids[0], &StockUpdateRequest{Status: "teleported"})
	assert.Equal(t, apperr.KindValidationFailed, apperr.KindOf(err))

	item, err := stock.UpdateItemStock(ctx, opActor, order.ID, ids[0], &StockUpdateRequest{
		Status: models.StockStatusConfirmed,
		Notes:  "supplier confirmed allocation",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StockStatusConfirmed, item.StockStatus)
	// The returned snapshot reflects the row after the write, including the
	// confirmation stamp set by this transition.
	require.NotNil(t, item.StockConfirmedAt)

	stored, err := st.GetItemsByIDs(ctx, ids)
	require.NoError(t, err)
	require.NotNil(t, stored[0].StockConfirmedAt)
	confirmedAt := *stored[0].StockConfirmedAt

	// Later moves never restamp the confirmation time.
	_, err = stock.UpdateItemStock(ctx, opActor, order.ID, ids[0], &StockUpdateRequest{Status: models.StockStatusAtCCBonded})
	require.NoError(t, err)
	stored, err = st.GetItemsByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, confirmedAt, *stored[0].StockConfirmedAt)
}

func TestStockOnlyMovesForward(t *testing.T) {
	stock, orders, st, _ := newStockFixture(t)
	ctx := context.Background()
	order, ids := orderWithItems(t, orders, st, 2)

	_, err := stock.BulkUpdateStock(ctx, opActor, order.ID, &BulkStockUpdateRequest{
		ItemIDs: ids,
		Status:  models.StockStatusAtCCBonded,
	})
	require.NoError(t, err)

	// Neither a backward move nor a re-apply of the current status is legal.
	_, err = stock.UpdateItemStock(ctx, opActor, order.ID, ids[0], &StockUpdateRequest{Status: models.StockStatusConfirmed})
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))
	_, err = stock.UpdateItemStock(ctx, opActor, order.ID, ids[0], &StockUpdateRequest{Status: models.StockStatusAtCCBonded})
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))

	// A bulk batch containing one item already at or past the target fails
	// before anything moves.
	_, err = stock.UpdateItemStock(ctx, opActor, order.ID, ids[1], &StockUpdateRequest{Status: models.StockStatusInTransitToDistrib})
	require.NoError(t, err)
	_, err = stock.BulkUpdateStock(ctx, opActor, order.ID, &BulkStockUpdateRequest{
		ItemIDs: ids,
		Status:  models.StockStatusAtCCReady,
	})
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))

	stored, err := st.GetItemsByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, models.StockStatusAtCCBonded, stored[0].StockStatus)
	assert.Equal(t, models.StockStatusInTransitToDistrib, stored[1].StockStatus)
}

func TestStockMovesIndependentlyOfOrderStatus(t *testing.T) {
	stock, orders, st, _ := newStockFixture(t)
	ctx := context.Background()
	order, ids := orderWithItems(t, orders, st, 1)

	// The order is still awaiting verification; stock moves anyway.
	st.setStatus(order.ID, models.OrderStatusAwaitingPartnerVerif)
	_, err := stock.UpdateItemStock(ctx, opActor, order.ID, ids[0], &StockUpdateRequest{Status: models.StockStatusInTransitToCC})
	assert.NoError(t, err)

	// Only a cancelled parent freezes it.
	st.setStatus(order.ID, models.OrderStatusCancelled)
	_, err = stock.UpdateItemStock(ctx, opActor, order.ID, ids[0], &StockUpdateRequest{Status: models.StockStatusAtCCBonded})
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))
}

func TestBulkUpdateStock(t *testing.T) {
	stock, orders, st, nt := newStockFixture(t)
	ctx := context.Background()
	order, ids := orderWithItems(t, orders, st, 3)
	nt.reset()

	items, err := stock.BulkUpdateStock(ctx, opActor, order.ID, &BulkStockUpdateRequest{
		ItemIDs: ids,
		Status:  models.StockStatusAtCCBonded,
		Notes:   "landed in bond",
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, it := range items {
		assert.Equal(t, models.StockStatusAtCCBonded, it.StockStatus)
	}

	// One summarizing audit entry, not one per item.
	timeline, err := st.ListActivity(ctx, order.ID)
	require.NoError(t, err)
	bulk := timeline[0]
	assert.Equal(t, models.ActionBulkStockStatusChange, bulk.Action)
	assert.Equal(t, string(models.StockStatusPending), bulk.PreviousStatus)
	assert.Equal(t, string(models.StockStatusAtCCBonded), bulk.NewStatus)
	assert.EqualValues(t, 3, bulk.Metadata["item_count"])

	// at_cc_bonded is a status the distributor must hear about.
	assert.NotEmpty(t, nt.sentTo("PTR-LON"))
	assert.NotEmpty(t, nt.sentTo("DIST01"))
}

func TestBulkUpdateIsAtomic(t *testing.T) {
	stock, orders, st, _ := newStockFixture(t)
	ctx := context.Background()
	order, ids := orderWithItems(t, orders, st, 4)
	_, foreignIDs := orderWithItems(t, orders, st, 1)

	// One id belonging to another order poisons the whole batch.
	batch := append(append([]int64{}, ids...), foreignIDs[0])
	_, err := stock.BulkUpdateStock(ctx, opActor, order.ID, &BulkStockUpdateRequest{
		ItemIDs: batch,
		Status:  models.StockStatusAtCCBonded,
	})
	assert.Equal(t, apperr.KindValidationFailed, apperr.KindOf(err))

	// Nothing moved and nothing was logged.
	stored, err := st.GetItemsByIDs(ctx, batch)
	require.NoError(t, err)
	for _, it := range stored {
		assert.Equal(t, models.StockStatusPending, it.StockStatus)
	}
	timeline, err := st.ListActivity(ctx, order.ID)
	require.NoError(t, err)
	for _, e := range timeline {
		assert.NotEqual(t, models.ActionBulkStockStatusChange, e.Action)
	}

	// A missing id fails the same way, as not found.
	_, err = stock.BulkUpdateStock(ctx, opActor, order.ID, &BulkStockUpdateRequest{
		ItemIDs: []int64{ids[0], 9999},
		Status:  models.StockStatusAtCCBonded,
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// So does a batch naming the same id twice.
	_, err = stock.BulkUpdateStock(ctx, opActor, order.ID, &BulkStockUpdateRequest{
		ItemIDs: []int64{ids[0], ids[1], ids[0]},
		Status:  models.StockStatusAtCCBonded,
	})
	assert.Equal(t, apperr.KindValidationFailed, apperr.KindOf(err))
	stored, err = st.GetItemsByIDs(ctx, ids)
	require.NoError(t, err)
	for _, it := range stored {
		assert.Equal(t, models.StockStatusPending, it.StockStatus)
	}
}

func TestConfirmReceipt(t *testing.T) {
	stock, orders, st, nt := newStockFixture(t)
	ctx := context.Background()
	order, ids := orderWithItems(t, orders, st, 2)

	_, err := stock.BulkUpdateStock(ctx, opActor, order.ID, &BulkStockUpdateRequest{
		ItemIDs: ids,
		Status:  models.StockStatusInTransitToDistrib,
	})
	require.NoError(t, err)
	nt.reset()

	// Only the assigned distributor may confirm.
	other := models.Actor{ID: "u-y", Role: models.RoleDistributor, OrgID: "DIST99"}
	_, err = stock.ConfirmReceipt(ctx, other, order.ID, &ConfirmReceiptRequest{ItemIDs: ids})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	items, err := stock.ConfirmReceipt(ctx, distribActor, order.ID, &ConfirmReceiptRequest{ItemIDs: ids})
	require.NoError(t, err)
	for _, it := range items {
		assert.Equal(t, models.StockStatusAtDistributor, it.StockStatus)
	}

	timeline, err := st.ListActivity(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionStockReceiptConfirmed, timeline[0].Action)
	assert.NotEmpty(t, nt.sentTo("PTR-LON"))

	// Already received items cannot be confirmed again.
	_, err = stock.ConfirmReceipt(ctx, distribActor, order.ID, &ConfirmReceiptRequest{ItemIDs: ids})
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))
}

func TestConfirmReceiptRequiresEligibleStatus(t *testing.T) {
	stock, orders, st, _ := newStockFixture(t)
	ctx := context.Background()
	order, ids := orderWithItems(t, orders, st, 2)

	// Move only the first item into an eligible status; the second stays
	// pending and blocks the batch.
	_, err := stock.UpdateItemStock(ctx, opActor, order.ID, ids[0], &StockUpdateRequest{Status: models.StockStatusAtCCBonded})
	require.NoError(t, err)

	_, err = stock.ConfirmReceipt(ctx, distribActor, order.ID, &ConfirmReceiptRequest{ItemIDs: ids})
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))

	stored, err := st.GetItemsByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, models.StockStatusAtCCBonded, stored[0].StockStatus)
	assert.Equal(t, models.StockStatusPending, stored[1].StockStatus)
}
