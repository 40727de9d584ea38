package service

import (
	"context"
	"testing"

	"vintrade-orders/internal/apperr"
	"vintrade-orders/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecoveryFixture(t *testing.T) (*AdminRecoveryService, *OrderWorkflowService, *memStore, *capturingNotifier) {
	t.Helper()
	st := newMemStore()
	nt := &capturingNotifier{}
	return NewAdminRecoveryService(st, nt), NewOrderWorkflowService(st, nt), st, nt
}

// suspendedOrder walks an order to verification_suspended via a distributor
// decline, so both verification responses are on record.
func suspendedOrder(t *testing.T, orders *OrderWorkflowService) *models.Order {
	t.Helper()
	ctx := context.Background()
	order := draftWithItem(t, orders)
	_, err := orders.Submit(ctx, partnerActor, order.ID)
	require.NoError(t, err)
	_, err = orders.StartReview(ctx, opActor, order.ID)
	require.NoError(t, err)
	_, err = orders.Approve(ctx, opActor, order.ID)
	require.NoError(t, err)
	_, err = orders.AssignDistributor(ctx, opActor, order.ID, "DIST01")
	require.NoError(t, err)
	_, err = orders.RespondPartnerVerification(ctx, partnerActor, order.ID, &VerificationRequest{Response: models.VerificationVerified})
	require.NoError(t, err)
	out, err := orders.RespondDistributorVerification(ctx, distribActor, order.ID, &VerificationRequest{
		Response: models.VerificationDeclined,
		Notes:    "cannot serve this delivery window",
	})
	require.NoError(t, err)
	return out
}

func TestResetGuards(t *testing.T) {
	recovery, orders, _, _ := newRecoveryFixture(t)
	ctx := context.Background()
	order := suspendedOrder(t, orders)

	_, err := recovery.ResetVerification(ctx, opActor, order.ID, models.OrderStatusAwaitingPartnerVerif, "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = recovery.ResetVerification(ctx, adminActor, order.ID, models.OrderStatusUnderReview, "")
	assert.Equal(t, apperr.KindValidationFailed, apperr.KindOf(err))

	// Recovery applies only to suspended orders.
	active := draftWithItem(t, orders)
	_, err = recovery.ResetVerification(ctx, adminActor, active.ID, models.OrderStatusAwaitingPartnerVerif, "")
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))
}

func TestResetFullRestart(t *testing.T) {
	recovery, orders, st, nt := newRecoveryFixture(t)
	ctx := context.Background()
	order := suspendedOrder(t, orders)
	nt.reset()

	out, err := recovery.ResetVerification(ctx, adminActor, order.ID, models.OrderStatusAwaitingPartnerVerif, "client details corrected")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingPartnerVerif, out.Status)

	// Both responses are wiped; the whole gate runs again.
	assert.Nil(t, out.PartnerVerificationResponse)
	assert.Nil(t, out.PartnerVerificationAt)
	assert.Nil(t, out.PartnerVerificationBy)
	assert.Nil(t, out.DistributorVerificationResponse)
	assert.Nil(t, out.DistributorVerificationNotes)
	assert.Nil(t, out.PaymentReference)

	assert.NotEmpty(t, nt.sentTo("PTR-LON"))
	assert.Empty(t, nt.sentTo("DIST01"))

	timeline, err := st.ListActivity(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionAdminVerificationRst, timeline[0].Action)
	assert.Equal(t, string(models.OrderStatusVerificationSuspended), timeline[0].PreviousStatus)

	// The re-run gate works end to end.
	_, err = orders.RespondPartnerVerification(ctx, partnerActor, order.ID, &VerificationRequest{Response: models.VerificationVerified})
	assert.NoError(t, err)
}

func TestResetDistributorOnly(t *testing.T) {
	recovery, orders, _, nt := newRecoveryFixture(t)
	ctx := context.Background()
	order := suspendedOrder(t, orders)
	nt.reset()

	out, err := recovery.ResetVerification(ctx, adminActor, order.ID, models.OrderStatusAwaitingDistribVerif, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingDistribVerif, out.Status)

	// The partner's prior response stands.
	require.NotNil(t, out.PartnerVerificationResponse)
	assert.Equal(t, models.VerificationVerified, *out.PartnerVerificationResponse)
	assert.Nil(t, out.DistributorVerificationResponse)
	assert.Nil(t, out.DistributorVerificationAt)

	assert.NotEmpty(t, nt.sentTo("DIST01"))
	assert.Empty(t, nt.sentTo("PTR-LON"))

	_, err = orders.RespondDistributorVerification(ctx, distribActor, order.ID, &VerificationRequest{Response: models.VerificationVerified})
	assert.NoError(t, err)
}

func TestResetBypassOpensPaymentGate(t *testing.T) {
	recovery, orders, _, nt := newRecoveryFixture(t)
	ctx := context.Background()
	order := suspendedOrder(t, orders)
	nt.reset()

	out, err := recovery.ResetVerification(ctx, adminActor, order.ID, models.OrderStatusAwaitingClientPayment, "approved by account director")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingClientPayment, out.Status)

	// The synthesized verification is attributable to the admin and marked
	// as a bypass, so history can tell it from a real response.
	require.NotNil(t, out.DistributorVerificationResponse)
	assert.Equal(t, models.VerificationVerified, *out.DistributorVerificationResponse)
	assert.Equal(t, adminActor.ID, *out.DistributorVerificationBy)
	assert.Equal(t, BypassNote, *out.DistributorVerificationNotes)

	require.NotNil(t, out.PaymentReference)
	assert.Equal(t, "DIST01-"+out.OrderNumber, *out.PaymentReference)

	partnerNotes := nt.sentTo("PTR-LON")
	require.NotEmpty(t, partnerNotes)
	assert.Equal(t, *out.PaymentReference, partnerNotes[0].Metadata["payment_reference"])

	// The payment gate runs from here as usual.
	stepped, err := orders.RecordPaymentStep(ctx, opActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusClientPaid, stepped.Status)
}

func TestResetKeepsExistingPaymentReference(t *testing.T) {
	recovery, orders, st, _ := newRecoveryFixture(t)
	ctx := context.Background()

	// Suspend an order that already passed the payment gate once: distributor
	// verified, then an operator parked it again via a fresh decline cycle.
	order := suspendedOrder(t, orders)
	ref := "DIST01-" + order.OrderNumber
	st.mu.Lock()
	st.orders[order.ID].PaymentReference = &ref
	st.mu.Unlock()

	out, err := recovery.ResetVerification(ctx, adminActor, order.ID, models.OrderStatusAwaitingClientPayment, "")
	require.NoError(t, err)

	// Issued once, never recomputed.
	require.NotNil(t, out.PaymentReference)
	assert.Equal(t, ref, *out.PaymentReference)
}
