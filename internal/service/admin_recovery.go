package service

import (
	"context"
	"fmt"
	"time"

	"vintrade-orders/internal/apperr"
	"vintrade-orders/internal/models"
	"vintrade-orders/internal/util"

	"go.uber.org/zap"
)

// AdminRecoveryService re-injects orders parked in verification_suspended
// back into the lifecycle. It operates on no other status; every other
// precondition fails closed.
type AdminRecoveryService struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewAdminRecoveryService creates the recovery controller.
func NewAdminRecoveryService(store Store, notifier Notifier) *AdminRecoveryService {
	return &AdminRecoveryService{
		store:    store,
		notifier: notifier,
		logger:   util.GetLogger(),
	}
}

// BypassNote is the fixed audit note attached to a distributor verification
// synthesized by an admin bypass, so history can tell it from a real
// distributor response.
const BypassNote = "Verification bypassed by admin"

// recoveryPlan describes one recovery target: which verification fields are
// cleared, whether a verification is synthesized, and who must act next.
// New targets are added here, not as conditionals.
type recoveryPlan struct {
	clearPartner      bool
	clearDistributor  bool
	synthesizeDistrib bool
	issuePaymentRef   bool
	notifyPartner     bool
	notifyDistributor bool
}

var recoveryPlans = map[models.OrderStatus]recoveryPlan{
	// Full restart: both parties re-verify.
	models.OrderStatusAwaitingPartnerVerif: {
		clearPartner:     true,
		clearDistributor: true,
		notifyPartner:    true,
	},
	// Partner's prior response stands; only the distributor re-verifies.
	models.OrderStatusAwaitingDistribVerif: {
		clearDistributor:  true,
		notifyDistributor: true,
	},
	// Bypass verification entirely and open the payment gate.
	models.OrderStatusAwaitingClientPayment: {
		synthesizeDistrib: true,
		issuePaymentRef:   true,
		notifyPartner:     true,
	},
}

// ResetVerification moves a suspended order to the chosen downstream target.
func (s *AdminRecoveryService) ResetVerification(ctx context.Context, actor models.Actor, orderID int64, target models.OrderStatus, notes string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "AdminRecovery.ResetVerification")
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	plan, ok := recoveryPlans[target]
	if !ok {
		return nil, apperr.ValidationFailed("%s is not a recovery target", target)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusVerificationSuspended {
		return nil, apperr.PreconditionFailed("order %s is %s; recovery applies only to verification_suspended", order.OrderNumber, order.Status)
	}
	if order.DistributorID == nil {
		return nil, apperr.PreconditionFailed("order %s has no distributor assigned", order.OrderNumber)
	}

	from := order.Status
	if plan.clearPartner {
		order.PartnerVerificationResponse = nil
		order.PartnerVerificationAt = nil
		order.PartnerVerificationBy = nil
		order.PartnerVerificationNotes = nil
	}
	if plan.clearDistributor {
		order.DistributorVerificationResponse = nil
		order.DistributorVerificationAt = nil
		order.DistributorVerificationBy = nil
		order.DistributorVerificationNotes = nil
	}
	if plan.synthesizeDistrib {
		now := time.Now()
		response := models.VerificationVerified
		note := BypassNote
		order.DistributorVerificationResponse = &response
		order.DistributorVerificationAt = &now
		order.DistributorVerificationBy = &actor.ID
		order.DistributorVerificationNotes = &note
	}
	if plan.issuePaymentRef {
		ensurePaymentReference(order)
	}

	order.Status = target
	entry := &models.ActivityLogEntry{
		OrderID:        order.ID,
		ActorID:        actor.ID,
		Action:         models.ActionAdminVerificationRst,
		PreviousStatus: string(from),
		NewStatus:      string(target),
		Notes:          notesPtr(notes),
		Metadata:       map[string]any{"target": string(target)},
	}
	if err := s.store.TransitionOrder(ctx, order, from, entry); err != nil {
		order.Status = from
		if apperr.IsKind(err, apperr.KindConflict) {
			util.TransitionConflictsTotal.Inc()
		}
		return nil, err
	}

	util.AdminResetsTotal.WithLabelValues(string(target)).Inc()
	util.OrderTransitionsTotal.WithLabelValues(string(target)).Inc()
	s.logger.Info("Suspended order recovered",
		zap.Int64("order_id", order.ID),
		zap.String("target", string(target)),
		zap.String("admin", actor.ID))

	if plan.notifyPartner {
		s.notifier.Notify(ctx, &models.Notification{
			Type:           models.NotificationTypeAdminReset,
			Title:          "Order verification reset",
			Message:        fmt.Sprintf("Order %s has been moved to %s by an administrator", order.OrderNumber, target),
			RecipientOrgID: order.PartnerID,
			EntityType:     "order",
			EntityID:       order.ID,
			Metadata:       recoveryNotifyMetadata(order, plan),
		})
	}
	if plan.notifyDistributor {
		s.notifier.Notify(ctx, &models.Notification{
			Type:           models.NotificationTypeAdminReset,
			Title:          "Verification required",
			Message:        fmt.Sprintf("Order %s is awaiting your verification again", order.OrderNumber),
			RecipientOrgID: *order.DistributorID,
			EntityType:     "order",
			EntityID:       order.ID,
		})
	}
	return order, nil
}

func recoveryNotifyMetadata(order *models.Order, plan recoveryPlan) map[string]any {
	if !plan.issuePaymentRef || order.PaymentReference == nil {
		return nil
	}
	return map[string]any{"payment_reference": *order.PaymentReference}
}
