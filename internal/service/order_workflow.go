package service

import (
	"context"
	"fmt"
	"time"

	"vintrade-orders/internal/apperr"
	"vintrade-orders/internal/models"
	"vintrade-orders/internal/store"
	"vintrade-orders/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OperatorsOrgID is the pseudo-org resolving to platform staff in
// partner_members.
const OperatorsOrgID = "operations"

// OrderWorkflowService drives the macro order lifecycle: submission, review,
// the sequential verification gate, the payment gate, fulfillment, and
// cancellation.
type OrderWorkflowService struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewOrderWorkflowService creates the order workflow service.
func NewOrderWorkflowService(store Store, notifier Notifier) *OrderWorkflowService {
	return &OrderWorkflowService{
		store:    store,
		notifier: notifier,
		logger:   util.GetLogger(),
	}
}

// CreateDraftRequest creates a new draft order for a partner's client.
type CreateDraftRequest struct {
	PartnerID     string          `json:"partner_id" binding:"required"`
	ClientID      string          `json:"client_id" binding:"required"`
	TotalCases    int             `json:"total_cases" binding:"min=0"`
	TotalValueGBP decimal.Decimal `json:"total_value_gbp"`
	TotalValueEUR decimal.Decimal `json:"total_value_eur"`
}

// AddLineItemRequest adds one product entry to a draft order.
type AddLineItemRequest struct {
	ProductName string `json:"product_name" binding:"required"`
	Vintage     string `json:"vintage"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// VerificationRequest is a partner's or distributor's verification response.
type VerificationRequest struct {
	Response string `json:"response" binding:"required"`
	Notes    string `json:"notes"`
}

// CreateDraft creates a draft order owned by the partner.
func (s *OrderWorkflowService) CreateDraft(ctx context.Context, actor models.Actor, req *CreateDraftRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.CreateDraft")
	defer span.End()

	if actor.Role == models.RolePartner && actor.OrgID != req.PartnerID {
		return nil, apperr.Forbidden("partner %s cannot create orders for %s", actor.OrgID, req.PartnerID)
	}
	if !actor.Operator() && actor.Role != models.RolePartner {
		return nil, apperr.Forbidden("role %s cannot create orders", actor.Role)
	}

	order := &models.Order{
		PartnerID:     req.PartnerID,
		ClientID:      req.ClientID,
		Status:        models.OrderStatusDraft,
		TotalCases:    req.TotalCases,
		TotalValueGBP: req.TotalValueGBP,
		TotalValueEUR: req.TotalValueEUR,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, apperr.Wrap(err, apperr.KindUnknown, "failed to create order")
	}

	entry := &models.ActivityLogEntry{
		OrderID:        order.ID,
		ActorID:        actor.ID,
		Action:         models.ActionOrderCreated,
		PreviousStatus: "",
		NewStatus:      string(models.OrderStatusDraft),
	}
	if err := s.store.AppendActivity(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info("Draft order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("partner_id", order.PartnerID))
	return order, nil
}

// AddLineItem adds a line item while the partner can still edit the order.
func (s *OrderWorkflowService) AddLineItem(ctx context.Context, actor models.Actor, orderID int64, req *AddLineItemRequest) (*models.OrderLineItem, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.AddLineItem")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireOrderPartner(actor, order); err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusDraft && order.Status != models.OrderStatusRevisionRequested {
		return nil, apperr.PreconditionFailed("order %s is %s; items can only be added while draft or revision_requested", order.OrderNumber, order.Status)
	}
	if req.ProductName == "" {
		return nil, apperr.ValidationFailed("product name is required")
	}
	if req.Quantity < 1 {
		return nil, apperr.ValidationFailed("quantity must be at least 1")
	}

	item := &models.OrderLineItem{
		OrderID:     order.ID,
		ProductName: req.ProductName,
		Vintage:     req.Vintage,
		Quantity:    req.Quantity,
		StockStatus: models.StockStatusPending,
	}
	if err := s.store.CreateLineItem(ctx, item); err != nil {
		return nil, apperr.Wrap(err, apperr.KindUnknown, "failed to create line item")
	}

	entry := &models.ActivityLogEntry{
		OrderID:        order.ID,
		ActorID:        actor.ID,
		Action:         models.ActionItemAdded,
		PreviousStatus: string(order.Status),
		NewStatus:      string(order.Status),
		Metadata:       map[string]any{"item_id": item.ID, "product_name": item.ProductName},
	}
	if err := s.store.AppendActivity(ctx, entry); err != nil {
		return nil, err
	}
	return item, nil
}

// Submit moves a draft order into the review queue. Requires at least one
// line item; locks the partner out of further free editing.
func (s *OrderWorkflowService) Submit(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.Submit")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireOrderPartner(actor, order); err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusDraft {
		return nil, apperr.PreconditionFailed("order %s is %s, not draft", order.OrderNumber, order.Status)
	}

	items, err := s.store.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.ValidationFailed("order %s has no line items", order.OrderNumber)
	}

	order.SubmittedAt = timePtr(time.Now())
	if err := s.transition(ctx, order, models.OrderStatusSubmitted, actor, models.ActionOrderSubmitted, nil, nil); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, &models.Notification{
		Type:           models.NotificationTypeOrderStatus,
		Title:          "Order submitted for review",
		Message:        fmt.Sprintf("Order %s from partner %s is awaiting review", order.OrderNumber, order.PartnerID),
		RecipientOrgID: OperatorsOrgID,
		EntityType:     "order",
		EntityID:       order.ID,
	})
	return order, nil
}

// StartReview pulls a submitted or revised order into review.
func (s *OrderWorkflowService) StartReview(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.StartReview")
	defer span.End()

	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusSubmitted && order.Status != models.OrderStatusRevisionRequested {
		return nil, apperr.PreconditionFailed("order %s is %s; review starts from submitted or revision_requested", order.OrderNumber, order.Status)
	}

	if err := s.transition(ctx, order, models.OrderStatusUnderReview, actor, models.ActionReviewStarted, nil, nil); err != nil {
		return nil, err
	}
	return order, nil
}

// Approve clears the order for the verification gate.
func (s *OrderWorkflowService) Approve(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.Approve")
	defer span.End()

	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusUnderReview {
		return nil, apperr.PreconditionFailed("order %s is %s, not under_review", order.OrderNumber, order.Status)
	}

	order.ApprovedAt = timePtr(time.Now())
	if err := s.transition(ctx, order, models.OrderStatusCCApproved, actor, models.ActionOrderApproved, nil, nil); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, &models.Notification{
		Type:           models.NotificationTypeOrderStatus,
		Title:          "Order approved",
		Message:        fmt.Sprintf("Order %s has been approved and will be assigned to a distributor", order.OrderNumber),
		RecipientOrgID: order.PartnerID,
		EntityType:     "order",
		EntityID:       order.ID,
	})
	return order, nil
}

// RequestRevision loops the order back to the partner with a mandatory reason.
func (s *OrderWorkflowService) RequestRevision(ctx context.Context, actor models.Actor, orderID int64, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.RequestRevision")
	defer span.End()

	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, apperr.ValidationFailed("a reason is required to request a revision")
	}
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusUnderReview {
		return nil, apperr.PreconditionFailed("order %s is %s, not under_review", order.OrderNumber, order.Status)
	}

	if err := s.transition(ctx, order, models.OrderStatusRevisionRequested, actor, models.ActionRevisionRequested, &reason, nil); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, &models.Notification{
		Type:           models.NotificationTypeRevisionRequest,
		Title:          "Revision requested",
		Message:        fmt.Sprintf("Order %s needs revision: %s", order.OrderNumber, reason),
		RecipientOrgID: order.PartnerID,
		EntityType:     "order",
		EntityID:       order.ID,
		Metadata:       map[string]any{"reason": reason},
	})
	return order, nil
}

// AssignDistributor hands the approved order to a distributor and opens the
// verification gate with the partner. Recording the distributor atomically
// with this transition is what keeps distributor_id non-null for every status
// past cc_approved.
func (s *OrderWorkflowService) AssignDistributor(ctx context.Context, actor models.Actor, orderID int64, distributorID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.AssignDistributor")
	defer span.End()

	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	if distributorID == "" {
		return nil, apperr.ValidationFailed("distributor id is required")
	}
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusCCApproved {
		return nil, apperr.PreconditionFailed("order %s is %s, not cc_approved", order.OrderNumber, order.Status)
	}

	order.DistributorID = &distributorID
	order.DistributorAssignedAt = timePtr(time.Now())
	meta := map[string]any{"distributor_id": distributorID}
	if err := s.transition(ctx, order, models.OrderStatusAwaitingPartnerVerif, actor, models.ActionDistributorAssigned, nil, meta); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, &models.Notification{
		Type:           models.NotificationTypeVerification,
		Title:          "Verification required",
		Message:        fmt.Sprintf("Order %s is awaiting your verification", order.OrderNumber),
		RecipientOrgID: order.PartnerID,
		EntityType:     "order",
		EntityID:       order.ID,
	})
	return order, nil
}

// RespondPartnerVerification records the wine partner's verification
// response. Verified hands the order to the distributor for its own
// verification; declined parks it in verification_suspended with all prior
// data intact.
func (s *OrderWorkflowService) RespondPartnerVerification(ctx context.Context, actor models.Actor, orderID int64, req *VerificationRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.RespondPartnerVerification")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RolePartner || actor.OrgID != order.PartnerID {
		return nil, apperr.Forbidden("only members of partner %s may verify order %s", order.PartnerID, order.OrderNumber)
	}
	if order.Status != models.OrderStatusAwaitingPartnerVerif {
		return nil, apperr.PreconditionFailed("order %s is %s, not awaiting_partner_verification", order.OrderNumber, order.Status)
	}
	if err := validateVerification(req); err != nil {
		return nil, err
	}

	now := time.Now()
	order.PartnerVerificationResponse = &req.Response
	order.PartnerVerificationAt = &now
	order.PartnerVerificationBy = &actor.ID
	order.PartnerVerificationNotes = notesPtr(req.Notes)

	if req.Response == models.VerificationDeclined {
		util.VerificationDeclinesTotal.WithLabelValues("partner").Inc()
		if err := s.transition(ctx, order, models.OrderStatusVerificationSuspended, actor, models.ActionPartnerVerification, notesPtr(req.Notes), nil); err != nil {
			return nil, err
		}
		s.notifier.Notify(ctx, &models.Notification{
			Type:           models.NotificationTypeOrderStatus,
			Title:          "Partner declined verification",
			Message:        fmt.Sprintf("Order %s was declined by the partner: %s", order.OrderNumber, req.Notes),
			RecipientOrgID: OperatorsOrgID,
			EntityType:     "order",
			EntityID:       order.ID,
		})
		return order, nil
	}

	if err := s.transition(ctx, order, models.OrderStatusAwaitingDistribVerif, actor, models.ActionPartnerVerification, notesPtr(req.Notes), nil); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, &models.Notification{
		Type:           models.NotificationTypeVerification,
		Title:          "Verification required",
		Message:        fmt.Sprintf("Order %s is awaiting your verification", order.OrderNumber),
		RecipientOrgID: derefStr(order.DistributorID),
		EntityType:     "order",
		EntityID:       order.ID,
	})
	return order, nil
}

// RespondDistributorVerification records the distributor's verification
// response. Verified opens the payment gate and issues the payment reference;
// declined parks the order in verification_suspended.
func (s *OrderWorkflowService) RespondDistributorVerification(ctx context.Context, actor models.Actor, orderID int64, req *VerificationRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.RespondDistributorVerification")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleDistributor || order.DistributorID == nil || actor.OrgID != *order.DistributorID {
		return nil, apperr.Forbidden("only members of the assigned distributor may verify order %s", order.OrderNumber)
	}
	if order.Status != models.OrderStatusAwaitingDistribVerif {
		return nil, apperr.PreconditionFailed("order %s is %s, not awaiting_distributor_verification", order.OrderNumber, order.Status)
	}
	if err := validateVerification(req); err != nil {
		return nil, err
	}

	now := time.Now()
	order.DistributorVerificationResponse = &req.Response
	order.DistributorVerificationAt = &now
	order.DistributorVerificationBy = &actor.ID
	order.DistributorVerificationNotes = notesPtr(req.Notes)

	if req.Response == models.VerificationDeclined {
		util.VerificationDeclinesTotal.WithLabelValues("distributor").Inc()
		if err := s.transition(ctx, order, models.OrderStatusVerificationSuspended, actor, models.ActionDistributorVerif, notesPtr(req.Notes), nil); err != nil {
			return nil, err
		}
		s.notifier.Notify(ctx, &models.Notification{
			Type:           models.NotificationTypeOrderStatus,
			Title:          "Distributor declined verification",
			Message:        fmt.Sprintf("Order %s was declined by the distributor: %s", order.OrderNumber, req.Notes),
			RecipientOrgID: order.PartnerID,
			EntityType:     "order",
			EntityID:       order.ID,
		})
		return order, nil
	}

	ensurePaymentReference(order)
	if err := s.transition(ctx, order, models.OrderStatusAwaitingClientPayment, actor, models.ActionDistributorVerif, notesPtr(req.Notes), nil); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, &models.Notification{
		Type:           models.NotificationTypePaymentReference,
		Title:          "Client payment due",
		Message:        fmt.Sprintf("Order %s is verified; payment reference %s", order.OrderNumber, derefStr(order.PaymentReference)),
		RecipientOrgID: order.PartnerID,
		EntityType:     "order",
		EntityID:       order.ID,
		Metadata:       map[string]any{"payment_reference": derefStr(order.PaymentReference)},
	})
	return order, nil
}

// RecordPaymentStep advances the order one step along the payment gate.
func (s *OrderWorkflowService) RecordPaymentStep(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.RecordPaymentStep")
	defer span.End()

	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	next, ok := models.NextPaymentStatus(order.Status)
	if !ok {
		return nil, apperr.PreconditionFailed("order %s is %s; no payment step to record", order.OrderNumber, order.Status)
	}

	if err := s.transition(ctx, order, next, actor, models.ActionPaymentStep, nil, nil); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, &models.Notification{
		Type:           models.NotificationTypeOrderStatus,
		Title:          "Payment step recorded",
		Message:        fmt.Sprintf("Order %s is now %s", order.OrderNumber, order.Status),
		RecipientOrgID: order.PartnerID,
		EntityType:     "order",
		EntityID:       order.ID,
	})
	if next == models.OrderStatusAwaitingDistribPay {
		s.notifier.Notify(ctx, &models.Notification{
			Type:           models.NotificationTypeOrderStatus,
			Title:          "Payment due",
			Message:        fmt.Sprintf("Order %s is awaiting your payment", order.OrderNumber),
			RecipientOrgID: derefStr(order.DistributorID),
			EntityType:     "order",
			EntityID:       order.ID,
		})
	}
	return order, nil
}

// AdvanceFulfillment advances the order one step along the fulfillment chain.
func (s *OrderWorkflowService) AdvanceFulfillment(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.AdvanceFulfillment")
	defer span.End()

	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	next, ok := models.NextFulfillmentStatus(order.Status)
	if !ok {
		return nil, apperr.PreconditionFailed("order %s is %s; no fulfillment step to advance", order.OrderNumber, order.Status)
	}

	if next == models.OrderStatusDelivered {
		order.DeliveredAt = timePtr(time.Now())
	}
	if err := s.transition(ctx, order, next, actor, models.ActionFulfillmentStep, nil, nil); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, &models.Notification{
		Type:           models.NotificationTypeOrderStatus,
		Title:          "Fulfillment update",
		Message:        fmt.Sprintf("Order %s is now %s", order.OrderNumber, order.Status),
		RecipientOrgID: order.PartnerID,
		EntityType:     "order",
		EntityID:       order.ID,
	})
	if next == models.OrderStatusWithDistributor {
		s.notifier.Notify(ctx, &models.Notification{
			Type:           models.NotificationTypeOrderStatus,
			Title:          "Order stock received",
			Message:        fmt.Sprintf("Order %s stock is now with you for delivery", order.OrderNumber),
			RecipientOrgID: derefStr(order.DistributorID),
			EntityType:     "order",
			EntityID:       order.ID,
		})
	}
	return order, nil
}

// Cancel terminates the order. Allowed from any non-terminal state; the
// owning partner may only cancel before approval.
func (s *OrderWorkflowService) Cancel(ctx context.Context, actor models.Actor, orderID int64, reason string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderWorkflow.Cancel")
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.Operator():
	case actor.Role == models.RolePartner && actor.OrgID == order.PartnerID:
		if order.ApprovedAt != nil {
			return nil, apperr.Forbidden("partner cannot cancel order %s after approval", order.OrderNumber)
		}
	default:
		return nil, apperr.Forbidden("role %s cannot cancel order %s", actor.Role, order.OrderNumber)
	}
	if !order.Status.Cancellable() {
		return nil, apperr.PreconditionFailed("order %s is %s and cannot be cancelled", order.OrderNumber, order.Status)
	}

	order.CancelledAt = timePtr(time.Now())
	if err := s.apply(ctx, order, order.Status, models.OrderStatusCancelled, actor, models.ActionOrderCancelled, notesPtr(reason), nil); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, &models.Notification{
		Type:           models.NotificationTypeOrderStatus,
		Title:          "Order cancelled",
		Message:        fmt.Sprintf("Order %s has been cancelled", order.OrderNumber),
		RecipientOrgID: order.PartnerID,
		EntityType:     "order",
		EntityID:       order.ID,
	})
	if order.DistributorID != nil {
		s.notifier.Notify(ctx, &models.Notification{
			Type:           models.NotificationTypeOrderStatus,
			Title:          "Order cancelled",
			Message:        fmt.Sprintf("Order %s has been cancelled", order.OrderNumber),
			RecipientOrgID: *order.DistributorID,
			EntityType:     "order",
			EntityID:       order.ID,
		})
	}
	return order, nil
}

// GetOrder returns an order and its items to an actor entitled to see it.
func (s *OrderWorkflowService) GetOrder(ctx context.Context, actor models.Actor, orderID int64) (*models.Order, []models.OrderLineItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireOrderVisible(actor, order); err != nil {
		return nil, nil, err
	}
	items, err := s.store.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

// ListOrders returns the orders visible to the actor, newest first.
func (s *OrderWorkflowService) ListOrders(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	switch actor.Role {
	case models.RoleAdmin, models.RoleOperator:
		return s.store.ListOrders(ctx, store.OrderScope{})
	case models.RolePartner:
		return s.store.ListOrders(ctx, store.OrderScope{PartnerID: actor.OrgID})
	case models.RoleDistributor:
		return s.store.ListOrders(ctx, store.OrderScope{DistributorID: actor.OrgID})
	default:
		return nil, apperr.Forbidden("role %s cannot list orders", actor.Role)
	}
}

// GetTimeline returns the order's audit trail, newest first.
func (s *OrderWorkflowService) GetTimeline(ctx context.Context, actor models.Actor, orderID int64) ([]models.ActivityLogEntry, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireOrderVisible(actor, order); err != nil {
		return nil, err
	}
	return s.store.ListActivity(ctx, orderID)
}

// transition applies a guard-table transition. Cancellation goes through
// apply directly since it is legal from any non-terminal state.
func (s *OrderWorkflowService) transition(ctx context.Context, order *models.Order, to models.OrderStatus, actor models.Actor, action string, notes *string, metadata map[string]any) error {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return apperr.PreconditionFailed("order %s cannot move from %s to %s", order.OrderNumber, from, to)
	}
	return s.apply(ctx, order, from, to, actor, action, notes, metadata)
}

func (s *OrderWorkflowService) apply(ctx context.Context, order *models.Order, from, to models.OrderStatus, actor models.Actor, action string, notes *string, metadata map[string]any) error {
	start := time.Now()
	order.Status = to

	entry := &models.ActivityLogEntry{
		OrderID:        order.ID,
		ActorID:        actor.ID,
		Action:         action,
		PreviousStatus: string(from),
		NewStatus:      string(to),
		Notes:          notes,
		Metadata:       metadata,
	}
	if err := s.store.TransitionOrder(ctx, order, from, entry); err != nil {
		order.Status = from
		if apperr.IsKind(err, apperr.KindConflict) {
			util.TransitionConflictsTotal.Inc()
		}
		return err
	}

	util.OrderTransitionsTotal.WithLabelValues(string(to)).Inc()
	util.TransitionLatency.Observe(time.Since(start).Seconds())
	s.logger.Info("Order transitioned",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor.ID))
	return nil
}

func validateVerification(req *VerificationRequest) error {
	if req.Response != models.VerificationVerified && req.Response != models.VerificationDeclined {
		return apperr.ValidationFailed("response must be %q or %q", models.VerificationVerified, models.VerificationDeclined)
	}
	if req.Response == models.VerificationDeclined && req.Notes == "" {
		return apperr.ValidationFailed("a reason is required when declining verification")
	}
	return nil
}

// ensurePaymentReference issues the payment reference on first entry to the
// payment gate. Idempotent: an already-issued reference is never recomputed.
func ensurePaymentReference(order *models.Order) {
	if order.PaymentReference != nil || order.DistributorID == nil {
		return
	}
	ref := fmt.Sprintf("%s-%s", *order.DistributorID, order.OrderNumber)
	order.PaymentReference = &ref
}

func requireOperator(actor models.Actor) error {
	if !actor.Operator() {
		return apperr.Forbidden("operation requires an operator, got role %s", actor.Role)
	}
	return nil
}

func requireAdmin(actor models.Actor) error {
	if actor.Role != models.RoleAdmin {
		return apperr.Forbidden("operation requires an admin, got role %s", actor.Role)
	}
	return nil
}

// requireOrderPartner admits operators and members of the owning partner.
func requireOrderPartner(actor models.Actor, order *models.Order) error {
	if actor.Operator() {
		return nil
	}
	if actor.Role == models.RolePartner && actor.OrgID == order.PartnerID {
		return nil
	}
	return apperr.Forbidden("actor %s is not a member of partner %s", actor.ID, order.PartnerID)
}

// requireOrderDistributor admits operators and members of the assigned
// distributor.
func requireOrderDistributor(actor models.Actor, order *models.Order) error {
	if actor.Operator() {
		return nil
	}
	if actor.Role == models.RoleDistributor && order.DistributorID != nil && actor.OrgID == *order.DistributorID {
		return nil
	}
	return apperr.Forbidden("actor %s is not a member of the assigned distributor", actor.ID)
}

func requireOrderVisible(actor models.Actor, order *models.Order) error {
	if actor.Operator() {
		return nil
	}
	if actor.Role == models.RolePartner && actor.OrgID == order.PartnerID {
		return nil
	}
	if actor.Role == models.RoleDistributor && order.DistributorID != nil && actor.OrgID == *order.DistributorID {
		return nil
	}
	return apperr.Forbidden("actor %s cannot view order %s", actor.ID, order.OrderNumber)
}

func timePtr(t time.Time) *time.Time { return &t }

func notesPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
