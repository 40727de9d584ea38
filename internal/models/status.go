package models

// OrderStatus is the macro lifecycle status of an order. It gates visibility,
// payment, and verification across the operator, partner, and distributor.
type OrderStatus string

const (
	OrderStatusDraft                 OrderStatus = "draft"
	OrderStatusSubmitted             OrderStatus = "submitted"
	OrderStatusUnderReview           OrderStatus = "under_review"
	OrderStatusRevisionRequested     OrderStatus = "revision_requested"
	OrderStatusCCApproved            OrderStatus = "cc_approved"
	OrderStatusAwaitingPartnerVerif  OrderStatus = "awaiting_partner_verification"
	OrderStatusAwaitingDistribVerif  OrderStatus = "awaiting_distributor_verification"
	OrderStatusVerificationSuspended OrderStatus = "verification_suspended"
	OrderStatusAwaitingClientPayment OrderStatus = "awaiting_client_payment"
	OrderStatusClientPaid            OrderStatus = "client_paid"
	OrderStatusAwaitingDistribPay    OrderStatus = "awaiting_distributor_payment"
	OrderStatusDistributorPaid       OrderStatus = "distributor_paid"
	OrderStatusAwaitingPartnerPay    OrderStatus = "awaiting_partner_payment"
	OrderStatusPartnerPaid           OrderStatus = "partner_paid"
	OrderStatusStockInTransit        OrderStatus = "stock_in_transit"
	OrderStatusWithDistributor       OrderStatus = "with_distributor"
	OrderStatusSchedulingDelivery    OrderStatus = "scheduling_delivery"
	OrderStatusDeliveryScheduled     OrderStatus = "delivery_scheduled"
	OrderStatusOutForDelivery        OrderStatus = "out_for_delivery"
	OrderStatusDelivered             OrderStatus = "delivered"
	OrderStatusCancelled             OrderStatus = "cancelled"
)

// orderTransitions is the guard table for the macro state machine.
// Cancellation is handled separately (any non-terminal state except
// delivered), so "cancelled" does not appear as a target here.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:                 {OrderStatusSubmitted},
	OrderStatusSubmitted:             {OrderStatusUnderReview},
	OrderStatusUnderReview:           {OrderStatusCCApproved, OrderStatusRevisionRequested},
	OrderStatusRevisionRequested:     {OrderStatusUnderReview},
	OrderStatusCCApproved:            {OrderStatusAwaitingPartnerVerif},
	OrderStatusAwaitingPartnerVerif:  {OrderStatusAwaitingDistribVerif, OrderStatusVerificationSuspended},
	OrderStatusAwaitingDistribVerif:  {OrderStatusAwaitingClientPayment, OrderStatusVerificationSuspended},
	OrderStatusAwaitingClientPayment: {OrderStatusClientPaid},
	OrderStatusClientPaid:            {OrderStatusAwaitingDistribPay},
	OrderStatusAwaitingDistribPay:    {OrderStatusDistributorPaid},
	OrderStatusDistributorPaid:       {OrderStatusAwaitingPartnerPay},
	OrderStatusAwaitingPartnerPay:    {OrderStatusPartnerPaid},
	OrderStatusPartnerPaid:           {OrderStatusStockInTransit},
	OrderStatusStockInTransit:        {OrderStatusWithDistributor},
	OrderStatusWithDistributor:       {OrderStatusSchedulingDelivery},
	OrderStatusSchedulingDelivery:    {OrderStatusDeliveryScheduled},
	OrderStatusDeliveryScheduled:     {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery:        {OrderStatusDelivered},
}

// CanTransitionTo reports whether target is a legal next status.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Cancellable reports whether the order may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return !s.Terminal()
}

// paymentSequence is the payment gate, in order. Entry to the first element
// is where the payment reference is issued.
var paymentSequence = []OrderStatus{
	OrderStatusAwaitingClientPayment,
	OrderStatusClientPaid,
	OrderStatusAwaitingDistribPay,
	OrderStatusDistributorPaid,
	OrderStatusAwaitingPartnerPay,
	OrderStatusPartnerPaid,
}

// NextPaymentStatus returns the next payment-gate status after s, or false if
// s is not an intermediate payment-gate status.
func NextPaymentStatus(s OrderStatus) (OrderStatus, bool) {
	for i, st := range paymentSequence {
		if st == s && i < len(paymentSequence)-1 {
			return paymentSequence[i+1], true
		}
	}
	return "", false
}

var fulfillmentSequence = []OrderStatus{
	OrderStatusPartnerPaid,
	OrderStatusStockInTransit,
	OrderStatusWithDistributor,
	OrderStatusSchedulingDelivery,
	OrderStatusDeliveryScheduled,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
}

// NextFulfillmentStatus returns the next fulfillment status after s, or false
// if s is not an intermediate fulfillment status.
func NextFulfillmentStatus(s OrderStatus) (OrderStatus, bool) {
	for i, st := range fulfillmentSequence {
		if st == s && i < len(fulfillmentSequence)-1 {
			return fulfillmentSequence[i+1], true
		}
	}
	return "", false
}

// PaymentGateOpen reports whether s is only reachable after the payment gate
// opened, i.e. a payment reference must exist.
func PaymentGateOpen(s OrderStatus) bool {
	if s == OrderStatusPartnerPaid {
		return true
	}
	if _, ok := NextPaymentStatus(s); ok {
		return true
	}
	for _, st := range fulfillmentSequence[1:] {
		if st == s {
			return true
		}
	}
	return false
}

// StockStatus is the physical custody/location state of one line item,
// strictly ordered and independent of the parent order's status.
type StockStatus string

const (
	StockStatusPending            StockStatus = "pending"
	StockStatusConfirmed          StockStatus = "confirmed"
	StockStatusInTransitToCC      StockStatus = "in_transit_to_cc"
	StockStatusAtCCBonded         StockStatus = "at_cc_bonded"
	StockStatusAtCCReady          StockStatus = "at_cc_ready_for_dispatch"
	StockStatusInTransitToDistrib StockStatus = "in_transit_to_distributor"
	StockStatusAtDistributor      StockStatus = "at_distributor"
	StockStatusDeliveredToClient  StockStatus = "delivered"
)

var stockOrder = map[StockStatus]int{
	StockStatusPending:            0,
	StockStatusConfirmed:          1,
	StockStatusInTransitToCC:      2,
	StockStatusAtCCBonded:         3,
	StockStatusAtCCReady:          4,
	StockStatusInTransitToDistrib: 5,
	StockStatusAtDistributor:      6,
	StockStatusDeliveredToClient:  7,
}

// Valid reports whether s is a known stock status.
func (s StockStatus) Valid() bool {
	_, ok := stockOrder[s]
	return ok
}

// Before reports whether s precedes other in the stock flow.
func (s StockStatus) Before(other StockStatus) bool {
	return stockOrder[s] < stockOrder[other]
}

// StockNotifiesDistributor lists the destination statuses on which the
// distributor is notified; the partner is notified on every change.
var StockNotifiesDistributor = map[StockStatus]bool{
	StockStatusAtCCBonded:         true,
	StockStatusInTransitToDistrib: true,
	StockStatusAtDistributor:      true,
}

// ReceiptConfirmable lists the statuses from which the distributor may
// confirm receipt, moving the item to at_distributor.
var ReceiptConfirmable = map[StockStatus]bool{
	StockStatusAtCCBonded:         true,
	StockStatusInTransitToDistrib: true,
}
