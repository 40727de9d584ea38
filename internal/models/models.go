package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies the kind of actor invoking an operation.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleOperator    Role = "operator"
	RolePartner     Role = "partner"
	RoleDistributor Role = "distributor"
)

// Actor is the authenticated caller of an operation. OrgID is the partner or
// distributor code the user belongs to; empty for platform staff.
type Actor struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	OrgID string `json:"org_id,omitempty"`
}

// Operator reports whether the actor is platform staff (admin or operator).
func (a Actor) Operator() bool {
	return a.Role == RoleAdmin || a.Role == RoleOperator
}

// Verification responses recorded for partner/distributor verification.
const (
	VerificationVerified = "verified"
	VerificationDeclined = "declined"
)

// Order is a private client order brokered through a wine partner and
// fulfilled by a distributor.
type Order struct {
	ID          int64       `db:"id" json:"id"`
	OrderNumber string      `db:"order_number" json:"order_number"`
	PartnerID   string      `db:"partner_id" json:"partner_id"`
	ClientID    string      `db:"client_id" json:"client_id"`
	Status      OrderStatus `db:"status" json:"status"`

	TotalCases    int             `db:"total_cases" json:"total_cases"`
	TotalValueGBP decimal.Decimal `db:"total_value_gbp" json:"total_value_gbp"`
	TotalValueEUR decimal.Decimal `db:"total_value_eur" json:"total_value_eur"`

	// Assigned when the order is approved and handed to a distributor.
	DistributorID         *string    `db:"distributor_id" json:"distributor_id,omitempty"`
	DistributorAssignedAt *time.Time `db:"distributor_assigned_at" json:"distributor_assigned_at,omitempty"`

	// Issued exactly once, on first entry to awaiting_client_payment.
	PaymentReference *string `db:"payment_reference" json:"payment_reference,omitempty"`

	PartnerVerificationResponse *string    `db:"partner_verification_response" json:"partner_verification_response,omitempty"`
	PartnerVerificationAt       *time.Time `db:"partner_verification_at" json:"partner_verification_at,omitempty"`
	PartnerVerificationBy       *string    `db:"partner_verification_by" json:"partner_verification_by,omitempty"`
	PartnerVerificationNotes    *string    `db:"partner_verification_notes" json:"partner_verification_notes,omitempty"`

	DistributorVerificationResponse *string    `db:"distributor_verification_response" json:"distributor_verification_response,omitempty"`
	DistributorVerificationAt       *time.Time `db:"distributor_verification_at" json:"distributor_verification_at,omitempty"`
	DistributorVerificationBy       *string    `db:"distributor_verification_by" json:"distributor_verification_by,omitempty"`
	DistributorVerificationNotes    *string    `db:"distributor_verification_notes" json:"distributor_verification_notes,omitempty"`

	SubmittedAt *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	DeliveredAt *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrderLineItem is one product/quantity entry within an order. Its stock
// status advances independently of the parent order's status.
type OrderLineItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"order_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Vintage     string `db:"vintage" json:"vintage"`
	Quantity    int    `db:"quantity" json:"quantity"`

	StockStatus      StockStatus `db:"stock_status" json:"stock_status"`
	StockExpectedAt  *time.Time  `db:"stock_expected_at" json:"stock_expected_at,omitempty"`
	StockNotes       *string     `db:"stock_notes" json:"stock_notes,omitempty"`
	StockConfirmedAt *time.Time  `db:"stock_confirmed_at" json:"stock_confirmed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Activity action tags. The log is append-only: entries are inserted exactly
// once per transition and never updated or deleted.
const (
	ActionOrderCreated          = "order_created"
	ActionItemAdded             = "item_added"
	ActionOrderSubmitted        = "order_submitted"
	ActionReviewStarted         = "review_started"
	ActionOrderApproved         = "order_approved"
	ActionRevisionRequested     = "revision_requested"
	ActionDistributorAssigned   = "distributor_assigned"
	ActionPartnerVerification   = "partner_verification"
	ActionDistributorVerif      = "distributor_verification"
	ActionPaymentStep           = "payment_step"
	ActionFulfillmentStep       = "fulfillment_step"
	ActionOrderCancelled        = "order_cancelled"
	ActionAdminVerificationRst  = "admin_verification_reset"
	ActionStockStatusChange     = "stock_status_change"
	ActionBulkStockStatusChange = "bulk_stock_status_change"
	ActionStockReceiptConfirmed = "stock_receipt_confirmed"
)

// ActivityLogEntry is one row of the order's audit trail.
type ActivityLogEntry struct {
	ID             int64          `db:"id" json:"id"`
	OrderID        int64          `db:"order_id" json:"order_id"`
	ActorID        string         `db:"actor_id" json:"actor_id"`
	Action         string         `db:"action" json:"action"`
	PreviousStatus string         `db:"previous_status" json:"previous_status"`
	NewStatus      string         `db:"new_status" json:"new_status"`
	Notes          *string        `db:"notes" json:"notes,omitempty"`
	Metadata       map[string]any `db:"-" json:"metadata,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}
