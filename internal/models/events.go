package models

import "time"

// Notification types
const (
	NotificationTypeOrderStatus      = "order_status"
	NotificationTypeStockStatus      = "stock_status"
	NotificationTypePaymentReference = "payment_reference"
	NotificationTypeRevisionRequest  = "revision_request"
	NotificationTypeVerification     = "verification_request"
	NotificationTypeAdminReset       = "admin_reset"
)

// Notification is the message published to the notification topic after a
// transition commits. Delivery is best-effort and happens out of band: the
// worker resolves org recipients to users and writes the delivery sink.
type Notification struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`

	// Either explicit user ids or an org to be resolved via partner_members.
	RecipientUserIDs []string `json:"recipient_user_ids,omitempty"`
	RecipientOrgID   string   `json:"recipient_org_id,omitempty"`

	EntityType string         `json:"entity_type"`
	EntityID   int64          `json:"entity_id"`
	ActionURL  string         `json:"action_url,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// DeliveredNotification is one per-user row in the notifications sink table,
// written by the delivery worker.
type DeliveredNotification struct {
	ID         int64      `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	EventID    string     `db:"event_id" json:"event_id"`
	Type       string     `db:"type" json:"type"`
	Title      string     `db:"title" json:"title"`
	Message    string     `db:"message" json:"message"`
	EntityType string     `db:"entity_type" json:"entity_type"`
	EntityID   int64      `db:"entity_id" json:"entity_id"`
	ActionURL  string     `db:"action_url" json:"action_url,omitempty"`
	ReadAt     *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
