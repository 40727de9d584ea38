package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vintrade-orders/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// insertActivityTx appends one audit entry within tx. The activity_log table
// is insert-only; nothing in this package updates or deletes its rows.
func insertActivityTx(ctx context.Context, tx *sqlx.Tx, e *models.ActivityLogEntry) error {
	var meta []byte
	if e.Metadata != nil {
		var err error
		meta, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal activity metadata: %w", err)
		}
	}

	query := `
		INSERT INTO activity_log (order_id, actor_id, action, previous_status, new_status, notes, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	return tx.GetContext(ctx, e, query,
		e.OrderID, e.ActorID, e.Action, e.PreviousStatus, e.NewStatus, e.Notes, meta)
}

// PartnerMembers resolves a partner/distributor org code to its user ids.
func (s *Store) PartnerMembers(ctx context.Context, orgID string) ([]string, error) {
	var userIDs []string
	err := s.db.SelectContext(ctx, &userIDs,
		"SELECT user_id FROM partner_members WHERE org_id = $1 ORDER BY user_id", orgID)
	return userIDs, err
}

// InsertNotification writes one delivered notification to the sink table.
func (s *Store) InsertNotification(ctx context.Context, n *models.DeliveredNotification) error {
	query := `
		INSERT INTO notifications (user_id, event_id, type, title, message, entity_type, entity_id, action_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, n, query,
		n.UserID, n.EventID, n.Type, n.Title, n.Message, n.EntityType, n.EntityID, n.ActionURL)
}
