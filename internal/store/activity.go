package store

import (
	"context"
	"encoding/json"
	"fmt"

	"vintrade-orders/internal/models"
)

// AppendActivity inserts one audit entry outside a status transition (order
// creation, item additions). Transitions use the transactional path instead.
func (s *Store) AppendActivity(ctx context.Context, e *models.ActivityLogEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertActivityTx(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

// activityRow carries the raw metadata column alongside the entry fields;
// the Metadata map itself is not directly scannable.
type activityRow struct {
	models.ActivityLogEntry
	RawMetadata []byte `db:"metadata"`
}

// ListActivity returns an order's audit trail, newest first, with the
// metadata written at transition time decoded back into each entry.
func (s *Store) ListActivity(ctx context.Context, orderID int64) ([]models.ActivityLogEntry, error) {
	var rows []activityRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, order_id, actor_id, action, previous_status, new_status, notes, metadata, created_at
		FROM activity_log
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC`, orderID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ActivityLogEntry, 0, len(rows))
	for _, r := range rows {
		e := r.ActivityLogEntry
		if len(r.RawMetadata) > 0 {
			if err := json.Unmarshal(r.RawMetadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode activity metadata for entry %d: %w", r.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
