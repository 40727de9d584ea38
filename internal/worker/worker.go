package worker

import (
	"context"
	"encoding/json"

	"vintrade-orders/internal/broker"
	"vintrade-orders/internal/models"
	"vintrade-orders/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// DeliveryStore is what the worker needs from persistence: recipient
// resolution and the notification sink.
type DeliveryStore interface {
	PartnerMembers(ctx context.Context, orgID string) ([]string, error)
	InsertNotification(ctx context.Context, n *models.DeliveredNotification) error
}

// NotificationWorker consumes the notification topic and fans each message
// out to its recipients. Delivery is best-effort: failures are logged and
// never surfaced back to the transition that caused them.
type NotificationWorker struct {
	consumer *broker.Consumer
	store    DeliveryStore
	logger   *zap.Logger
}

// NewNotificationWorker creates a notification delivery worker.
func NewNotificationWorker(consumer *broker.Consumer, store DeliveryStore) *NotificationWorker {
	return &NotificationWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var note models.Notification
	if err := json.Unmarshal(msg.Value, &note); err != nil {
		// Not recoverable by redelivery; drop with a log line.
		w.logger.Error("Failed to unmarshal notification", zap.Error(err))
		return nil
	}

	recipients := note.RecipientUserIDs
	if note.RecipientOrgID != "" {
		members, err := w.store.PartnerMembers(ctx, note.RecipientOrgID)
		if err != nil {
			w.logger.Error("Failed to resolve notification recipients",
				zap.String("org_id", note.RecipientOrgID),
				zap.String("event_id", note.EventID),
				zap.Error(err))
			return nil
		}
		recipients = append(recipients, members...)
	}

	for _, userID := range recipients {
		delivered := &models.DeliveredNotification{
			UserID:     userID,
			EventID:    note.EventID,
			Type:       note.Type,
			Title:      note.Title,
			Message:    note.Message,
			EntityType: note.EntityType,
			EntityID:   note.EntityID,
			ActionURL:  note.ActionURL,
		}
		if err := w.store.InsertNotification(ctx, delivered); err != nil {
			w.logger.Error("Failed to deliver notification",
				zap.String("user_id", userID),
				zap.String("event_id", note.EventID),
				zap.Error(err))
			continue
		}
		util.NotificationsDeliveredTotal.Inc()
	}

	w.logger.Debug("Notification delivered",
		zap.String("event_id", note.EventID),
		zap.Int("recipients", len(recipients)))
	return nil
}
