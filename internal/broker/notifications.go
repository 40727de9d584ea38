package broker

import (
	"context"
	"fmt"
	"time"

	"vintrade-orders/internal/models"
	"vintrade-orders/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier publishes notifications after a transition commits. Publishing is
// fire-and-forget: it runs on a context detached from the request with its
// own timeout, and a failed publish is logged, counted, and swallowed so a
// slow broker can never fail or hold open the transition that triggered it.
type Notifier struct {
	producer *Producer
	timeout  time.Duration
	logger   *zap.Logger
}

// NewNotifier creates a notification emitter over a Kafka producer.
func NewNotifier(producer *Producer, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{
		producer: producer,
		timeout:  timeout,
		logger:   util.GetLogger(),
	}
}

// Notify publishes one notification message.
func (n *Notifier) Notify(ctx context.Context, note *models.Notification) {
	if note.EventID == "" {
		note.EventID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}

	// Detach from the caller's cancellation: the transition has already
	// committed and the publish must outlive the request if needed.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	key := fmt.Sprintf("order-%d", note.EntityID)
	if err := n.producer.Publish(pubCtx, key, note); err != nil {
		util.NotificationsFailedTotal.Inc()
		n.logger.Warn("Failed to publish notification",
			zap.String("event_id", note.EventID),
			zap.String("type", note.Type),
			zap.Int64("order_id", note.EntityID),
			zap.Error(err))
		return
	}

	util.NotificationsPublishedTotal.Inc()
	n.logger.Debug("Notification published",
		zap.String("event_id", note.EventID),
		zap.String("type", note.Type),
		zap.Int64("order_id", note.EntityID))
}
