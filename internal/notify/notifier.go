package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// Sink delivers a notification to a connected user, usually over websocket.
type Sink interface {
	DeliverNotification(userID int, n models.Notification)
}

// Notifier stands in for the browser notification API: users grant
// permission explicitly, and everything raised without it is suppressed.
type Notifier struct {
	sink Sink

	mu        sync.Mutex
	permitted map[int]bool
}

// NewNotifier constructs a Notifier.
func NewNotifier(sink Sink) *Notifier {
	return &Notifier{sink: sink, permitted: make(map[int]bool)}
}

// SetPermission records a user's notification choice for this connection
// lifetime.
func (n *Notifier) SetPermission(userID int, allowed bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.permitted[userID] = allowed
}

// Permitted reports whether a user accepts notifications.
func (n *Notifier) Permitted(userID int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.permitted[userID]
}

// Notify raises a notification for a user. Suppressed when permission was
// not granted; the operational event is published either way.
func (n *Notifier) Notify(ctx context.Context, userID int, notification models.Notification) {
	_ = observability.PublishEvent(ctx, "notifications."+notification.Kind, observability.EventEnvelope{
		EventType: "notification",
		EventName: notification.Kind,
		Payload: map[string]any{
			"user_id": userID,
			"title":   notification.Title,
			"body":    notification.Body,
		},
	})

	if !n.Permitted(userID) {
		log.Debug().Int("user_id", userID).Str("kind", notification.Kind).Msg("notification suppressed")
		return
	}

	observability.IncNotification(notification.Kind)
	n.sink.DeliverNotification(userID, notification)
}
