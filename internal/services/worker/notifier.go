package worker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/diogomassis/payfriend/internal/models"
)

// Notifier delivers a notification to the user's device.
type Notifier interface {
	Notify(ctx context.Context, notification *models.Notification) error
}

// LogNotifier only logs notifications. It stands in for a real push or SMS
// provider.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, notification *models.Notification) error {
	event := n.logger.Info().
		Str("kind", string(notification.Kind)).
		Str("requestId", notification.RequestID).
		Str("userId", notification.UserID)
	for key, value := range notification.Details {
		event = event.Str(key, value)
	}
	event.Msg(notification.Message)
	return nil
}
