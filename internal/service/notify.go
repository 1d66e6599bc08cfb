package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/queue"
)

// Notifier receives an event for every committed booking change.
type Notifier interface {
	Notify(ctx context.Context, ev queue.ReservationEvent) error
}

const notifyTimeout = 5 * time.Second

// dispatch delivers ev in the background.  It is called after commit;
// delivery failures are logged and never affect the booking.
func dispatch(n Notifier, logger *zap.Logger, ev queue.ReservationEvent) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.Notify(ctx, ev); err != nil {
			logger.Warn("notification not delivered",
				zap.String("type", ev.Type),
				zap.Uint64("user_id", ev.UserID),
				zap.Error(err))
		}
	}()
}
