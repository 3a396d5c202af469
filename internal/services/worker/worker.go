package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/diogomassis/payfriend/internal/metrics"
	"github.com/diogomassis/payfriend/internal/models"
	"github.com/diogomassis/payfriend/internal/services/cache"
)

type Queue interface {
	Name() string
	Pop(ctx context.Context, timeout time.Duration) (*models.Notification, error)
	AddToDeadLetterQueue(ctx context.Context, notification *models.Notification) error
}

// NotificationWorker is a pool of goroutines draining the notification queue
// into a Notifier.
type NotificationWorker struct {
	numWorkers  int
	maxAttempts int
	popTimeout  time.Duration
	retryDelay  time.Duration
	queue       Queue
	notifier    Notifier
	logger      zerolog.Logger

	waitGroup  *sync.WaitGroup
	cancelFunc context.CancelFunc
}

func (nw *NotificationWorker) Start() {
	nw.logger.Info().Int("workers", nw.numWorkers).Str("queue", nw.queue.Name()).Msg("[worker] Starting workers")

	var ctx context.Context
	ctx, nw.cancelFunc = context.WithCancel(context.Background())

	for i := 1; i <= nw.numWorkers; i++ {
		nw.waitGroup.Add(1)
		go nw.worker(ctx, i)
	}
}

func (nw *NotificationWorker) worker(ctx context.Context, id int) {
	defer nw.waitGroup.Done()
	logger := nw.logger.With().Int("worker", id).Logger()
	logger.Debug().Msg("[worker] initialized and waiting for jobs")

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("[worker] received shutdown signal, exiting")
			return
		default:
			notification, err := nw.queue.Pop(ctx, nw.popTimeout)
			if err != nil {
				if errors.Is(err, cache.ErrQueueEmpty) || ctx.Err() != nil {
					continue
				}
				logger.Error().Err(err).Msg("[worker] error while popping from queue")
				nw.sleep(ctx)
				continue
			}
			nw.deliver(ctx, logger, notification)
		}
	}
}

func (nw *NotificationWorker) deliver(ctx context.Context, logger zerolog.Logger, notification *models.Notification) {
	kind := string(notification.Kind)
	var err error
	for attempt := 1; attempt <= nw.maxAttempts; attempt++ {
		if err = nw.notifier.Notify(ctx, notification); err == nil {
			metrics.Notifications.WithLabelValues(kind, "delivered").Inc()
			return
		}
		logger.Warn().Err(err).Int("attempt", attempt).Str("requestId", notification.RequestID).Msg("[worker] notification failed")
		if attempt < nw.maxAttempts && !nw.sleep(ctx) {
			break
		}
	}

	metrics.Notifications.WithLabelValues(kind, "dead_letter").Inc()
	if dlqErr := nw.queue.AddToDeadLetterQueue(context.WithoutCancel(ctx), notification); dlqErr != nil {
		logger.Error().Err(dlqErr).Str("requestId", notification.RequestID).Msg("[worker] failed to dead letter notification")
		return
	}
	logger.Error().Err(err).Str("requestId", notification.RequestID).Msg("[worker] notification moved to dead letter queue")
}

// sleep waits retryDelay and reports false when the pool is shutting down.
func (nw *NotificationWorker) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(nw.retryDelay):
		return true
	}
}

func (nw *NotificationWorker) Stop() {
	nw.logger.Info().Msg("[worker] Shutting down the worker pool...")

	if nw.cancelFunc != nil {
		nw.cancelFunc()
	}

	nw.waitGroup.Wait()
	nw.logger.Info().Msg("[worker] All workers have been safely shut down.")
}
