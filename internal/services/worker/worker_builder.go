package worker

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type NotificationWorkerBuilder struct {
	numWorkers  int
	maxAttempts int
	popTimeout  time.Duration
	retryDelay  time.Duration
	queue       Queue
	notifier    Notifier
	logger      zerolog.Logger
}

func NewNotificationWorkerBuilder() *NotificationWorkerBuilder {
	return &NotificationWorkerBuilder{
		maxAttempts: 3,
		popTimeout:  time.Second,
		retryDelay:  500 * time.Millisecond,
		logger:      zerolog.Nop(),
	}
}

func (b *NotificationWorkerBuilder) WithNumWorkers(numWorkers int) *NotificationWorkerBuilder {
	b.numWorkers = numWorkers
	return b
}

func (b *NotificationWorkerBuilder) WithMaxAttempts(maxAttempts int) *NotificationWorkerBuilder {
	b.maxAttempts = maxAttempts
	return b
}

func (b *NotificationWorkerBuilder) WithPopTimeout(timeout time.Duration) *NotificationWorkerBuilder {
	b.popTimeout = timeout
	return b
}

func (b *NotificationWorkerBuilder) WithRetryDelay(delay time.Duration) *NotificationWorkerBuilder {
	b.retryDelay = delay
	return b
}

func (b *NotificationWorkerBuilder) WithQueue(queue Queue) *NotificationWorkerBuilder {
	b.queue = queue
	return b
}

func (b *NotificationWorkerBuilder) WithNotifier(notifier Notifier) *NotificationWorkerBuilder {
	b.notifier = notifier
	return b
}

func (b *NotificationWorkerBuilder) WithLogger(logger zerolog.Logger) *NotificationWorkerBuilder {
	b.logger = logger
	return b
}

func (b *NotificationWorkerBuilder) Build() (*NotificationWorker, error) {
	if b.numWorkers <= 0 {
		return nil, errors.New("number of workers must be positive")
	}
	if b.maxAttempts <= 0 {
		return nil, errors.New("max attempts must be positive")
	}
	if b.queue == nil {
		return nil, errors.New("notification queue is required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier is required")
	}

	return &NotificationWorker{
		numWorkers:  b.numWorkers,
		maxAttempts: b.maxAttempts,
		popTimeout:  b.popTimeout,
		retryDelay:  b.retryDelay,
		queue:       b.queue,
		notifier:    b.notifier,
		logger:      b.logger.With().Str("component", "worker").Logger(),
		waitGroup:   &sync.WaitGroup{},
	}, nil
}
