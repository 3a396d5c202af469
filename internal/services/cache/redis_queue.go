package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/diogomassis/payfriend/internal/models"
)

var ErrQueueEmpty = errors.New("notification queue empty")

// NotificationQueue is a FIFO list of notifications plus a dead letter list
// for the ones the notifier kept failing on.
type NotificationQueue struct {
	client    *redis.Client
	queueName string
}

func NewNotificationQueue(client *redis.Client, queueName string) *NotificationQueue {
	return &NotificationQueue{
		client:    client,
		queueName: queueName,
	}
}

func (q *NotificationQueue) Name() string {
	return q.queueName
}

func (q *NotificationQueue) DeadLetterName() string {
	return q.queueName + ":dlq"
}

func (q *NotificationQueue) Push(ctx context.Context, notification *models.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("[cache] failed to marshal notification: %w", err)
	}

	_, err = q.client.LPush(ctx, q.queueName, data).Result()
	if err != nil {
		return fmt.Errorf("[cache] failed to add to queue: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the oldest notification. It returns
// ErrQueueEmpty when nothing arrived in time.
func (q *NotificationQueue) Pop(ctx context.Context, timeout time.Duration) (*models.Notification, error) {
	result, err := q.client.BRPop(ctx, timeout, q.queueName).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("[cache] failed to pop from queue: %w", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("[cache] unexpected BRPop result: %v", result)
	}

	var notification models.Notification
	if err := json.Unmarshal([]byte(result[1]), &notification); err != nil {
		return nil, fmt.Errorf("[cache] failed to unmarshal notification: %w", err)
	}
	return &notification, nil
}

func (q *NotificationQueue) AddToDeadLetterQueue(ctx context.Context, notification *models.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("[cache] failed to marshal notification for DLQ: %w", err)
	}

	_, err = q.client.LPush(ctx, q.DeadLetterName(), payload).Result()
	return err
}

func (q *NotificationQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.queueName).Result()
}
