package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogomassis/payfriend/internal/models"
	"github.com/diogomassis/payfriend/internal/services/cache"
)

type recordingNotifier struct {
	mu        sync.Mutex
	failures  int
	delivered []string
	calls     int
}

func (r *recordingNotifier) Notify(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failures {
		return errors.New("provider unavailable")
	}
	r.delivered = append(r.delivered, n.RequestID)
	return nil
}

func (r *recordingNotifier) Delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.delivered...)
}

func (r *recordingNotifier) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newQueue(t *testing.T) (*miniredis.Miniredis, *cache.NotificationQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, cache.NewNotificationQueue(client, "payfriend-test")
}

func TestBuilderValidation(t *testing.T) {
	_, queue := newQueue(t)
	notifier := &recordingNotifier{}

	_, err := NewNotificationWorkerBuilder().WithQueue(queue).WithNotifier(notifier).Build()
	assert.EqualError(t, err, "number of workers must be positive")

	_, err = NewNotificationWorkerBuilder().WithNumWorkers(1).WithNotifier(notifier).Build()
	assert.EqualError(t, err, "notification queue is required")

	_, err = NewNotificationWorkerBuilder().WithNumWorkers(1).WithQueue(queue).Build()
	assert.EqualError(t, err, "notifier is required")

	_, err = NewNotificationWorkerBuilder().WithNumWorkers(1).WithMaxAttempts(0).WithQueue(queue).WithNotifier(notifier).Build()
	assert.EqualError(t, err, "max attempts must be positive")

	w, err := NewNotificationWorkerBuilder().WithNumWorkers(2).WithQueue(queue).WithNotifier(notifier).Build()
	require.NoError(t, err)
	assert.Equal(t, 2, w.numWorkers)
	assert.Equal(t, 3, w.maxAttempts)
}

func TestWorkerDeliversNotifications(t *testing.T) {
	ctx := context.Background()
	_, queue := newQueue(t)
	notifier := &recordingNotifier{}
	w, err := NewNotificationWorkerBuilder().
		WithNumWorkers(2).
		WithQueue(queue).
		WithNotifier(notifier).
		WithLogger(zerolog.Nop()).
		Build()
	require.NoError(t, err)

	w.Start()
	defer w.Stop()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, queue.Push(ctx, &models.Notification{Kind: models.NotificationPush, RequestID: id}))
	}

	assert.Eventually(t, func() bool { return len(notifier.Delivered()) == 3 }, 3*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, notifier.Delivered())
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	mr, queue := newQueue(t)
	notifier := &recordingNotifier{failures: 4}
	w, err := NewNotificationWorkerBuilder().
		WithNumWorkers(1).
		WithMaxAttempts(3).
		WithRetryDelay(time.Millisecond).
		WithQueue(queue).
		WithNotifier(notifier).
		Build()
	require.NoError(t, err)

	w.Start()
	defer w.Stop()
	require.NoError(t, queue.Push(ctx, &models.Notification{Kind: models.NotificationSMS, RequestID: "lost"}))
	require.NoError(t, queue.Push(ctx, &models.Notification{Kind: models.NotificationSMS, RequestID: "saved"}))

	assert.Eventually(t, func() bool { return len(notifier.Delivered()) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"saved"}, notifier.Delivered())
	assert.Equal(t, 5, notifier.Calls())

	dead, err := mr.List(queue.DeadLetterName())
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0], `"requestId":"lost"`)
}

func TestWorkerStopWithoutJobs(t *testing.T) {
	_, queue := newQueue(t)
	w, err := NewNotificationWorkerBuilder().
		WithNumWorkers(3).
		WithPopTimeout(time.Second).
		WithQueue(queue).
		WithNotifier(NewLogNotifier(zerolog.Nop())).
		Build()
	require.NoError(t, err)

	w.Start()
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker pool did not stop")
	}
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())
	err := n.Notify(context.Background(), &models.Notification{
		Kind:    models.NotificationPush,
		Message: "Please authorize payment to bob@example.com",
		Details: map[string]string{"Sending to": "bob@example.com"},
	})
	assert.NoError(t, err)
}
