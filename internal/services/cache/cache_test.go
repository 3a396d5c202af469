package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogomassis/payfriend/internal/models"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func pendingApproval(id string, expiresAt time.Time) *models.ApprovalRequest {
	return &models.ApprovalRequest{
		ID:        id,
		UserID:    "alice",
		SendTo:    "bob@example.com",
		Amount:    decimal.RequireFromString("12.50"),
		Status:    models.OutcomePending,
		SmsCode:   "123456",
		CreatedAt: expiresAt.Add(-20 * time.Minute),
		ExpiresAt: expiresAt,
	}
}

func TestPayfriendRedisClientPing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewPayfriendRedisClient(mr.Addr())
	defer client.Close()

	require.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestApprovalStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store := NewApprovalStore(client, time.Hour)
	expiresAt := time.Now().Add(20 * time.Minute)

	require.NoError(t, store.Create(ctx, pendingApproval("req-1", expiresAt)))

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.Amount))
	assert.Equal(t, models.OutcomePending, got.Status)
	assert.True(t, mr.TTL(approvalKey("req-1")) > time.Hour)

	score, err := mr.ZScore(ExpiryIndexKey, "req-1")
	require.NoError(t, err)
	assert.Equal(t, float64(expiresAt.UnixMilli()), score)

	assert.Error(t, store.Create(ctx, pendingApproval("req-1", expiresAt)))
}

func TestApprovalStoreGetUnknown(t *testing.T) {
	_, client := newTestClient(t)
	store := NewApprovalStore(client, time.Hour)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrApprovalNotFound)
}

func TestApprovalStoreUpdate(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store := NewApprovalStore(client, time.Hour)
	require.NoError(t, store.Create(ctx, pendingApproval("req-1", time.Now().Add(time.Minute))))
	ttl := mr.TTL(approvalKey("req-1"))

	updated, err := store.Update(ctx, "req-1", func(a *models.ApprovalRequest) error {
		a.Attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Attempts)
	assert.Equal(t, ttl, mr.TTL(approvalKey("req-1")))
	members, err := mr.ZMembers(ExpiryIndexKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1"}, members)

	updated, err = store.Update(ctx, "req-1", func(a *models.ApprovalRequest) error {
		a.Resolve(models.OutcomeApproved, models.ChannelOneTouch, time.Now())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApproved, updated.Status)
	assert.False(t, mr.Exists(ExpiryIndexKey))

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApproved, got.Status)
	assert.Equal(t, models.ChannelOneTouch, got.Channel)
}

func TestApprovalStoreUpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	store := NewApprovalStore(client, time.Hour)
	require.NoError(t, store.Create(ctx, pendingApproval("req-1", time.Now().Add(time.Minute))))
	boom := errors.New("boom")

	_, err := store.Update(ctx, "req-1", func(a *models.ApprovalRequest) error {
		a.Attempts = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Zero(t, got.Attempts)

	_, err = store.Update(ctx, "missing", func(*models.ApprovalRequest) error { return nil })
	assert.ErrorIs(t, err, ErrApprovalNotFound)
}

func TestApprovalStoreDue(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	store := NewApprovalStore(client, time.Hour)
	now := time.Now()
	require.NoError(t, store.Create(ctx, pendingApproval("old", now.Add(-time.Minute))))
	require.NoError(t, store.Create(ctx, pendingApproval("now", now)))
	require.NoError(t, store.Create(ctx, pendingApproval("later", now.Add(time.Minute))))

	due, err := store.Due(ctx, now, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "now"}, due)

	due, err = store.Due(ctx, now, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, due)

	require.NoError(t, store.Unindex(ctx, "old"))
	due, err = store.Due(ctx, now, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"now"}, due)
}

func TestNotificationQueueFIFO(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	queue := NewNotificationQueue(client, "payfriend-1")

	for _, id := range []string{"a", "b"} {
		require.NoError(t, queue.Push(ctx, &models.Notification{
			Kind:      models.NotificationPush,
			RequestID: id,
			Message:   "Please authorize payment to bob@example.com",
			Details:   map[string]string{"Sending to": "bob@example.com"},
		}))
	}
	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	first, err := queue.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", first.RequestID)
	assert.Equal(t, "bob@example.com", first.Details["Sending to"])

	second, err := queue.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "b", second.RequestID)
}

func TestNotificationQueueEmptyAndDeadLetter(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	queue := NewNotificationQueue(client, "payfriend-1")

	_, err := queue.Pop(ctx, time.Second)
	assert.ErrorIs(t, err, ErrQueueEmpty)

	require.NoError(t, queue.AddToDeadLetterQueue(ctx, &models.Notification{Kind: models.NotificationSMS, RequestID: "x"}))
	dead, err := mr.List("payfriend-1:dlq")
	require.NoError(t, err)
	assert.Len(t, dead, 1)
	assert.Contains(t, dead[0], `"requestId":"x"`)
}

func TestPaymentLedger(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	ledger := NewPaymentLedger(client, zerolog.Nop())
	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, ledger.Add(ctx, &models.CompletedPayment{
			RequestID:   id,
			UserID:      "alice",
			SendTo:      "bob@example.com",
			Amount:      decimal.NewFromInt(int64(10 * (i + 1))),
			Channel:     models.ChannelOneTouch,
			ProcessedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, ledger.Add(ctx, &models.CompletedPayment{RequestID: "other", UserID: "carol", ProcessedAt: base}))

	all, err := ledger.List(ctx, "alice", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "p1", all[0].RequestID)
	assert.True(t, decimal.NewFromInt(30).Equal(all[2].Amount))

	window, err := ledger.List(ctx, "alice", base.Add(time.Minute), base.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "p2", window[0].RequestID)

	none, err := ledger.List(ctx, "nobody", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, none)
}
