package onetouch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogomassis/payfriend/internal/models"
	"github.com/diogomassis/payfriend/internal/services/cache"
)

type fakeClock interface {
	clockwork.Clock
	Advance(time.Duration)
}

type fixture struct {
	manager *Manager
	queue   *cache.NotificationQueue
	ledger  *cache.PaymentLedger
	clock   fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := clockwork.NewFakeClockAt(time.Now())
	queue := cache.NewNotificationQueue(client, "payfriend-test")
	ledger := cache.NewPaymentLedger(client, zerolog.Nop())
	manager := NewManager(
		cache.NewApprovalStore(client, time.Hour),
		queue,
		ledger,
		clock,
		Config{TTL: 20 * time.Minute, SmsAttemptsLimit: 3},
		zerolog.Nop(),
	)
	return &fixture{manager: manager, queue: queue, ledger: ledger, clock: clock}
}

func (f *fixture) create(t *testing.T) *models.ApprovalRequest {
	t.Helper()
	approval, err := f.manager.Create(context.Background(), "alice", models.NewPaymentRequest("bob@example.com", decimal.RequireFromString("12.50")))
	require.NoError(t, err)
	return approval
}

func (f *fixture) pop(t *testing.T) *models.Notification {
	t.Helper()
	n, err := f.queue.Pop(context.Background(), time.Second)
	require.NoError(t, err)
	return n
}

func TestCreateEnqueuesPushNotification(t *testing.T) {
	f := newFixture(t)

	approval := f.create(t)

	assert.NotEmpty(t, approval.ID)
	assert.Len(t, approval.SmsCode, 6)
	assert.Equal(t, models.OutcomePending, approval.Status)
	assert.Equal(t, approval.CreatedAt.Add(20*time.Minute), approval.ExpiresAt)

	n := f.pop(t)
	assert.Equal(t, models.NotificationPush, n.Kind)
	assert.Equal(t, approval.ID, n.RequestID)
	assert.Equal(t, "alice", n.UserID)
	assert.Equal(t, "Please authorize payment to bob@example.com", n.Message)
	assert.Equal(t, map[string]string{
		"Sending to":         "bob@example.com",
		"Transaction amount": "12.5",
	}, n.Details)

	status, err := f.manager.Status(context.Background(), approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomePending, status)
}

func TestCreateRejectsInvalidPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for name, payment := range map[string]*models.PaymentRequest{
		"nil":           nil,
		"empty send_to": models.NewPaymentRequest("  ", decimal.NewFromInt(5)),
		"zero amount":   models.NewPaymentRequest("bob@example.com", decimal.Zero),
		"negative":      models.NewPaymentRequest("bob@example.com", decimal.NewFromInt(-5)),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.manager.Create(ctx, "alice", payment)
			assert.ErrorIs(t, err, ErrInvalidPayment)
		})
	}
	n, err := f.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResolveIsWriteOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approval := f.create(t)

	resolved, err := f.manager.Resolve(ctx, approval.ID, models.OutcomeApproved)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApproved, resolved.Status)
	assert.Equal(t, models.ChannelOneTouch, resolved.Channel)

	_, err = f.manager.Resolve(ctx, approval.ID, models.OutcomeDenied)
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	status, err := f.manager.Status(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApproved, status)

	payments, err := f.ledger.List(ctx, "alice", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, approval.ID, payments[0].RequestID)
	assert.Equal(t, "bob@example.com", payments[0].SendTo)
}

func TestResolveDeniedSkipsLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approval := f.create(t)

	_, err := f.manager.Resolve(ctx, approval.ID, models.OutcomeDenied)
	require.NoError(t, err)

	payments, err := f.ledger.List(ctx, "alice", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestResolveErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Resolve(ctx, "unknown", models.OutcomeApproved)
	assert.ErrorIs(t, err, ErrNotFound)

	approval := f.create(t)
	_, err = f.manager.Resolve(ctx, approval.ID, models.OutcomePending)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.manager.Status(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveAfterDeadlineDenies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approval := f.create(t)

	f.clock.Advance(21 * time.Minute)
	resolved, err := f.manager.Resolve(ctx, approval.ID, models.OutcomeApproved)

	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, models.OutcomeDenied, resolved.Status)
	assert.Equal(t, models.ChannelExpiry, resolved.Channel)
}

func TestStatusDeniesExpiredRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approval := f.create(t)

	f.clock.Advance(20 * time.Minute)
	status, err := f.manager.Status(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDenied, status)

	stored, err := f.manager.Get(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelExpiry, stored.Channel)
}

func TestVerifyCodeApproves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approval := f.create(t)
	f.pop(t)

	require.NoError(t, f.manager.RequestSms(ctx, approval.ID))
	sms := f.pop(t)
	assert.Equal(t, models.NotificationSMS, sms.Kind)
	assert.Contains(t, sms.Message, approval.SmsCode)

	verified, err := f.manager.VerifyCode(ctx, approval.ID, " "+approval.SmsCode+" ")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApproved, verified.Status)
	assert.Equal(t, models.ChannelSMS, verified.Channel)

	assert.ErrorIs(t, f.manager.RequestSms(ctx, approval.ID), ErrAlreadyResolved)
	_, err = f.manager.VerifyCode(ctx, approval.ID, approval.SmsCode)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
}

func TestVerifyCodeDeniesAfterAttemptsLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approval := f.create(t)
	wrong := "000000"
	if approval.SmsCode == wrong {
		wrong = "111111"
	}

	for attempt := 1; attempt <= 2; attempt++ {
		got, err := f.manager.VerifyCode(ctx, approval.ID, wrong)
		assert.ErrorIs(t, err, ErrInvalidCode)
		assert.Equal(t, attempt, got.Attempts)
		assert.Equal(t, models.OutcomePending, got.Status)
	}

	got, err := f.manager.VerifyCode(ctx, approval.ID, wrong)
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, models.OutcomeDenied, got.Status)

	_, err = f.manager.VerifyCode(ctx, approval.ID, approval.SmsCode)
	assert.True(t, errors.Is(err, ErrAlreadyResolved))
}

func TestExpire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approval := f.create(t)

	_, err := f.manager.Expire(ctx, approval.ID)
	assert.ErrorIs(t, err, errNotDue)

	f.clock.Advance(30 * time.Minute)
	expired, err := f.manager.Expire(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDenied, expired.Status)

	_, err = f.manager.Expire(ctx, approval.ID)
	assert.ErrorIs(t, err, ErrAlreadyResolved)
	assert.ErrorIs(t, f.manager.RequestSms(ctx, approval.ID), ErrAlreadyResolved)
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}
