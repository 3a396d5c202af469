// Package onetouch manages approval requests: the out of band decision a
// user takes on a payment, either from the push channel or by typing the
// code received by SMS.
package onetouch

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/diogomassis/payfriend/internal/metrics"
	"github.com/diogomassis/payfriend/internal/models"
	"github.com/diogomassis/payfriend/internal/services/cache"
)

const (
	DetailSendingTo = "Sending to"
	DetailAmount    = "Transaction amount"

	codeDigits = 6
)

type Store interface {
	Create(ctx context.Context, approval *models.ApprovalRequest) error
	Get(ctx context.Context, id string) (*models.ApprovalRequest, error)
	Update(ctx context.Context, id string, fn func(*models.ApprovalRequest) error) (*models.ApprovalRequest, error)
}

type Queue interface {
	Push(ctx context.Context, notification *models.Notification) error
}

type Ledger interface {
	Add(ctx context.Context, payment *models.CompletedPayment) error
}

type Config struct {
	TTL              time.Duration
	SmsAttemptsLimit int
}

type Manager struct {
	store  Store
	queue  Queue
	ledger Ledger
	clock  clockwork.Clock
	config Config
	logger zerolog.Logger
}

func NewManager(store Store, queue Queue, ledger Ledger, clock clockwork.Clock, config Config, logger zerolog.Logger) *Manager {
	if config.SmsAttemptsLimit <= 0 {
		config.SmsAttemptsLimit = 3
	}
	return &Manager{
		store:  store,
		queue:  queue,
		ledger: ledger,
		clock:  clock,
		config: config,
		logger: logger.With().Str("component", "onetouch").Logger(),
	}
}

// Create registers a pending approval request for payment and asks the push
// channel to deliver it to userID.
func (m *Manager) Create(ctx context.Context, userID string, payment *models.PaymentRequest) (*models.ApprovalRequest, error) {
	if err := validate(payment); err != nil {
		metrics.Submissions.WithLabelValues("invalid").Inc()
		return nil, err
	}
	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("[onetouch] failed to generate sms code: %w", err)
	}

	now := m.clock.Now().UTC()
	approval := &models.ApprovalRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		SendTo:    payment.SendTo,
		Amount:    payment.Amount,
		Status:    models.OutcomePending,
		SmsCode:   code,
		CreatedAt: now,
		ExpiresAt: now.Add(m.config.TTL),
	}
	if err := m.store.Create(ctx, approval); err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		return nil, err
	}

	err = m.queue.Push(ctx, &models.Notification{
		Kind:      models.NotificationPush,
		RequestID: approval.ID,
		UserID:    userID,
		Message:   fmt.Sprintf("Please authorize payment to %s", payment.SendTo),
		Details: map[string]string{
			DetailSendingTo: payment.SendTo,
			DetailAmount:    payment.Amount.String(),
		},
	})
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("[onetouch] failed to enqueue push notification: %w", err)
	}

	metrics.Submissions.WithLabelValues("accepted").Inc()
	m.logger.Info().
		Str("requestId", approval.ID).
		Str("userId", userID).
		Time("expiresAt", approval.ExpiresAt).
		Msg("[onetouch] approval request created")
	return approval, nil
}

func validate(payment *models.PaymentRequest) error {
	if payment == nil {
		return fmt.Errorf("%w: empty request", ErrInvalidPayment)
	}
	if strings.TrimSpace(payment.SendTo) == "" {
		return fmt.Errorf("%w: send_to is required", ErrInvalidPayment)
	}
	if !payment.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPayment)
	}
	return nil
}

// Status reports the decision on id. A pending request past its deadline is
// denied on the spot.
func (m *Manager) Status(ctx context.Context, id string) (models.Outcome, error) {
	approval, err := m.get(ctx, id)
	if err != nil {
		return models.OutcomePending, err
	}
	if approval.Status.Terminal() || !approval.Expired(m.clock.Now()) {
		return approval.Status, nil
	}

	expired, err := m.Expire(ctx, id)
	if errors.Is(err, ErrAlreadyResolved) || errors.Is(err, errNotDue) {
		approval, err = m.get(ctx, id)
		if err != nil {
			return models.OutcomePending, err
		}
		return approval.Status, nil
	}
	if err != nil {
		return models.OutcomePending, err
	}
	return expired.Status, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	return m.get(ctx, id)
}

// Resolve records the push channel decision on id.
func (m *Manager) Resolve(ctx context.Context, id string, status models.Outcome) (*models.ApprovalRequest, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	var expired bool
	approval, err := m.update(ctx, id, func(a *models.ApprovalRequest, now time.Time) error {
		if a.Expired(now) {
			expired = true
			a.Resolve(models.OutcomeDenied, models.ChannelExpiry, now)
			return nil
		}
		a.Resolve(status, models.ChannelOneTouch, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.resolved(ctx, approval)
	if expired {
		return approval, fmt.Errorf("%w: %s", ErrExpired, id)
	}
	return approval, nil
}

// RequestSms sends the verification code of a pending request by SMS.
func (m *Manager) RequestSms(ctx context.Context, id string) error {
	approval, err := m.get(ctx, id)
	if err != nil {
		return err
	}
	if approval.Status.Terminal() {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, id)
	}
	if approval.Expired(m.clock.Now()) {
		return fmt.Errorf("%w: %s", ErrExpired, id)
	}

	err = m.queue.Push(ctx, &models.Notification{
		Kind:      models.NotificationSMS,
		RequestID: approval.ID,
		UserID:    approval.UserID,
		Message:   fmt.Sprintf("Your payment verification code is %s", approval.SmsCode),
	})
	if err != nil {
		return fmt.Errorf("[onetouch] failed to enqueue sms notification: %w", err)
	}
	m.logger.Info().Str("requestId", id).Msg("[onetouch] sms code requested")
	return nil
}

// VerifyCode checks an SMS code against id. A match approves the request;
// the request is denied once the attempts limit is reached.
func (m *Manager) VerifyCode(ctx context.Context, id, code string) (*models.ApprovalRequest, error) {
	var expired, invalid bool
	approval, err := m.update(ctx, id, func(a *models.ApprovalRequest, now time.Time) error {
		if a.Expired(now) {
			expired = true
			a.Resolve(models.OutcomeDenied, models.ChannelExpiry, now)
			return nil
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(a.SmsCode)) == 1 {
			a.Resolve(models.OutcomeApproved, models.ChannelSMS, now)
			return nil
		}
		invalid = true
		a.Attempts++
		if a.Attempts >= m.config.SmsAttemptsLimit {
			a.Resolve(models.OutcomeDenied, models.ChannelSMS, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if approval.Status.Terminal() {
		m.resolved(ctx, approval)
	}
	switch {
	case expired:
		return approval, fmt.Errorf("%w: %s", ErrExpired, id)
	case invalid:
		m.logger.Warn().Str("requestId", id).Int("attempts", approval.Attempts).Msg("[onetouch] invalid sms code")
		return approval, fmt.Errorf("%w: attempt %d of %d", ErrInvalidCode, approval.Attempts, m.config.SmsAttemptsLimit)
	}
	return approval, nil
}

// Expire denies id when its deadline has passed.
func (m *Manager) Expire(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	approval, err := m.update(ctx, id, func(a *models.ApprovalRequest, now time.Time) error {
		if !a.Expired(now) {
			return errNotDue
		}
		a.Resolve(models.OutcomeDenied, models.ChannelExpiry, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.resolved(ctx, approval)
	return approval, nil
}

func (m *Manager) get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	approval, err := m.store.Get(ctx, id)
	if errors.Is(err, cache.ErrApprovalNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return approval, err
}

// update runs fn on a pending request. Requests that already hold a decision
// are never touched again.
func (m *Manager) update(ctx context.Context, id string, fn func(*models.ApprovalRequest, time.Time) error) (*models.ApprovalRequest, error) {
	approval, err := m.store.Update(ctx, id, func(a *models.ApprovalRequest) error {
		if a.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, id, a.Status)
		}
		return fn(a, m.clock.Now())
	})
	if errors.Is(err, cache.ErrApprovalNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return approval, err
}

func (m *Manager) resolved(ctx context.Context, approval *models.ApprovalRequest) {
	metrics.Resolutions.WithLabelValues(approval.Status.String(), approval.Channel).Inc()
	m.logger.Info().
		Str("requestId", approval.ID).
		Str("status", approval.Status.String()).
		Str("channel", approval.Channel).
		Msg("[onetouch] approval request resolved")

	if approval.Status != models.OutcomeApproved {
		return
	}
	if err := m.ledger.Add(ctx, models.NewCompletedPayment(approval, approval.ResolvedAt)); err != nil {
		m.logger.Error().Err(err).Str("requestId", approval.ID).Msg("[onetouch] failed to record approved payment")
	}
}

func generateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
