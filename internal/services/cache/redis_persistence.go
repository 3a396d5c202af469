package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	json "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/diogomassis/payfriend/internal/models"
)

// PaymentLedger records approved payments per user, scored by the time they
// were processed.
type PaymentLedger struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewPaymentLedger(client *redis.Client, logger zerolog.Logger) *PaymentLedger {
	return &PaymentLedger{
		client: client,
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

func ledgerKey(userID string) string {
	return fmt.Sprintf("payments:ledger:%s", userID)
}

func (l *PaymentLedger) Add(ctx context.Context, p *models.CompletedPayment) error {
	member, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("[ledger] failed to marshal payment: %w", err)
	}

	_, err = l.client.ZAdd(ctx, ledgerKey(p.UserID), redis.Z{
		Score:  float64(p.ProcessedAt.UnixMilli()),
		Member: string(member),
	}).Result()
	if err != nil {
		return fmt.Errorf("[ledger] failed to add payment: %w", err)
	}
	return nil
}

// List returns the payments of userID processed within [from, to], oldest
// first. Zero bounds are open.
func (l *PaymentLedger) List(ctx context.Context, userID string, from, to time.Time) ([]models.CompletedPayment, error) {
	min := "-inf"
	max := "+inf"
	if !from.IsZero() {
		min = strconv.FormatInt(from.UnixMilli(), 10)
	}
	if !to.IsZero() {
		max = strconv.FormatInt(to.UnixMilli(), 10)
	}

	members, err := l.client.ZRangeByScore(ctx, ledgerKey(userID), &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("[ledger] failed to list payments: %w", err)
	}

	payments := make([]models.CompletedPayment, 0, len(members))
	for _, member := range members {
		var p models.CompletedPayment
		if err := json.Unmarshal([]byte(member), &p); err != nil {
			l.logger.Error().Err(err).Str("member", member).Msg("[ledger] could not decode ledger entry")
			continue
		}
		payments = append(payments, p)
	}
	return payments, nil
}
