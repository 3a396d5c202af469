package expirer

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/diogomassis/payfriend/internal/models"
	"github.com/diogomassis/payfriend/internal/services/onetouch"
)

const batchSize = 100

type DueIndex interface {
	Due(ctx context.Context, now time.Time, limit int64) ([]string, error)
	Unindex(ctx context.Context, id string) error
}

type Resolver interface {
	Expire(ctx context.Context, id string) (*models.ApprovalRequest, error)
}

// PayfriendExpirer periodically denies approval requests whose deadline has
// passed without a decision.
type PayfriendExpirer struct {
	index    DueIndex
	resolver Resolver
	clock    clockwork.Clock
	interval time.Duration
	logger   zerolog.Logger
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewPayfriendExpirer(index DueIndex, resolver Resolver, clock clockwork.Clock, interval time.Duration, logger zerolog.Logger) *PayfriendExpirer {
	return &PayfriendExpirer{
		index:    index,
		resolver: resolver,
		clock:    clock,
		interval: interval,
		logger:   logger.With().Str("component", "expirer").Logger(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

func (e *PayfriendExpirer) Start() {
	e.logger.Info().Dur("interval", e.interval).Msg("[expirer] Starting expirer...")
	ticker := e.clock.NewTicker(e.interval)

	go func() {
		defer close(e.doneChan)
		for {
			select {
			case <-ticker.Chan():
				e.Sweep(context.Background())
			case <-e.stopChan:
				ticker.Stop()
				e.logger.Info().Msg("[expirer] Expirer stopped.")
				return
			}
		}
	}()
}

func (e *PayfriendExpirer) Stop() {
	e.logger.Info().Msg("[expirer] Shutting down the expirer...")
	close(e.stopChan)
	<-e.doneChan
}

// Sweep denies every overdue request and returns how many it denied.
func (e *PayfriendExpirer) Sweep(ctx context.Context) int {
	ids, err := e.index.Due(ctx, e.clock.Now(), batchSize)
	if err != nil {
		e.logger.Error().Err(err).Msg("[expirer] failed to read due requests")
		return 0
	}
	if len(ids) == 0 {
		return 0
	}

	e.logger.Debug().Int("due", len(ids)).Msg("[expirer] found overdue requests")
	expired := 0
	for _, id := range ids {
		_, err := e.resolver.Expire(ctx, id)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, onetouch.ErrNotFound), errors.Is(err, onetouch.ErrAlreadyResolved):
			if err := e.index.Unindex(ctx, id); err != nil {
				e.logger.Error().Err(err).Str("requestId", id).Msg("[expirer] failed to unindex request")
			}
		default:
			e.logger.Error().Err(err).Str("requestId", id).Msg("[expirer] failed to expire request")
		}
	}
	if expired > 0 {
		e.logger.Info().Int("expired", expired).Msg("[expirer] denied overdue requests")
	}
	return expired
}
