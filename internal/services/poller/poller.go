// Package poller discovers the outcome of a one-touch approval request by
// querying the status endpoint on a fixed interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/diogomassis/payfriend/internal/metrics"
	"github.com/diogomassis/payfriend/internal/models"
	"github.com/diogomassis/payfriend/internal/services/gateway"
)

var ErrAbandoned = errors.New("status polling abandoned")

type StatusSource interface {
	Status(ctx context.Context, requestID string) (models.Outcome, error)
}

type Config struct {
	Interval time.Duration
	// MaxPolls bounds the number of status queries; zero means unbounded.
	MaxPolls int
	// Timeout bounds the whole polling cycle; zero means unbounded.
	Timeout time.Duration
	// MaxTransportRetries is the number of consecutive transport failures
	// tolerated before polling halts.
	MaxTransportRetries int
}

type StatusPoller struct {
	source StatusSource
	clock  clockwork.Clock
	config Config
	logger zerolog.Logger
}

func New(source StatusSource, clock clockwork.Clock, config Config, logger zerolog.Logger) *StatusPoller {
	if config.Interval <= 0 {
		config.Interval = 2500 * time.Millisecond
	}
	return &StatusPoller{
		source: source,
		clock:  clock,
		config: config,
		logger: logger.With().Str("component", "poller").Logger(),
	}
}

// Poll queries the status of requestID until a terminal outcome is observed.
// Exactly one query is in flight at a time and the next one is scheduled only
// after the previous one completed.
func (p *StatusPoller) Poll(ctx context.Context, requestID string) (models.Outcome, error) {
	var deadline <-chan time.Time
	if p.config.Timeout > 0 {
		timer := p.clock.NewTimer(p.config.Timeout)
		defer timer.Stop()
		deadline = timer.Chan()
	}

	logger := p.logger.With().Str("requestId", requestID).Logger()
	polls, failures := 0, 0
	for {
		polls++
		outcome, err := p.source.Status(ctx, requestID)
		if ctx.Err() != nil {
			return models.OutcomePending, fmt.Errorf("%w: %w", ErrAbandoned, ctx.Err())
		}

		switch {
		case err == nil && outcome.Terminal():
			metrics.StatusQueries.WithLabelValues(outcome.String()).Inc()
			logger.Info().Int("polls", polls).Str("outcome", outcome.String()).Msg("[poller] terminal outcome observed")
			return outcome, nil
		case err == nil:
			failures = 0
			metrics.StatusQueries.WithLabelValues(outcome.String()).Inc()
			logger.Debug().Int("polls", polls).Msg("[poller] still pending")
		case errors.Is(err, gateway.ErrMalformedStatus):
			failures = 0
			metrics.StatusQueries.WithLabelValues("malformed").Inc()
			logger.Warn().Err(err).Int("polls", polls).Msg("[poller] malformed status treated as pending")
		default:
			failures++
			metrics.StatusQueries.WithLabelValues("transport_error").Inc()
			logger.Warn().Err(err).Int("failures", failures).Msg("[poller] status query failed")
			if failures > p.config.MaxTransportRetries {
				return models.OutcomePending, fmt.Errorf("status polling halted after %d consecutive failures: %w", failures, err)
			}
		}

		if p.config.MaxPolls > 0 && polls >= p.config.MaxPolls {
			logger.Warn().Int("polls", polls).Msg("[poller] maximum number of polls reached")
			return models.OutcomePending, fmt.Errorf("%w: no decision after %d polls", ErrAbandoned, polls)
		}

		next := p.clock.NewTimer(p.config.Interval)
		select {
		case <-ctx.Done():
			next.Stop()
			return models.OutcomePending, fmt.Errorf("%w: %w", ErrAbandoned, ctx.Err())
		case <-deadline:
			next.Stop()
			logger.Warn().Int("polls", polls).Dur("timeout", p.config.Timeout).Msg("[poller] polling timed out")
			return models.OutcomePending, fmt.Errorf("%w: no decision after %s", ErrAbandoned, p.config.Timeout)
		case <-next.Chan():
		}
	}
}
