// Package fallback reveals the secondary authorization channel (SMS code
// entry) when the one-touch decision takes too long.
package fallback

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/diogomassis/payfriend/internal/metrics"
	"github.com/diogomassis/payfriend/internal/services/flow"
)

// Revealer shows the secondary channel UI. It runs under the flow lock and
// must return quickly without calling back into the flow.
type Revealer interface {
	RevealSecondaryChannel(requestID string)
}

type Scheduler struct {
	clock    clockwork.Clock
	revealer Revealer
	logger   zerolog.Logger
}

func New(clock clockwork.Clock, revealer Revealer, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		clock:    clock,
		revealer: revealer,
		logger:   logger.With().Str("component", "fallback").Logger(),
	}
}

// Arm starts the one-shot reveal timer for requestID. The poller keeps
// running when it fires; a flow that finished first suppresses the reveal.
func (s *Scheduler) Arm(f *flow.Flow, requestID string, revealAfter time.Duration) {
	timer := s.clock.AfterFunc(revealAfter, func() {
		revealed := f.Do(func() {
			s.revealer.RevealSecondaryChannel(requestID)
		})
		if !revealed {
			s.logger.Debug().Str("requestId", requestID).Msg("[fallback] flow already finished, reveal suppressed")
			return
		}
		metrics.FallbackReveals.Inc()
		s.logger.Info().Str("requestId", requestID).Dur("after", revealAfter).Msg("[fallback] secondary channel revealed")
	})
	f.Track(timer)
}
