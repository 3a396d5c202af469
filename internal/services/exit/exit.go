// Package exit implements the single way out of an authorization flow: a
// full navigation to a target carrying an optional flash message.
package exit

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/diogomassis/payfriend/internal/dto"
	"github.com/diogomassis/payfriend/internal/models"
	"github.com/diogomassis/payfriend/internal/services/flow"
	"github.com/diogomassis/payfriend/internal/services/gateway"
)

const (
	ApprovedMessage = "Your payment has been approved!"
	DeniedMessage   = "Your payment request has been denied."
)

var ErrAlreadyExited = errors.New("flow already exited")

type Navigator interface {
	Navigate(ctx context.Context, directive *models.RedirectDirective) (*dto.LandingResponse, error)
}

type Protocol struct {
	navigator Navigator
	logger    zerolog.Logger
}

func New(navigator Navigator, logger zerolog.Logger) *Protocol {
	return &Protocol{
		navigator: navigator,
		logger:    logger.With().Str("component", "exit").Logger(),
	}
}

// DirectiveFor maps a terminal outcome to its exit target and message.
func DirectiveFor(outcome models.Outcome) (*models.RedirectDirective, error) {
	switch outcome {
	case models.OutcomeApproved:
		return models.NewRedirectDirective(gateway.SuccessPath, ApprovedMessage), nil
	case models.OutcomeDenied:
		return models.NewRedirectDirective(gateway.RetryPath, DeniedMessage), nil
	default:
		return nil, fmt.Errorf("no exit for non terminal outcome %s", outcome)
	}
}

// Rejected is the directive used when the submission itself was refused.
func Rejected() *models.RedirectDirective {
	return models.NewRedirectDirective(gateway.RetryPath, DeniedMessage)
}

// Exit finishes f and navigates to the directive target. Only the first call
// per flow navigates; later calls return ErrAlreadyExited.
func (p *Protocol) Exit(ctx context.Context, f *flow.Flow, directive *models.RedirectDirective) (*dto.LandingResponse, error) {
	if !f.Finish() {
		p.logger.Warn().Str("requestId", f.RequestID()).Str("target", directive.Target).Msg("[exit] flow already exited, navigation dropped")
		return nil, ErrAlreadyExited
	}
	p.logger.Info().
		Str("requestId", f.RequestID()).
		Str("target", directive.Target).
		Str("message", directive.Message).
		Msg("[exit] navigating")

	landing, err := p.navigator.Navigate(ctx, directive)
	if err != nil {
		return nil, fmt.Errorf("[exit] navigation to %s failed: %w", directive.Target, err)
	}
	return landing, nil
}
