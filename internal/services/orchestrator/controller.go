package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/diogomassis/payfriend/internal/dto"
	"github.com/diogomassis/payfriend/internal/env"
	"github.com/diogomassis/payfriend/internal/models"
	"github.com/diogomassis/payfriend/internal/services/exit"
	"github.com/diogomassis/payfriend/internal/services/fallback"
	"github.com/diogomassis/payfriend/internal/services/flow"
	"github.com/diogomassis/payfriend/internal/services/poller"
)

// Gateway is the backend as seen by the controller.
type Gateway interface {
	Submit(ctx context.Context, payment *models.PaymentRequest) (*models.SubmissionResult, error)
	poller.StatusSource
	exit.Navigator
}

// Presenter is the user interface of the flow.
type Presenter interface {
	ShowPending(requestID string)
	fallback.Revealer
	ShowRejection(message string)
	ShowTransportFailure(err error)
}

type Config struct {
	PollInterval        time.Duration
	FallbackReveal      time.Duration
	MaxPolls            int
	PollTimeout         time.Duration
	MaxTransportRetries int
	EnableSmsFallback   bool
	OnReject            env.RejectBehavior
}

func ConfigFromEnv(vars *env.ClientVariables) Config {
	return Config{
		PollInterval:        vars.PollInterval,
		FallbackReveal:      vars.FallbackReveal,
		MaxPolls:            vars.MaxPolls,
		PollTimeout:         vars.PollTimeout,
		MaxTransportRetries: vars.MaxTransportRetries,
		EnableSmsFallback:   vars.EnableSmsFallback,
		OnReject:            vars.OnReject,
	}
}

type Result struct {
	RequestID string
	Outcome   models.Outcome
	Directive *models.RedirectDirective
	Landing   *dto.LandingResponse
}

type SubmissionController struct {
	gateway   Gateway
	presenter Presenter
	config    Config
	logger    zerolog.Logger

	poller    *poller.StatusPoller
	scheduler *fallback.Scheduler
	exit      *exit.Protocol
}

func NewSubmissionController(gateway Gateway, presenter Presenter, clock clockwork.Clock, config Config, logger zerolog.Logger) *SubmissionController {
	return &SubmissionController{
		gateway:   gateway,
		presenter: presenter,
		config:    config,
		logger:    logger.With().Str("component", "controller").Logger(),
		poller: poller.New(gateway, clock, poller.Config{
			Interval:            config.PollInterval,
			MaxPolls:            config.MaxPolls,
			Timeout:             config.PollTimeout,
			MaxTransportRetries: config.MaxTransportRetries,
		}, logger),
		scheduler: fallback.New(clock, presenter, logger),
		exit:      exit.New(gateway, logger),
	}
}

// Submit runs one authorization flow to completion: submit the payment, poll
// the approval while the fallback deadline is armed, then leave through the
// exit protocol. A transport failure on submission is returned as is; a flow
// that stops polling without a decision is abandoned without navigation.
func (c *SubmissionController) Submit(ctx context.Context, payment *models.PaymentRequest) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	res, err := c.gateway.Submit(ctx, payment)
	if err != nil {
		c.presenter.ShowTransportFailure(err)
		return nil, fmt.Errorf("[controller] payment submission failed: %w", err)
	}

	f := flow.New()
	if !res.Accepted {
		return c.reject(ctx, f)
	}

	f.Bind(res.RequestID)
	logger := c.logger.With().Str("requestId", res.RequestID).Logger()
	logger.Info().Msg("[controller] payment accepted, waiting for one-touch decision")
	c.presenter.ShowPending(res.RequestID)
	if c.config.EnableSmsFallback {
		c.scheduler.Arm(f, res.RequestID, c.config.FallbackReveal)
	}

	outcome, err := c.poller.Poll(ctx, res.RequestID)
	if err != nil {
		f.Abandon()
		if !errors.Is(err, poller.ErrAbandoned) {
			c.presenter.ShowTransportFailure(err)
		}
		logger.Warn().Err(err).Msg("[controller] flow abandoned")
		return nil, err
	}

	directive, err := exit.DirectiveFor(outcome)
	if err != nil {
		f.Abandon()
		return nil, err
	}
	landing, err := c.exit.Exit(ctx, f, directive)
	if err != nil {
		return nil, err
	}
	return &Result{
		RequestID: res.RequestID,
		Outcome:   outcome,
		Directive: directive,
		Landing:   landing,
	}, nil
}

func (c *SubmissionController) reject(ctx context.Context, f *flow.Flow) (*Result, error) {
	directive := exit.Rejected()
	c.logger.Info().Str("onReject", string(c.config.OnReject)).Msg("[controller] payment submission rejected")
	if c.config.OnReject == env.RejectModal {
		c.presenter.ShowRejection(directive.Message)
	}
	landing, err := c.exit.Exit(ctx, f, directive)
	if err != nil {
		return nil, err
	}
	return &Result{
		Outcome:   models.OutcomeDenied,
		Directive: directive,
		Landing:   landing,
	}, nil
}
