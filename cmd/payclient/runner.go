package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/diogomassis/payfriend/internal/env"
	"github.com/diogomassis/payfriend/internal/logging"
	"github.com/diogomassis/payfriend/internal/models"
	"github.com/diogomassis/payfriend/internal/services/gateway"
	"github.com/diogomassis/payfriend/internal/services/orchestrator"
)

func Run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}

	amount, err := decimal.NewFromString(options.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", options.Amount, err)
	}

	level := zerolog.WarnLevel
	if options.Verbose {
		level = zerolog.DebugLevel
	}
	ctx, logger := logging.SetupLogger(context.Background(), "development", level)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	vars := env.LoadClient()
	options.Apply(vars)
	if vars.PaymentBaseURL == "" {
		return fmt.Errorf("payment backend url is required (--url or PAYMENT_BASE_URL)")
	}

	gw, err := gateway.NewHTTPPaymentGateway(vars.PaymentBaseURL, vars.HTTPTimeout)
	if err != nil {
		return err
	}
	gw.WithUser(options.User)

	return pay(ctx, gw, models.NewPaymentRequest(options.SendTo, amount), orchestrator.ConfigFromEnv(vars), os.Stdin, os.Stdout, *logger)
}

type payGateway interface {
	orchestrator.Gateway
	CodeGateway
}

func pay(ctx context.Context, gw payGateway, payment *models.PaymentRequest, config orchestrator.Config, in io.Reader, out io.Writer, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	presenter := NewConsolePresenter(out)
	go presenter.Prompt(ctx, gw, in, logger)

	controller := orchestrator.NewSubmissionController(gw, presenter, clockwork.NewRealClock(), config, logger)
	result, err := controller.Submit(ctx, payment)
	if err != nil {
		return err
	}

	presenter.printf("\n%s\n", result.Landing.Flash)
	for _, p := range result.Landing.Payments {
		presenter.printf("  %s  %s  %s  (%s)\n", p.ProcessedAt.Format("2006-01-02 15:04"), p.SendTo, p.Amount.StringFixed(2), p.Channel)
	}
	return nil
}
