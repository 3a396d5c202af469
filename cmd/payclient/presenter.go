package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/diogomassis/payfriend/internal/dto"
)

type CodeGateway interface {
	RequestCode(ctx context.Context, requestID string) error
	SubmitCode(ctx context.Context, requestID, code string) (*dto.DecisionResponse, error)
}

// ConsolePresenter renders the flow on a terminal. Revealing the secondary
// channel hands the request id to a prompt goroutine started by Prompt.
type ConsolePresenter struct {
	mu     sync.Mutex
	out    io.Writer
	reveal chan string
}

func NewConsolePresenter(out io.Writer) *ConsolePresenter {
	return &ConsolePresenter{
		out:    out,
		reveal: make(chan string, 1),
	}
}

func (p *ConsolePresenter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *ConsolePresenter) ShowPending(requestID string) {
	p.printf("Waiting for approval on your device (request %s)...\n", requestID)
}

func (p *ConsolePresenter) RevealSecondaryChannel(requestID string) {
	select {
	case p.reveal <- requestID:
	default:
	}
}

func (p *ConsolePresenter) ShowRejection(message string) {
	p.printf("%s\n", message)
}

func (p *ConsolePresenter) ShowTransportFailure(err error) {
	p.printf("Could not reach the payment service: %v\n", err)
}

// Prompt waits for the reveal, asks the backend to send the SMS code and
// submits the codes typed on in until one is accepted, the input ends or ctx
// is done. The flow learns the decision through its own status polling.
func (p *ConsolePresenter) Prompt(ctx context.Context, codes CodeGateway, in io.Reader, logger zerolog.Logger) {
	var requestID string
	select {
	case <-ctx.Done():
		return
	case requestID = <-p.reveal:
	}

	if err := codes.RequestCode(ctx, requestID); err != nil {
		logger.Warn().Err(err).Msg("[payclient] failed to request sms code")
		return
	}
	p.printf("Taking too long? Enter the code we sent you by SMS: ")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var code string
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			code = line
		}
		if code == "" {
			continue
		}

		res, err := codes.SubmitCode(ctx, requestID, code)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("[payclient] failed to submit sms code")
			}
			return
		}
		if res.Success || res.Status != "pending" {
			return
		}
		p.printf("Invalid code, try again: ")
	}
}
