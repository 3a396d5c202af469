package models

import (
	"net/url"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/shopspring/decimal"
)

// PaymentRequest is the bag of form fields submitted to /payments/send.
type PaymentRequest struct {
	SendTo string
	Amount decimal.Decimal
	Extra  url.Values
}

type paymentForm struct {
	SendTo string `url:"send_to"`
	Amount string `url:"amount"`
}

func NewPaymentRequest(sendTo string, amount decimal.Decimal) *PaymentRequest {
	return &PaymentRequest{
		SendTo: sendTo,
		Amount: amount,
	}
}

// GenerateQueryString encodes the request as URL form values. Extra fields
// never override send_to or amount.
func (p *PaymentRequest) GenerateQueryString() (url.Values, error) {
	values, err := query.Values(paymentForm{
		SendTo: p.SendTo,
		Amount: p.Amount.String(),
	})
	if err != nil {
		return nil, err
	}
	for key, extra := range p.Extra {
		if values.Has(key) {
			continue
		}
		for _, v := range extra {
			values.Add(key, v)
		}
	}
	return values, nil
}

type SubmissionResult struct {
	Accepted  bool
	RequestID string
}

// RedirectDirective is the single exit side effect of a flow.
type RedirectDirective struct {
	Target  string
	Message string
}

func NewRedirectDirective(target, message string) *RedirectDirective {
	return &RedirectDirective{
		Target:  target,
		Message: message,
	}
}

type CompletedPayment struct {
	RequestID   string          `json:"requestId"`
	UserID      string          `json:"userId"`
	SendTo      string          `json:"sendTo"`
	Amount      decimal.Decimal `json:"amount"`
	Channel     string          `json:"channel"`
	ProcessedAt time.Time       `json:"processedAt"`
}

func NewCompletedPayment(approval *ApprovalRequest, processedAt time.Time) *CompletedPayment {
	return &CompletedPayment{
		RequestID:   approval.ID,
		UserID:      approval.UserID,
		SendTo:      approval.SendTo,
		Amount:      approval.Amount,
		Channel:     approval.Channel,
		ProcessedAt: processedAt.UTC(),
	}
}
