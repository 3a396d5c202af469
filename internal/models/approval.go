package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ChannelOneTouch = "onetouch"
	ChannelSMS      = "sms"
	ChannelExpiry   = "expiry"
)

// ApprovalRequest is the backend record behind a request id.
type ApprovalRequest struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	SendTo     string          `json:"sendTo"`
	Amount     decimal.Decimal `json:"amount"`
	Status     Outcome         `json:"status"`
	Channel    string          `json:"channel,omitempty"`
	SmsCode    string          `json:"smsCode"`
	Attempts   int             `json:"attempts"`
	CreatedAt  time.Time       `json:"createdAt"`
	ExpiresAt  time.Time       `json:"expiresAt"`
	ResolvedAt time.Time       `json:"resolvedAt,omitempty"`
}

func (a *ApprovalRequest) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// Resolve moves a pending request to a terminal status. It returns false when
// the request was already resolved.
func (a *ApprovalRequest) Resolve(status Outcome, channel string, at time.Time) bool {
	if a.Status.Terminal() || !status.Terminal() {
		return false
	}
	a.Status = status
	a.Channel = channel
	a.ResolvedAt = at.UTC()
	return true
}

type NotificationKind string

const (
	NotificationPush NotificationKind = "push"
	NotificationSMS  NotificationKind = "sms"
)

type Notification struct {
	Kind      NotificationKind  `json:"kind"`
	RequestID string            `json:"requestId"`
	UserID    string            `json:"userId"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
}
