package models

import (
	"bytes"
	"fmt"
)

// Outcome is the client observable state of an approval request.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeApproved
	OutcomeDenied
)

const (
	statusPending  = "pending"
	statusApproved = "approved"
	statusDenied   = "denied"
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApproved:
		return statusApproved
	case OutcomeDenied:
		return statusDenied
	default:
		return statusPending
	}
}

// Terminal reports whether polling must stop once o is observed.
func (o Outcome) Terminal() bool {
	return o == OutcomeApproved || o == OutcomeDenied
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	outcome, ok := ParseOutcome(text)
	if !ok {
		return fmt.Errorf("unknown outcome %q", string(text))
	}
	*o = outcome
	return nil
}

// ParseOutcome maps a status body to an Outcome. Only the exact tokens
// "approved" and "denied" are terminal; anything else is pending. The second
// return value is false when the body was not one of the known tokens.
func ParseOutcome(body []byte) (Outcome, bool) {
	token := bytes.TrimSpace(body)
	if len(token) >= 2 && token[0] == '"' && token[len(token)-1] == '"' {
		token = token[1 : len(token)-1]
	}
	switch string(token) {
	case statusApproved:
		return OutcomeApproved, true
	case statusDenied:
		return OutcomeDenied, true
	case statusPending:
		return OutcomePending, true
	default:
		return OutcomePending, false
	}
}
