package main

import (
	"time"

	"github.com/diogomassis/payfriend/internal/env"
)

// Options are the payclient flags. Unset flags fall back to the environment.
type Options struct {
	URL            string        `short:"u" long:"url" description:"payment backend base url (PAYMENT_BASE_URL)"`
	User           string        `long:"user" description:"user id sent with every request" default:"anonymous"`
	SendTo         string        `short:"t" long:"to" description:"payment recipient" required:"true"`
	Amount         string        `short:"a" long:"amount" description:"payment amount" required:"true"`
	PollInterval   time.Duration `long:"poll-interval" description:"delay between status queries"`
	FallbackReveal time.Duration `long:"fallback-after" description:"delay before offering the SMS code"`
	MaxPolls       int           `long:"max-polls" description:"maximum number of status queries, 0 for unbounded"`
	PollTimeout    time.Duration `long:"poll-timeout" description:"maximum time spent polling"`
	NoSms          bool          `long:"no-sms" description:"never offer the SMS code fallback"`
	OnReject       string        `long:"on-reject" description:"behavior on a refused submission" choice:"redirect" choice:"modal"`
	Verbose        bool          `short:"v" long:"verbose" description:"debug logging"`
}

// Apply overrides vars with the flags that were set.
func (o *Options) Apply(vars *env.ClientVariables) {
	if o.URL != "" {
		vars.PaymentBaseURL = o.URL
	}
	if o.PollInterval > 0 {
		vars.PollInterval = o.PollInterval
	}
	if o.FallbackReveal > 0 {
		vars.FallbackReveal = o.FallbackReveal
	}
	if o.MaxPolls > 0 {
		vars.MaxPolls = o.MaxPolls
	}
	if o.PollTimeout > 0 {
		vars.PollTimeout = o.PollTimeout
	}
	if o.NoSms {
		vars.EnableSmsFallback = false
	}
	if o.OnReject != "" {
		vars.OnReject = env.RejectBehavior(o.OnReject)
	}
}
