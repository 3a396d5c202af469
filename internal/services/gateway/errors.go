package gateway

import "errors"

var (
	// ErrServiceUnavailable marks transport failures: the endpoint could not
	// be reached or answered with a 5xx.
	ErrServiceUnavailable  = errors.New("payment service is unavailable")
	ErrRequestRejected     = errors.New("payment service rejected the request")
	ErrMalformedSubmission = errors.New("malformed submission response")
	ErrMalformedStatus     = errors.New("malformed status response")
)
