package onetouch

import "errors"

var (
	ErrNotFound        = errors.New("approval request not found")
	ErrAlreadyResolved = errors.New("approval request already resolved")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrExpired         = errors.New("approval request expired")
	ErrInvalidPayment  = errors.New("invalid payment")
	ErrInvalidStatus   = errors.New("invalid approval status")

	errNotDue = errors.New("approval request not due")
)
