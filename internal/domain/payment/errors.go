package payment

import "errors"

// Domain errors for payment sessions
var (
	ErrUnknownSession     = errors.New("unknown payment session")
	ErrInvalidEventType   = errors.New("invalid payment event type")
	ErrInvalidSessionID   = errors.New("payment session id cannot be empty")
	ErrInvalidAmount      = errors.New("payment amount must be greater than zero")
	ErrSessionExists      = errors.New("payment session already exists")
	ErrSessionNotCreated  = errors.New("payment session is no longer in created state")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
)
