package payment

import (
	"context"
	"time"
)

// Repository defines the interface for payment session persistence
type Repository interface {
	// Create inserts a new session; a duplicate id fails with ErrSessionExists
	Create(ctx context.Context, session *Session) error

	// FindByID returns ErrUnknownSession when the id is not recognised
	FindByID(ctx context.Context, id string) (*Session, error)

	// MarkTerminal moves a session from created to state. It reports false
	// without error when the session was no longer created.
	MarkTerminal(ctx context.Context, id string, state SessionState, at time.Time) (bool, error)

	// FindStaleCreated lists sessions still created before olderThan
	FindStaleCreated(ctx context.Context, olderThan time.Time, limit int) ([]*Session, error)
}

// CheckoutRequest asks the gateway to open a checkout for an advertisement
type CheckoutRequest struct {
	AdID        string
	OwnerID     string
	Description string
	Amount      string
	Currency    string
}

// Checkout is the gateway's answer to a CheckoutRequest
type Checkout struct {
	SessionID   string
	RedirectURL string
}

// Gateway is the external payment provider
type Gateway interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}

// OutcomeCache remembers terminal session outcomes for the duplicate
// delivery fast path. A miss is never an error.
type OutcomeCache interface {
	Get(ctx context.Context, sessionID string) (SessionState, bool)
	Set(ctx context.Context, sessionID string, state SessionState)
}
