package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SessionState is the state of one payment attempt
type SessionState string

const (
	SessionCreated   SessionState = "created"
	SessionCompleted SessionState = "completed"
	SessionFailed    SessionState = "failed"
	SessionExpired   SessionState = "expired"
)

// IsTerminal reports whether no further transition is accepted
func (s SessionState) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionExpired
}

func (s SessionState) IsValid() bool {
	return s == SessionCreated || s.IsTerminal()
}

// EventType is a payment gateway notification kind
type EventType string

const (
	EventCompleted EventType = "COMPLETED"
	EventFailed    EventType = "FAILED"
	EventExpired   EventType = "EXPIRED"
)

// ParseEventType parses a gateway event type, case-insensitively
func ParseEventType(s string) (EventType, error) {
	e := EventType(strings.ToUpper(strings.TrimSpace(s)))
	switch e {
	case EventCompleted, EventFailed, EventExpired:
		return e, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidEventType, s)
}

// Outcome is the terminal session state an event leads to
func (e EventType) Outcome() SessionState {
	switch e {
	case EventCompleted:
		return SessionCompleted
	case EventFailed:
		return SessionFailed
	case EventExpired:
		return SessionExpired
	}
	return ""
}

// Session is one attempt to pay for an advertisement. Its id is the
// gateway's session id and the idempotency key for gateway notifications.
type Session struct {
	id          string
	adID        string
	amount      decimal.Decimal
	currency    string
	state       SessionState
	redirectURL string
	createdAt   time.Time
	completedAt *time.Time
}

// NewSession creates a session in the created state
func NewSession(id, adID string, amount decimal.Decimal, currency, redirectURL string, createdAt time.Time) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidSessionID
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return &Session{
		id:          id,
		adID:        adID,
		amount:      amount,
		currency:    currency,
		state:       SessionCreated,
		redirectURL: redirectURL,
		createdAt:   createdAt,
	}, nil
}

// ReconstructSession rebuilds a session from persistence data
func ReconstructSession(id, adID string, amount decimal.Decimal, currency string, state SessionState, redirectURL string, createdAt time.Time, completedAt *time.Time) (*Session, error) {
	if !state.IsValid() {
		return nil, fmt.Errorf("invalid session state %q", state)
	}
	return &Session{
		id:          id,
		adID:        adID,
		amount:      amount,
		currency:    currency,
		state:       state,
		redirectURL: redirectURL,
		createdAt:   createdAt,
		completedAt: completedAt,
	}, nil
}

// Getters
func (s *Session) ID() string              { return s.id }
func (s *Session) AdID() string            { return s.adID }
func (s *Session) Amount() decimal.Decimal { return s.amount }
func (s *Session) Currency() string        { return s.currency }
func (s *Session) State() SessionState     { return s.state }
func (s *Session) RedirectURL() string     { return s.redirectURL }
func (s *Session) CreatedAt() time.Time    { return s.createdAt }
func (s *Session) CompletedAt() *time.Time { return s.completedAt }

// Terminate moves a created session to the terminal state of event. It
// returns false when the session already holds that outcome.
func (s *Session) Terminate(event EventType, at time.Time) (bool, error) {
	outcome := event.Outcome()
	if outcome == "" {
		return false, fmt.Errorf("%w: %q", ErrInvalidEventType, event)
	}
	if s.state == outcome {
		return false, nil
	}
	if s.state.IsTerminal() {
		return false, ErrSessionNotCreated
	}
	s.state = outcome
	s.completedAt = &at
	return true, nil
}

// Clone returns an independent copy
func (s *Session) Clone() *Session {
	c := *s
	return &c
}
