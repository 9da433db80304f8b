package lifecycle

import (
	"fmt"
	"time"
)

// Window is the half-open serving interval [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates that end is strictly after start
func NewWindow(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, ErrInvalidWindow
	}
	return Window{Start: start, End: end}, nil
}

// Contains reports whether t lies in [Start, End)
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// HasEnded reports whether t is at or past End
func (w Window) HasEnded(t time.Time) bool {
	return !t.Before(w.End)
}

// Machine tracks the three independent facets of one advertisement and
// derives its eligibility. Facets never move back to a non-terminal state.
type Machine struct {
	window         Window
	payment        PaymentState
	paymentSession string
	review         ReviewState
	approval       ApprovalState
}

// New creates a machine in its initial state
func New(window Window) *Machine {
	return &Machine{
		window:   window,
		payment:  PaymentUnpaid,
		review:   ReviewPending,
		approval: ApprovalPending,
	}
}

// Restore rebuilds a machine from persisted facet values
func Restore(window Window, payment PaymentState, paymentSession string, review ReviewState, approval ApprovalState) (*Machine, error) {
	if !payment.IsValid() {
		return nil, fmt.Errorf("%w: payment %q", ErrInvalidState, payment)
	}
	if !review.IsValid() {
		return nil, fmt.Errorf("%w: review %q", ErrInvalidState, review)
	}
	if !approval.IsValid() {
		return nil, fmt.Errorf("%w: approval %q", ErrInvalidState, approval)
	}
	if payment != PaymentUnpaid && paymentSession == "" {
		return nil, fmt.Errorf("%w: payment %q without session", ErrInvalidState, payment)
	}
	return &Machine{
		window:         window,
		payment:        payment,
		paymentSession: paymentSession,
		review:         review,
		approval:       approval,
	}, nil
}

// Getters
func (m *Machine) Window() Window          { return m.window }
func (m *Machine) Payment() PaymentState   { return m.payment }
func (m *Machine) PaymentSession() string  { return m.paymentSession }
func (m *Machine) Review() ReviewState     { return m.review }
func (m *Machine) Approval() ApprovalState { return m.approval }

// MarkPaid records that sessionID completed. Completing twice with the same
// session is a no-op; a different session completing a paid advertisement, or
// a session that already failed later completing, is a conflict.
func (m *Machine) MarkPaid(sessionID string) (bool, error) {
	if sessionID == "" {
		return false, ErrMissingSession
	}

	switch m.payment {
	case PaymentPaid:
		if m.paymentSession == sessionID {
			return false, nil
		}
		return false, fmt.Errorf("%w: already paid by session %s, session %s completed too",
			ErrConflictingTransition, m.paymentSession, sessionID)
	case PaymentFailed:
		if m.paymentSession == sessionID {
			return false, conflict(FacetPayment, string(PaymentFailed), string(PaymentPaid))
		}
	}

	m.payment = PaymentPaid
	m.paymentSession = sessionID
	return true, nil
}

// MarkPaymentFailed records that sessionID failed or expired. A failure of a
// superseded session does not touch a paid facet.
func (m *Machine) MarkPaymentFailed(sessionID string) (bool, error) {
	if sessionID == "" {
		return false, ErrMissingSession
	}

	switch m.payment {
	case PaymentPaid:
		if m.paymentSession == sessionID {
			return false, conflict(FacetPayment, string(PaymentPaid), string(PaymentFailed))
		}
		return false, nil
	case PaymentFailed:
		if m.paymentSession == sessionID {
			return false, nil
		}
	}

	m.payment = PaymentFailed
	m.paymentSession = sessionID
	return true, nil
}

// MarkClean records a clean content-safety verdict
func (m *Machine) MarkClean() (bool, error) {
	switch m.review {
	case ReviewClean:
		return false, nil
	case ReviewFlagged:
		return false, conflict(FacetReview, string(ReviewFlagged), string(ReviewClean))
	}
	m.review = ReviewClean
	return true, nil
}

// MarkFlagged records a flagged content-safety verdict
func (m *Machine) MarkFlagged() (bool, error) {
	switch m.review {
	case ReviewFlagged:
		return false, nil
	case ReviewClean:
		return false, conflict(FacetReview, string(ReviewClean), string(ReviewFlagged))
	}
	m.review = ReviewFlagged
	return true, nil
}

// Approve records editorial approval
func (m *Machine) Approve() (bool, error) {
	switch m.approval {
	case ApprovalApproved:
		return false, nil
	case ApprovalRejected:
		return false, conflict(FacetApproval, string(ApprovalRejected), string(ApprovalApproved))
	}
	m.approval = ApprovalApproved
	return true, nil
}

// Reject records editorial rejection; it is permanent
func (m *Machine) Reject() (bool, error) {
	switch m.approval {
	case ApprovalRejected:
		return false, nil
	case ApprovalApproved:
		return false, conflict(FacetApproval, string(ApprovalApproved), string(ApprovalRejected))
	}
	m.approval = ApprovalRejected
	return true, nil
}

// IsHardStopped reports a rejection or flag, which no later event can undo
func (m *Machine) IsHardStopped() bool {
	return m.approval == ApprovalRejected || m.review == ReviewFlagged
}

// IsSatisfied reports whether every facet holds its serving value
func (m *Machine) IsSatisfied() bool {
	return m.payment == PaymentPaid && m.review == ReviewClean && m.approval == ApprovalApproved
}

// Eligibility derives the serving verdict at now
func (m *Machine) Eligibility(now time.Time) Eligibility {
	if m.IsHardStopped() {
		return EligibilityRejected
	}
	if !m.IsSatisfied() {
		return EligibilityPending
	}
	if m.window.HasEnded(now) {
		return EligibilityExpired
	}
	if m.window.Contains(now) {
		return EligibilityEligible
	}
	return EligibilityPending
}
