package lifecycle

import (
	"fmt"
	"strings"
)

// PaymentState is the payment facet of an advertisement
type PaymentState string

const (
	PaymentUnpaid PaymentState = "unpaid"
	PaymentPaid   PaymentState = "paid"
	// PaymentFailed is a dead end for the current session; a new session may still complete
	PaymentFailed PaymentState = "payment_failed"
)

// ReviewState is the content-safety facet
type ReviewState string

const (
	ReviewPending ReviewState = "pending"
	ReviewClean   ReviewState = "clean"
	ReviewFlagged ReviewState = "flagged"
)

// ApprovalState is the editorial approval facet
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

// Eligibility is the derived serving verdict
type Eligibility string

const (
	EligibilityEligible Eligibility = "ELIGIBLE"
	EligibilityExpired  Eligibility = "EXPIRED"
	EligibilityRejected Eligibility = "REJECTED"
	EligibilityPending  Eligibility = "PENDING"
)

// Facet names a lifecycle dimension, used in errors and metrics
type Facet string

const (
	FacetPayment  Facet = "payment"
	FacetReview   Facet = "content_safety"
	FacetApproval Facet = "approval"
)

func (s PaymentState) IsValid() bool {
	return s == PaymentUnpaid || s == PaymentPaid || s == PaymentFailed
}

func (s ReviewState) IsValid() bool {
	return s == ReviewPending || s == ReviewClean || s == ReviewFlagged
}

func (s ApprovalState) IsValid() bool {
	return s == ApprovalPending || s == ApprovalApproved || s == ApprovalRejected
}

// IsTerminal reports whether the review facet has reached a verdict
func (s ReviewState) IsTerminal() bool {
	return s == ReviewClean || s == ReviewFlagged
}

// IsTerminal reports whether the approval facet has reached a decision
func (s ApprovalState) IsTerminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// ParseScanResult maps a scanner verdict (CLEAN or FLAGGED) to a review state
func ParseScanResult(s string) (ReviewState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CLEAN":
		return ReviewClean, nil
	case "FLAGGED":
		return ReviewFlagged, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidScanResult, s)
}

func conflict(facet Facet, from, to string) error {
	return fmt.Errorf("%w: %s facet is %s, cannot become %s", ErrConflictingTransition, facet, from, to)
}
