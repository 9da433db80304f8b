package ad

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
)

// ArchiveReason records why an advertisement left circulation
type ArchiveReason string

const (
	ArchiveReasonEnded    ArchiveReason = "ended"
	ArchiveReasonRejected ArchiveReason = "rejected"
)

// Advertisement is the purchasable unit. Pricing, schedule and creative
// fields are immutable after creation; only the lifecycle facets, the
// current payment session, archival and serving marks change.
type Advertisement struct {
	id           AdID
	ownerID      string
	name         string
	creativeType CreativeType
	description  string
	targetURL    string
	mediaRef     string

	placement     Placement
	format        Format
	region        Region
	price         decimal.Decimal
	durationValue int
	durationUnit  DurationUnit

	lifecycle        *lifecycle.Machine
	currentSessionID string

	rejectionReason string
	decidedBy       string
	decidedAt       *time.Time
	archivedAt      *time.Time
	archiveReason   ArchiveReason
	lastServedAt    *time.Time
	createdAt       time.Time
	version         int // For optimistic locking
}

// AdID is a value object representing ad identifier
type AdID struct {
	value string
}

// NewAdID creates a new AdID
func NewAdID() AdID {
	return AdID{value: uuid.New().String()}
}

// ParseAdID parses string to AdID
func ParseAdID(id string) (AdID, error) {
	if _, err := uuid.Parse(id); err != nil {
		return AdID{}, err
	}
	return AdID{value: id}, nil
}

// String returns string representation
func (id AdID) String() string {
	return id.value
}

// IsZero reports whether the id is unset
func (id AdID) IsZero() bool {
	return id.value == ""
}

// Getters
func (a *Advertisement) ID() AdID                     { return a.id }
func (a *Advertisement) OwnerID() string              { return a.ownerID }
func (a *Advertisement) Name() string                 { return a.name }
func (a *Advertisement) CreativeType() CreativeType   { return a.creativeType }
func (a *Advertisement) Description() string          { return a.description }
func (a *Advertisement) TargetURL() string            { return a.targetURL }
func (a *Advertisement) MediaRef() string             { return a.mediaRef }
func (a *Advertisement) Placement() Placement         { return a.placement }
func (a *Advertisement) Format() Format               { return a.format }
func (a *Advertisement) Region() Region               { return a.region }
func (a *Advertisement) Price() decimal.Decimal       { return a.price }
func (a *Advertisement) DurationValue() int           { return a.durationValue }
func (a *Advertisement) DurationUnit() DurationUnit   { return a.durationUnit }
func (a *Advertisement) StartDate() time.Time         { return a.lifecycle.Window().Start }
func (a *Advertisement) EndDate() time.Time           { return a.lifecycle.Window().End }
func (a *Advertisement) Lifecycle() lifecycle.Machine { return *a.lifecycle }
func (a *Advertisement) CurrentSessionID() string     { return a.currentSessionID }
func (a *Advertisement) RejectionReason() string      { return a.rejectionReason }
func (a *Advertisement) DecidedBy() string            { return a.decidedBy }
func (a *Advertisement) DecidedAt() *time.Time        { return a.decidedAt }
func (a *Advertisement) ArchivedAt() *time.Time       { return a.archivedAt }
func (a *Advertisement) ArchiveReason() ArchiveReason { return a.archiveReason }
func (a *Advertisement) LastServedAt() *time.Time     { return a.lastServedAt }
func (a *Advertisement) CreatedAt() time.Time         { return a.createdAt }
func (a *Advertisement) Version() int                 { return a.version }

func (a *Advertisement) PaymentState() lifecycle.PaymentState   { return a.lifecycle.Payment() }
func (a *Advertisement) ReviewState() lifecycle.ReviewState     { return a.lifecycle.Review() }
func (a *Advertisement) ApprovalState() lifecycle.ApprovalState { return a.lifecycle.Approval() }

// PaymentSessionID is the session that produced the current payment facet
func (a *Advertisement) PaymentSessionID() string {
	return a.lifecycle.PaymentSession()
}

// IsArchived reports whether the ad left circulation
func (a *Advertisement) IsArchived() bool {
	return a.archivedAt != nil
}

// Eligibility derives the serving verdict at now
func (a *Advertisement) Eligibility(now time.Time) lifecycle.Eligibility {
	return a.lifecycle.Eligibility(now)
}

// IsServable reports whether the ad may be shown at now
func (a *Advertisement) IsServable(now time.Time) bool {
	return !a.IsArchived() && a.Eligibility(now) == lifecycle.EligibilityEligible
}

// Business methods

// CanAcceptPayment reports why a new payment attempt is refused, if it is
func (a *Advertisement) CanAcceptPayment() error {
	if a.IsArchived() {
		return ErrAdArchived
	}
	if a.lifecycle.Payment() == lifecycle.PaymentPaid {
		return ErrAlreadyPaid
	}
	if a.lifecycle.IsHardStopped() {
		return ErrPaymentNotAllowed
	}
	return nil
}

// AttachPaymentSession makes sessionID the current payment attempt
func (a *Advertisement) AttachPaymentSession(sessionID string) error {
	if sessionID == "" {
		return lifecycle.ErrMissingSession
	}
	if err := a.CanAcceptPayment(); err != nil {
		return err
	}
	a.currentSessionID = sessionID
	return nil
}

// CompletePayment applies a completed payment for sessionID
func (a *Advertisement) CompletePayment(sessionID string) (bool, error) {
	return a.lifecycle.MarkPaid(sessionID)
}

// FailPayment applies a failed or expired payment for sessionID
func (a *Advertisement) FailPayment(sessionID string) (bool, error) {
	return a.lifecycle.MarkPaymentFailed(sessionID)
}

// MarkClean applies a clean content-safety verdict
func (a *Advertisement) MarkClean() (bool, error) {
	return a.lifecycle.MarkClean()
}

// MarkFlagged applies a flagged content-safety verdict
func (a *Advertisement) MarkFlagged() (bool, error) {
	return a.lifecycle.MarkFlagged()
}

// Approve records an editorial approval. Only a pending ad can be decided.
func (a *Advertisement) Approve(moderatorID string, at time.Time) error {
	moderatorID = strings.TrimSpace(moderatorID)
	if moderatorID == "" {
		return ErrInvalidModerator
	}
	if a.lifecycle.Approval() != lifecycle.ApprovalPending {
		return lifecycle.ErrAlreadyDecided
	}
	if _, err := a.lifecycle.Approve(); err != nil {
		return err
	}
	a.decidedBy = moderatorID
	a.decidedAt = &at
	return nil
}

// Reject records a permanent editorial rejection and archives the ad
func (a *Advertisement) Reject(moderatorID, reason string, at time.Time) error {
	moderatorID = strings.TrimSpace(moderatorID)
	reason = strings.TrimSpace(reason)
	if moderatorID == "" {
		return ErrInvalidModerator
	}
	if reason == "" {
		return ErrReasonRequired
	}
	if a.lifecycle.Approval() != lifecycle.ApprovalPending {
		return lifecycle.ErrAlreadyDecided
	}
	if _, err := a.lifecycle.Reject(); err != nil {
		return err
	}
	a.rejectionReason = reason
	a.decidedBy = moderatorID
	a.decidedAt = &at
	if a.archivedAt == nil {
		a.archivedAt = &at
		a.archiveReason = ArchiveReasonRejected
	}
	return nil
}

// Archive takes an ended ad out of circulation. Archival is irreversible.
func (a *Advertisement) Archive(now time.Time) (bool, error) {
	if a.IsArchived() {
		return false, nil
	}
	if !a.lifecycle.Window().HasEnded(now) {
		return false, ErrNotArchivable
	}
	a.archivedAt = &now
	a.archiveReason = ArchiveReasonEnded
	return true, nil
}

// MarkServed moves lastServedAt forward; older marks are ignored
func (a *Advertisement) MarkServed(at time.Time) bool {
	if a.lastServedAt != nil && !at.After(*a.lastServedAt) {
		return false
	}
	a.lastServedAt = &at
	return true
}

// IncrementVersion is called by repositories after a successful write
func (a *Advertisement) IncrementVersion() {
	a.version++
}

// Clone returns a copy that shares no mutable state with a
func (a *Advertisement) Clone() *Advertisement {
	c := *a
	machine := *a.lifecycle
	c.lifecycle = &machine
	return &c
}
