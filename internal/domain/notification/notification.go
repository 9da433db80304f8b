package notification

import (
	"context"
	"time"
)

// Kind is the reason an owner is notified
type Kind string

const (
	KindPaymentCompleted Kind = "payment_completed"
	KindPaymentFailed    Kind = "payment_failed"
	KindAdRejected       Kind = "ad_rejected"
	KindAdFlagged        Kind = "ad_flagged"
	KindAdApproved       Kind = "ad_approved"
)

// Notification is a message for an advertisement owner
type Notification struct {
	Kind      Kind      `json:"kind"`
	OwnerID   string    `json:"owner_id"`
	AdID      string    `json:"ad_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier delivers owner notifications. Delivery failures must not undo the
// state change that triggered them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
