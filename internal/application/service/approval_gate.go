package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
	"github.com/personal/ad-lifecycle/internal/domain/notification"
	"github.com/personal/ad-lifecycle/pkg/logger"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// ApprovalGate applies editorial decisions to the approval facet
type ApprovalGate struct {
	ads         ad.Repository
	notifier    notification.Notifier
	maxAttempts int
	now         Clock
	log         *logger.Logger
}

// NewApprovalGate creates a new ApprovalGate. notifier may be nil.
func NewApprovalGate(ads ad.Repository, notifier notification.Notifier, now Clock, log *logger.Logger) *ApprovalGate {
	if now == nil {
		now = SystemClock
	}
	return &ApprovalGate{
		ads:         ads,
		notifier:    notifier,
		maxAttempts: DefaultMaxAttempts,
		now:         now,
		log:         log,
	}
}

// ReviewRequest carries a moderator decision
type ReviewRequest struct {
	ModeratorID string `json:"moderatorId" validate:"required"`
	Reason      string `json:"reason,omitempty" validate:"max=1000"`
}

// Approve approves a pending ad. Any decided ad fails with
// lifecycle.ErrAlreadyDecided.
func (g *ApprovalGate) Approve(ctx context.Context, adID, moderatorID string) error {
	return g.decide(ctx, "approve", adID, moderatorID, func(a *ad.Advertisement) error {
		return a.Approve(moderatorID, g.now())
	})
}

// Reject permanently rejects a pending ad with a non-empty reason and
// archives it
func (g *ApprovalGate) Reject(ctx context.Context, adID, moderatorID, reason string) error {
	return g.decide(ctx, "reject", adID, moderatorID, func(a *ad.Advertisement) error {
		return a.Reject(moderatorID, reason, g.now())
	})
}

func (g *ApprovalGate) decide(ctx context.Context, decision, adID, moderatorID string, apply func(*ad.Advertisement) error) error {
	id, err := parseAdID(adID)
	if err != nil {
		return err
	}
	entry := g.log.WithFields(logger.Fields{
		"ad_id":        adID,
		"moderator_id": moderatorID,
		"decision":     decision,
	})

	var decided *ad.Advertisement
	err = withOptimisticRetry(ctx, decision, g.maxAttempts, func() error {
		current, err := g.ads.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(current); err != nil {
			return err
		}
		if err := g.ads.Update(ctx, current); err != nil {
			return err
		}
		decided = current
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, lifecycle.ErrAlreadyDecided):
		monitoring.RecordModeration(decision, "already_decided")
		entry.Info("Moderator acted on an already decided advertisement")
		return err
	case errors.Is(err, ad.ErrAdNotFound), errors.Is(err, ad.ErrReasonRequired), errors.Is(err, ad.ErrInvalidModerator):
		monitoring.RecordModeration(decision, "rejected_input")
		return err
	default:
		monitoring.RecordModeration(decision, "error")
		return fmt.Errorf("failed to %s ad: %w", decision, err)
	}

	monitoring.RecordModeration(decision, "applied")
	monitoring.RecordTransition(string(lifecycle.FacetApproval), string(decided.ApprovalState()), true, nil)
	if decided.ApprovalState() == lifecycle.ApprovalRejected {
		monitoring.RecordArchived(string(ad.ArchiveReasonRejected))
	}
	entry.Info("Editorial decision recorded")

	g.notify(ctx, decided)
	return nil
}

func (g *ApprovalGate) notify(ctx context.Context, a *ad.Advertisement) {
	if g.notifier == nil {
		return
	}

	n := notification.Notification{
		Kind:      notification.KindAdApproved,
		OwnerID:   a.OwnerID(),
		AdID:      a.ID().String(),
		Message:   "Your advertisement was approved.",
		CreatedAt: g.now(),
	}
	if a.ApprovalState() == lifecycle.ApprovalRejected {
		n.Kind = notification.KindAdRejected
		n.Message = fmt.Sprintf("Your advertisement was rejected: %s", a.RejectionReason())
	}

	if err := g.notifier.Notify(ctx, n); err != nil {
		g.log.WithError(err).WithField("ad_id", a.ID().String()).Warn("Failed to notify owner about decision")
	}
}

// ListPending lists unarchived ads awaiting an editorial decision, oldest first
func (g *ApprovalGate) ListPending(ctx context.Context, limit, offset int) ([]*AdStatusResponse, error) {
	ads, err := g.ads.FindPendingApproval(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending ads: %w", err)
	}

	now := g.now()
	items := make([]*AdStatusResponse, 0, len(ads))
	for _, a := range ads {
		items = append(items, NewAdStatusResponse(a, now))
	}
	return items, nil
}
