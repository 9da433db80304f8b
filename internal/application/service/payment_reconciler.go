package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
	"github.com/personal/ad-lifecycle/internal/domain/notification"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/pkg/logger"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// PaymentReconciler applies payment gateway notifications to advertisements.
// Notifications arrive at least once and in any order; the session id is the
// idempotency key.
type PaymentReconciler struct {
	ads         ad.Repository
	sessions    payment.Repository
	cache       payment.OutcomeCache
	notifier    notification.Notifier
	maxAttempts int
	now         Clock
	log         *logger.Logger
}

// NewPaymentReconciler creates a new PaymentReconciler. cache and notifier
// may be nil.
func NewPaymentReconciler(
	ads ad.Repository,
	sessions payment.Repository,
	cache payment.OutcomeCache,
	notifier notification.Notifier,
	now Clock,
	log *logger.Logger,
) *PaymentReconciler {
	if now == nil {
		now = SystemClock
	}
	return &PaymentReconciler{
		ads:         ads,
		sessions:    sessions,
		cache:       cache,
		notifier:    notifier,
		maxAttempts: DefaultMaxAttempts,
		now:         now,
		log:         log,
	}
}

// Reconcile applies eventType for sessionID. Duplicate deliveries succeed
// without changing anything. The ad facet is written before the session is
// marked terminal, so a crash between the two writes is repaired by the
// gateway's redelivery.
func (r *PaymentReconciler) Reconcile(ctx context.Context, sessionID string, eventType payment.EventType) error {
	event, err := payment.ParseEventType(string(eventType))
	if err != nil {
		return err
	}
	outcome := event.Outcome()
	entry := r.log.WithFields(logger.Fields{
		"session_id": sessionID,
		"event":      string(event),
	})

	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, sessionID); ok && cached == outcome {
			monitoring.RecordPaymentCallback(string(event), "duplicate")
			entry.Debug("Duplicate payment notification served from cache")
			return nil
		}
	}

	session, err := r.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, payment.ErrUnknownSession) {
			monitoring.RecordUnknownSession()
			monitoring.RecordPaymentCallback(string(event), "unknown_session")
			entry.Error("Payment notification for unknown session; gateway and store are out of sync")
			return err
		}
		return fmt.Errorf("failed to find payment session: %w", err)
	}

	if session.State().IsTerminal() {
		if session.State() == outcome {
			r.remember(ctx, sessionID, outcome)
			monitoring.RecordPaymentCallback(string(event), "duplicate")
			entry.Debug("Duplicate payment notification")
			return nil
		}
		monitoring.RecordConflict(string(lifecycle.FacetPayment))
		monitoring.RecordPaymentCallback(string(event), "conflict")
		entry.WithField("session_state", string(session.State())).
			Error("Payment notification contradicts recorded session outcome")
		return fmt.Errorf("%w: session %s is %s, received %s",
			lifecycle.ErrConflictingTransition, sessionID, session.State(), event)
	}

	adID, err := ad.ParseAdID(session.AdID())
	if err != nil {
		return fmt.Errorf("payment session %s references invalid ad id: %w", sessionID, err)
	}

	var (
		changed     bool
		interrupted bool
		owner       string
	)
	err = withOptimisticRetry(ctx, "reconcile_payment", r.maxAttempts, func() error {
		current, err := r.ads.FindByID(ctx, adID)
		if err != nil {
			return err
		}
		owner = current.OwnerID()

		// Paid by this session while the session row is still created
		interrupted = event != payment.EventCompleted &&
			current.PaymentState() == lifecycle.PaymentPaid &&
			current.PaymentSessionID() == sessionID
		if interrupted {
			return nil
		}

		if event == payment.EventCompleted {
			changed, err = current.CompletePayment(sessionID)
		} else {
			changed, err = current.FailPayment(sessionID)
		}
		monitoring.RecordTransition(string(lifecycle.FacetPayment), string(outcome), changed, err)
		if err != nil || !changed {
			return err
		}
		return r.ads.Update(ctx, current)
	})
	if err != nil {
		if errors.Is(err, lifecycle.ErrConflictingTransition) {
			monitoring.RecordConflict(string(lifecycle.FacetPayment))
			monitoring.RecordPaymentCallback(string(event), "conflict")
			entry.WithError(err).WithField("ad_id", adID.String()).
				Error("Conflicting payment transition; possible double charge or replay")
			return err
		}
		monitoring.RecordPaymentCallback(string(event), "error")
		return fmt.Errorf("failed to apply payment to ad %s: %w", adID, err)
	}

	if interrupted {
		return r.finishInterrupted(ctx, sessionID, adID, event)
	}

	if _, err := r.sessions.MarkTerminal(ctx, sessionID, outcome, r.now()); err != nil {
		monitoring.RecordPaymentCallback(string(event), "error")
		return fmt.Errorf("failed to mark payment session terminal: %w", err)
	}
	r.remember(ctx, sessionID, outcome)

	result := "noop"
	if changed {
		result = "applied"
		r.notify(ctx, owner, adID, event)
	}
	monitoring.RecordPaymentCallback(string(event), result)
	entry.WithFields(logger.Fields{
		"ad_id":   adID.String(),
		"changed": changed,
	}).Info("Payment notification reconciled")

	return nil
}

// finishInterrupted completes a session whose completion reached the ad but
// not the session row. An expiry then succeeds; a failure from the gateway
// still contradicts the recorded payment.
func (r *PaymentReconciler) finishInterrupted(ctx context.Context, sessionID string, adID ad.AdID, event payment.EventType) error {
	if _, err := r.sessions.MarkTerminal(ctx, sessionID, payment.SessionCompleted, r.now()); err != nil {
		monitoring.RecordPaymentCallback(string(event), "error")
		return fmt.Errorf("failed to complete interrupted payment session: %w", err)
	}
	r.remember(ctx, sessionID, payment.SessionCompleted)

	entry := r.log.WithFields(logger.Fields{
		"session_id": sessionID,
		"ad_id":      adID.String(),
		"event":      string(event),
	})
	if event == payment.EventExpired {
		monitoring.RecordPaymentCallback(string(event), "repaired")
		entry.Warn("Completed payment session left open by an interrupted reconcile")
		return nil
	}

	monitoring.RecordConflict(string(lifecycle.FacetPayment))
	monitoring.RecordPaymentCallback(string(event), "conflict")
	entry.Error("Payment notification contradicts a completed payment")
	return fmt.Errorf("%w: session %s completed, received %s",
		lifecycle.ErrConflictingTransition, sessionID, event)
}

func (r *PaymentReconciler) remember(ctx context.Context, sessionID string, outcome payment.SessionState) {
	if r.cache != nil {
		r.cache.Set(ctx, sessionID, outcome)
	}
}

func (r *PaymentReconciler) notify(ctx context.Context, owner string, adID ad.AdID, event payment.EventType) {
	if r.notifier == nil {
		return
	}

	n := notification.Notification{
		Kind:      notification.KindPaymentCompleted,
		OwnerID:   owner,
		AdID:      adID.String(),
		Message:   "Payment received. Your advertisement will run once it passes review.",
		CreatedAt: r.now(),
	}
	if event != payment.EventCompleted {
		n.Kind = notification.KindPaymentFailed
		n.Message = "Payment did not complete. You can retry payment from your dashboard."
	}

	if err := r.notifier.Notify(ctx, n); err != nil {
		r.log.WithError(err).WithField("ad_id", adID.String()).Warn("Failed to notify owner about payment")
	}
}
