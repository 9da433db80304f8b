package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/internal/domain/serving"
	"github.com/personal/ad-lifecycle/pkg/logger"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// MaintenanceService holds the background sweeps run by the worker
type MaintenanceService struct {
	ads        ad.Repository
	sessions   payment.Repository
	reconciler *PaymentReconciler
	serveLog   serving.Log
	now        Clock
	log        *logger.Logger
}

// NewMaintenanceService creates a new MaintenanceService. serveLog may be nil.
func NewMaintenanceService(
	ads ad.Repository,
	sessions payment.Repository,
	reconciler *PaymentReconciler,
	serveLog serving.Log,
	now Clock,
	log *logger.Logger,
) *MaintenanceService {
	if now == nil {
		now = SystemClock
	}
	return &MaintenanceService{
		ads:        ads,
		sessions:   sessions,
		reconciler: reconciler,
		serveLog:   serveLog,
		now:        now,
		log:        log,
	}
}

// ArchiveEnded archives up to batch ads whose end date has passed
func (m *MaintenanceService) ArchiveEnded(ctx context.Context, batch int) (int, error) {
	start := time.Now()
	now := m.now()

	candidates, err := m.ads.FindArchivable(ctx, now, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to find archivable ads: %w", err)
	}

	var archived, failed int
	for _, candidate := range candidates {
		id := candidate.ID()
		err := withOptimisticRetry(ctx, "archive", DefaultMaxAttempts, func() error {
			current, err := m.ads.FindByID(ctx, id)
			if err != nil {
				return err
			}
			changed, err := current.Archive(now)
			if err != nil || !changed {
				return err
			}
			return m.ads.Update(ctx, current)
		})
		if err != nil {
			failed++
			m.log.WithError(err).WithField("ad_id", id.String()).Warn("Failed to archive ad")
			continue
		}
		archived++
		monitoring.RecordArchived(string(ad.ArchiveReasonEnded))
	}

	monitoring.RecordSweep("archive", time.Since(start), archived, failed)
	if archived > 0 {
		m.log.WithField("count", archived).Info("Archived ended advertisements")
	}
	return archived, nil
}

// ExpireStaleSessions feeds EXPIRED through the reconciler for sessions still
// created after ttl. The gateway may still deliver a real outcome first.
func (m *MaintenanceService) ExpireStaleSessions(ctx context.Context, ttl time.Duration, batch int) (int, error) {
	start := time.Now()

	stale, err := m.sessions.FindStaleCreated(ctx, m.now().Add(-ttl), batch)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale sessions: %w", err)
	}

	var expired, failed int
	for _, session := range stale {
		err := m.reconciler.Reconcile(ctx, session.ID(), payment.EventExpired)
		if err != nil {
			failed++
			// Conflicts are already logged and alerted by the reconciler
			if !errors.Is(err, lifecycle.ErrConflictingTransition) {
				m.log.WithError(err).WithField("session_id", session.ID()).Warn("Failed to expire payment session")
			}
			continue
		}
		expired++
	}

	monitoring.RecordSweep("session_expiry", time.Since(start), expired, failed)
	return expired, nil
}

// FlushServeLog moves buffered serve marks into the ad store
func (m *MaintenanceService) FlushServeLog(ctx context.Context, batch int) (int, error) {
	if m.serveLog == nil {
		return 0, nil
	}
	start := time.Now()

	marks, err := m.serveLog.Drain(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to drain serve log: %w", err)
	}
	if len(marks) == 0 {
		return 0, nil
	}

	byAd := make(map[ad.AdID]time.Time, len(marks))
	for _, mark := range marks {
		if prev, ok := byAd[mark.AdID()]; !ok || mark.ServedAt().After(prev) {
			byAd[mark.AdID()] = mark.ServedAt()
		}
	}

	if err := m.ads.UpdateLastServed(ctx, byAd); err != nil {
		// Put the marks back so the next flush retries them
		for id, at := range byAd {
			if rerr := m.serveLog.Record(ctx, id, at); rerr != nil {
				m.log.WithError(rerr).WithField("ad_id", id.String()).Warn("Lost serve mark")
			}
		}
		monitoring.RecordSweep("serve_flush", time.Since(start), 0, len(byAd))
		return 0, fmt.Errorf("failed to write serve marks: %w", err)
	}

	monitoring.RecordSweep("serve_flush", time.Since(start), len(byAd), 0)
	return len(byAd), nil
}
