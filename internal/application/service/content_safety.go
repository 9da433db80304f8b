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

// ContentSafetyService applies automated scanner verdicts to the review facet
type ContentSafetyService struct {
	ads         ad.Repository
	notifier    notification.Notifier
	maxAttempts int
	now         Clock
	log         *logger.Logger
}

// NewContentSafetyService creates a new ContentSafetyService. notifier may be nil.
func NewContentSafetyService(ads ad.Repository, notifier notification.Notifier, now Clock, log *logger.Logger) *ContentSafetyService {
	if now == nil {
		now = SystemClock
	}
	return &ContentSafetyService{
		ads:         ads,
		notifier:    notifier,
		maxAttempts: DefaultMaxAttempts,
		now:         now,
		log:         log,
	}
}

// ScanResultRequest is the scanner callback payload
type ScanResultRequest struct {
	AdvertisementID string `json:"advertisementId" validate:"required"`
	Result          string `json:"result" validate:"required,oneof=CLEAN FLAGGED clean flagged"`
}

// RecordResult applies a CLEAN or FLAGGED verdict. Repeating a verdict is a
// no-op; the opposite verdict fails with lifecycle.ErrConflictingTransition.
func (s *ContentSafetyService) RecordResult(ctx context.Context, adID, result string) error {
	verdict, err := lifecycle.ParseScanResult(result)
	if err != nil {
		return err
	}
	id, err := parseAdID(adID)
	if err != nil {
		return err
	}

	var (
		changed bool
		owner   string
	)
	err = withOptimisticRetry(ctx, "content_safety", s.maxAttempts, func() error {
		current, err := s.ads.FindByID(ctx, id)
		if err != nil {
			return err
		}
		owner = current.OwnerID()

		if verdict == lifecycle.ReviewClean {
			changed, err = current.MarkClean()
		} else {
			changed, err = current.MarkFlagged()
		}
		monitoring.RecordTransition(string(lifecycle.FacetReview), string(verdict), changed, err)
		if err != nil || !changed {
			return err
		}
		return s.ads.Update(ctx, current)
	})

	entry := s.log.WithFields(logger.Fields{"ad_id": adID, "result": string(verdict)})
	if err != nil {
		if errors.Is(err, lifecycle.ErrConflictingTransition) {
			monitoring.RecordConflict(string(lifecycle.FacetReview))
			entry.WithError(err).Error("Conflicting content-safety verdict")
			return err
		}
		if errors.Is(err, ad.ErrAdNotFound) {
			return err
		}
		return fmt.Errorf("failed to record content-safety result: %w", err)
	}

	monitoring.RecordContentSafety(string(verdict))
	entry.WithField("changed", changed).Info("Content-safety result recorded")

	if changed && verdict == lifecycle.ReviewFlagged && s.notifier != nil {
		n := notification.Notification{
			Kind:      notification.KindAdFlagged,
			OwnerID:   owner,
			AdID:      adID,
			Message:   "Your advertisement's media did not pass the content-safety check.",
			CreatedAt: s.now(),
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			entry.WithError(err).Warn("Failed to notify owner about flagged media")
		}
	}
	return nil
}
