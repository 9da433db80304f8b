package service

import (
	"context"
	"fmt"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/media"
	"github.com/personal/ad-lifecycle/internal/domain/serving"
	"github.com/personal/ad-lifecycle/pkg/logger"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// ServingSelector answers which advertisements may fill a slot right now,
// in fair rotation order. Selection is read-only.
type ServingSelector struct {
	reader   ad.ServingReader
	ads      ad.Repository
	serveLog serving.Log
	media    media.Store
	mediaTTL time.Duration
	now      Clock
	log      *logger.Logger
}

// NewServingSelector creates a new ServingSelector. serveLog and mediaStore
// may be nil; without a serve log impressions are written straight to ads.
func NewServingSelector(
	reader ad.ServingReader,
	ads ad.Repository,
	serveLog serving.Log,
	mediaStore media.Store,
	mediaTTL time.Duration,
	now Clock,
	log *logger.Logger,
) *ServingSelector {
	if now == nil {
		now = SystemClock
	}
	return &ServingSelector{
		reader:   reader,
		ads:      ads,
		serveLog: serveLog,
		media:    mediaStore,
		mediaTTL: mediaTTL,
		now:      now,
		log:      log,
	}
}

// Select returns eligible ads for placement that reach viewerRegion at now,
// least recently served first. No candidates yields an empty slice.
func (s *ServingSelector) Select(ctx context.Context, placement ad.Placement, viewerRegion ad.Region, now time.Time) ([]*ad.Advertisement, error) {
	placement, err := ad.ParsePlacement(string(placement))
	if err != nil {
		return nil, err
	}
	viewerRegion, err = ad.ParseRegion(string(viewerRegion))
	if err != nil {
		return nil, err
	}

	candidates, err := s.reader.ListServable(ctx, placement, ad.RegionsReaching(viewerRegion), now)
	if err != nil {
		return nil, fmt.Errorf("failed to list servable ads: %w", err)
	}

	// Replica rows are re-checked against the derived verdict
	selected := make([]*ad.Advertisement, 0, len(candidates))
	ids := make([]ad.AdID, 0, len(candidates))
	for _, a := range candidates {
		if a.Placement() != placement || !a.Region().Contains(viewerRegion) || !a.IsServable(now) {
			continue
		}
		selected = append(selected, a)
		ids = append(ids, a.ID())
	}

	var marks map[ad.AdID]time.Time
	if s.serveLog != nil && len(ids) > 0 {
		marks, err = s.serveLog.LastServed(ctx, ids)
		if err != nil {
			// Stored marks are at most one flush interval old
			s.log.WithError(err).Warn("Serve log unavailable, rotating on stored marks")
			marks = nil
		}
	}
	serving.Order(selected, marks)

	monitoring.RecordSelection(string(placement), len(selected))
	return selected, nil
}

// SelectNow is Select at the service clock
func (s *ServingSelector) SelectNow(ctx context.Context, placement ad.Placement, viewerRegion ad.Region) ([]*ad.Advertisement, error) {
	return s.Select(ctx, placement, viewerRegion, s.now())
}

// RecordImpression notes that adID was shown at servedAt, feeding rotation.
// Marks never move backwards, so a servedAt after now is recorded as now.
func (s *ServingSelector) RecordImpression(ctx context.Context, adID string, servedAt time.Time) error {
	id, err := parseAdID(adID)
	if err != nil {
		return err
	}
	if now := s.now(); servedAt.IsZero() || servedAt.After(now) {
		servedAt = now
	}

	if s.serveLog != nil {
		if err := s.serveLog.Record(ctx, id, servedAt); err != nil {
			return fmt.Errorf("failed to record impression: %w", err)
		}
		return nil
	}
	if err := s.ads.UpdateLastServed(ctx, map[ad.AdID]time.Time{id: servedAt}); err != nil {
		return fmt.Errorf("failed to record impression: %w", err)
	}
	return nil
}

// ServedAd is the page-facing view of a selected advertisement
type ServedAd struct {
	AdvertisementID string `json:"advertisementId"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Description     string `json:"description,omitempty"`
	TargetURL       string `json:"targetUrl,omitempty"`
	Format          string `json:"format"`
	MediaReference  string `json:"mediaReference"`
	MediaURL        string `json:"mediaUrl,omitempty"`
}

// ToServed builds page-facing views, presigning media URLs when a store is
// configured. Presign failures leave MediaURL empty.
func (s *ServingSelector) ToServed(ctx context.Context, ads []*ad.Advertisement) []ServedAd {
	result := make([]ServedAd, 0, len(ads))
	for _, a := range ads {
		item := ServedAd{
			AdvertisementID: a.ID().String(),
			Name:            a.Name(),
			Type:            string(a.CreativeType()),
			Description:     a.Description(),
			TargetURL:       a.TargetURL(),
			Format:          string(a.Format()),
			MediaReference:  a.MediaRef(),
		}
		if s.media != nil {
			url, err := s.media.PresignURL(ctx, a.MediaRef(), s.mediaTTL)
			if err != nil {
				s.log.WithError(err).WithField("ad_id", item.AdvertisementID).Warn("Failed to presign media URL")
			} else {
				item.MediaURL = url
			}
		}
		result = append(result, item)
	}
	return result
}
