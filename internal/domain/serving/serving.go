package serving

import (
	"context"
	"sort"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
)

// ServeMark records that an advertisement was shown at a given instant
type ServeMark struct {
	adID     ad.AdID
	servedAt time.Time
}

// NewServeMark creates a new serve mark
func NewServeMark(adID ad.AdID, servedAt time.Time) ServeMark {
	return ServeMark{adID: adID, servedAt: servedAt}
}

// Getters
func (m ServeMark) AdID() ad.AdID       { return m.adID }
func (m ServeMark) ServedAt() time.Time { return m.servedAt }

// Score is the sorted-set score of the mark, in unix milliseconds
func (m ServeMark) Score() float64 {
	return float64(m.servedAt.UnixMilli())
}

// Log buffers serve marks between the impression endpoint and the store.
// Marks only move forward; an older mark never replaces a newer one.
type Log interface {
	// Record stores a mark for adID at servedAt
	Record(ctx context.Context, adID ad.AdID, servedAt time.Time) error

	// LastServed returns the buffered marks for ids; missing ids are omitted
	LastServed(ctx context.Context, ids []ad.AdID) (map[ad.AdID]time.Time, error)

	// Drain removes and returns up to limit buffered marks
	Drain(ctx context.Context, limit int) ([]ServeMark, error)
}

// Order sorts ads for fair rotation: least recently served first with
// never-served ads ahead of all others, then by creation time, then by id.
// overrides holds fresher marks than the ads carry themselves.
func Order(ads []*ad.Advertisement, overrides map[ad.AdID]time.Time) {
	last := func(a *ad.Advertisement) (time.Time, bool) {
		var t time.Time
		seen := false
		if ls := a.LastServedAt(); ls != nil {
			t, seen = *ls, true
		}
		if o, ok := overrides[a.ID()]; ok && (!seen || o.After(t)) {
			t, seen = o, true
		}
		return t, seen
	}

	sort.SliceStable(ads, func(i, j int) bool {
		ti, si := last(ads[i])
		tj, sj := last(ads[j])
		if si != sj {
			return !si
		}
		if si && !ti.Equal(tj) {
			return ti.Before(tj)
		}
		if !ads[i].CreatedAt().Equal(ads[j].CreatedAt()) {
			return ads[i].CreatedAt().Before(ads[j].CreatedAt())
		}
		return ads[i].ID().String() < ads[j].ID().String()
	})
}
