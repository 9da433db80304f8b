package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/lifecycle"
)

// MemoryAdRepository is an in-memory implementation for testing and local runs.
// It stores copies so callers never share state with the store.
type MemoryAdRepository struct {
	ads map[string]*ad.Advertisement
	mu  sync.RWMutex
}

// NewMemoryAdRepository creates a new in-memory ad repository
func NewMemoryAdRepository() *MemoryAdRepository {
	return &MemoryAdRepository{
		ads: make(map[string]*ad.Advertisement),
	}
}

// Create stores a new ad
func (r *MemoryAdRepository) Create(ctx context.Context, adEntity *ad.Advertisement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := adEntity.ID().String()
	if _, exists := r.ads[key]; exists {
		return ad.ErrAdAlreadyExists
	}
	r.ads[key] = adEntity.Clone()
	return nil
}

// FindByID retrieves an ad by ID
func (r *MemoryAdRepository) FindByID(ctx context.Context, id ad.AdID) (*ad.Advertisement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adEntity, exists := r.ads[id.String()]
	if !exists {
		return nil, ad.ErrAdNotFound
	}
	return adEntity.Clone(), nil
}

// Update replaces the stored ad when versions match
func (r *MemoryAdRepository) Update(ctx context.Context, adEntity *ad.Advertisement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := adEntity.ID().String()
	stored, exists := r.ads[key]
	if !exists {
		return ad.ErrAdNotFound
	}
	if stored.Version() != adEntity.Version() {
		return ad.ErrOptimisticLockFailed
	}

	adEntity.IncrementVersion()
	r.ads[key] = adEntity.Clone()
	return nil
}

// FindPendingApproval lists unarchived ads awaiting a decision, oldest first
func (r *MemoryAdRepository) FindPendingApproval(ctx context.Context, limit, offset int) ([]*ad.Advertisement, error) {
	result := r.filter(func(a *ad.Advertisement) bool {
		return !a.IsArchived() && a.ApprovalState() == lifecycle.ApprovalPending
	})
	return page(result, limit, offset), nil
}

// FindArchivable lists unarchived ads whose window has ended
func (r *MemoryAdRepository) FindArchivable(ctx context.Context, now time.Time, limit int) ([]*ad.Advertisement, error) {
	result := r.filter(func(a *ad.Advertisement) bool {
		return !a.IsArchived() && !a.EndDate().After(now)
	})
	return page(result, limit, 0), nil
}

// UpdateLastServed moves serve marks forward without touching versions
func (r *MemoryAdRepository) UpdateLastServed(ctx context.Context, marks map[ad.AdID]time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, at := range marks {
		if stored, exists := r.ads[id.String()]; exists {
			stored.MarkServed(at)
		}
	}
	return nil
}

// ListServable returns eligible ads for placement in one of regions
func (r *MemoryAdRepository) ListServable(ctx context.Context, placement ad.Placement, regions []ad.Region, now time.Time) ([]*ad.Advertisement, error) {
	wanted := make(map[ad.Region]bool, len(regions))
	for _, region := range regions {
		wanted[region] = true
	}
	return r.filter(func(a *ad.Advertisement) bool {
		return a.Placement() == placement && wanted[a.Region()] && a.IsServable(now)
	}), nil
}

// Count returns the number of stored ads
func (r *MemoryAdRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ads)
}

func (r *MemoryAdRepository) filter(keep func(*ad.Advertisement) bool) []*ad.Advertisement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*ad.Advertisement
	for _, adEntity := range r.ads {
		if keep(adEntity) {
			result = append(result, adEntity.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt().Equal(result[j].CreatedAt()) {
			return result[i].CreatedAt().Before(result[j].CreatedAt())
		}
		return result[i].ID().String() < result[j].ID().String()
	})
	return result
}

func page(ads []*ad.Advertisement, limit, offset int) []*ad.Advertisement {
	if offset >= len(ads) {
		return []*ad.Advertisement{}
	}
	ads = ads[offset:]
	if limit > 0 && limit < len(ads) {
		ads = ads[:limit]
	}
	return ads
}
