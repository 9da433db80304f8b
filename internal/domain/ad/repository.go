package ad

import (
	"context"
	"time"
)

// Repository defines the interface for advertisement persistence
type Repository interface {
	// Create inserts a new advertisement
	Create(ctx context.Context, ad *Advertisement) error

	// FindByID finds an advertisement by its ID
	FindByID(ctx context.Context, id AdID) (*Advertisement, error)

	// Update writes the mutable state of ad if its version is unchanged since
	// it was read, and bumps the version. Fails with ErrOptimisticLockFailed.
	Update(ctx context.Context, ad *Advertisement) error

	// FindPendingApproval lists unarchived ads awaiting an editorial decision,
	// oldest first
	FindPendingApproval(ctx context.Context, limit, offset int) ([]*Advertisement, error)

	// FindArchivable lists unarchived ads whose end date is at or before now
	FindArchivable(ctx context.Context, now time.Time, limit int) ([]*Advertisement, error)

	// UpdateLastServed moves last_served_at forward for each ad; older marks
	// are ignored. It does not touch the version.
	UpdateLastServed(ctx context.Context, marks map[AdID]time.Time) error
}

// ServingReader is the read side used by serving. Implementations may read
// from replicas and return slightly stale snapshots.
type ServingReader interface {
	// ListServable returns unarchived ads for placement in one of regions with
	// all facets satisfied and now within their window
	ListServable(ctx context.Context, placement Placement, regions []Region, now time.Time) ([]*Advertisement, error)
}
