package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// DefaultMaxAttempts bounds read-modify-write retries on version conflicts
const DefaultMaxAttempts = 5

// Clock returns the current time; tests inject a fixed one
type Clock func() time.Time

// SystemClock returns UTC wall time
func SystemClock() time.Time {
	return time.Now().UTC()
}

// withOptimisticRetry runs fn until it stops failing with
// ad.ErrOptimisticLockFailed or attempts run out. fn must reload the
// aggregate on every call.
func withOptimisticRetry(ctx context.Context, operation string, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !errors.Is(err, ad.ErrOptimisticLockFailed) {
			return err
		}
		monitoring.RecordOptimisticRetry(operation)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("%s gave up after %d attempts: %w", operation, attempts, err)
}

func parseAdID(id string) (ad.AdID, error) {
	parsed, err := ad.ParseAdID(id)
	if err != nil {
		return ad.AdID{}, fmt.Errorf("%w: %v", ad.ErrAdNotFound, err)
	}
	return parsed, nil
}
