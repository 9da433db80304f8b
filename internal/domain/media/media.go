package media

import (
	"context"
	"errors"
	"time"
)

var ErrMediaNotFound = errors.New("media object not found")

// Store is the binary store holding uploaded creatives. Only existence and
// viewable URLs are needed here.
type Store interface {
	Exists(ctx context.Context, ref string) (bool, error)
	PresignURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
}
