package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// SessionCache is a two level cache of terminal payment session outcomes:
// an in-process L1 over a shared Redis L2. Terminal outcomes never change,
// so entries are never invalidated, only expired.
type SessionCache struct {
	l1     *sync.Map
	l2     *redis.Client
	config *CacheConfig
	stats  *CacheStats
}

// CacheConfig holds cache tiers configuration
type CacheConfig struct {
	L1TTL      time.Duration
	L2TTL      time.Duration
	L1MaxItems int
	EnableL1   bool
	EnableL2   bool
}

// CacheStats counts lookups per tier
type CacheStats struct {
	L1Hits   int64
	L1Misses int64
	L2Hits   int64
	L2Misses int64
}

type cacheItem struct {
	state     payment.SessionState
	expiresAt time.Time
}

// DefaultCacheConfig returns the default tier settings
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		L1TTL:      5 * time.Minute,
		L2TTL:      24 * time.Hour,
		L1MaxItems: 10000,
		EnableL1:   true,
		EnableL2:   true,
	}
}

// NewSessionCache creates a new SessionCache. A nil client disables L2.
func NewSessionCache(client *redis.Client, config *CacheConfig) *SessionCache {
	if config == nil {
		config = DefaultCacheConfig()
	}
	if client == nil {
		config.EnableL2 = false
	}
	return &SessionCache{
		l1:     &sync.Map{},
		l2:     client,
		config: config,
		stats:  &CacheStats{},
	}
}

func sessionKey(sessionID string) string {
	return "payment:session:" + sessionID
}

// Get returns the cached terminal outcome of sessionID
func (c *SessionCache) Get(ctx context.Context, sessionID string) (payment.SessionState, bool) {
	key := sessionKey(sessionID)

	if c.config.EnableL1 {
		if item, ok := c.l1.Load(key); ok {
			cached := item.(*cacheItem)
			if time.Now().Before(cached.expiresAt) {
				atomic.AddInt64(&c.stats.L1Hits, 1)
				monitoring.RecordCacheLookup("l1", true)
				return cached.state, true
			}
			c.l1.Delete(key)
		}
		atomic.AddInt64(&c.stats.L1Misses, 1)
		monitoring.RecordCacheLookup("l1", false)
	}

	if c.config.EnableL2 {
		start := time.Now()
		data, err := c.l2.Get(ctx, key).Result()
		monitoring.RecordRedisCommand("get", time.Since(start), ignoreNil(err))
		if err == nil {
			state := payment.SessionState(data)
			if state.IsTerminal() {
				atomic.AddInt64(&c.stats.L2Hits, 1)
				monitoring.RecordCacheLookup("l2", true)
				if c.config.EnableL1 {
					c.setL1(key, state)
				}
				return state, true
			}
		}
		atomic.AddInt64(&c.stats.L2Misses, 1)
		monitoring.RecordCacheLookup("l2", false)
	}

	return "", false
}

// Set stores a terminal outcome; non-terminal states are ignored
func (c *SessionCache) Set(ctx context.Context, sessionID string, state payment.SessionState) {
	if !state.IsTerminal() {
		return
	}
	key := sessionKey(sessionID)

	if c.config.EnableL2 {
		start := time.Now()
		err := c.l2.Set(ctx, key, string(state), c.config.L2TTL).Err()
		monitoring.RecordRedisCommand("set", time.Since(start), err)
	}
	if c.config.EnableL1 {
		c.setL1(key, state)
	}
}

// GetStats returns a snapshot of the lookup counters
func (c *SessionCache) GetStats() CacheStats {
	return CacheStats{
		L1Hits:   atomic.LoadInt64(&c.stats.L1Hits),
		L1Misses: atomic.LoadInt64(&c.stats.L1Misses),
		L2Hits:   atomic.LoadInt64(&c.stats.L2Hits),
		L2Misses: atomic.LoadInt64(&c.stats.L2Misses),
	}
}

// CleanupExpired removes expired L1 entries
func (c *SessionCache) CleanupExpired() {
	now := time.Now()
	c.l1.Range(func(key, value interface{}) bool {
		if now.After(value.(*cacheItem).expiresAt) {
			c.l1.Delete(key)
		}
		return true
	})
}

func (c *SessionCache) setL1(key string, state payment.SessionState) {
	size := 0
	c.l1.Range(func(_, _ interface{}) bool {
		size++
		return size < c.config.L1MaxItems
	})

	if size >= c.config.L1MaxItems {
		// Arbitrary eviction down to 90% of capacity
		c.l1.Range(func(k, _ interface{}) bool {
			c.l1.Delete(k)
			size--
			return size >= c.config.L1MaxItems*9/10
		})
	}

	c.l1.Store(key, &cacheItem{
		state:     state,
		expiresAt: time.Now().Add(c.config.L1TTL),
	})
}

func ignoreNil(err error) error {
	if err == redis.Nil {
		return nil
	}
	return err
}
