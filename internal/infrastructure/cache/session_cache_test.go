package cache_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/internal/infrastructure/cache"
)

var _ = Describe("SessionCache", func() {
	var (
		ctx context.Context
		c   *cache.SessionCache
	)

	BeforeEach(func() {
		ctx = context.Background()
		c = cache.NewSessionCache(nil, &cache.CacheConfig{
			L1TTL:      time.Minute,
			L1MaxItems: 10,
			EnableL1:   true,
			EnableL2:   true,
		})
	})

	It("remembers terminal outcomes", func() {
		_, ok := c.Get(ctx, "cs_1")
		Expect(ok).To(BeFalse())

		c.Set(ctx, "cs_1", payment.SessionCompleted)
		state, ok := c.Get(ctx, "cs_1")
		Expect(ok).To(BeTrue())
		Expect(state).To(Equal(payment.SessionCompleted))

		stats := c.GetStats()
		Expect(stats.L1Hits).To(Equal(int64(1)))
		Expect(stats.L1Misses).To(Equal(int64(1)))
		Expect(stats.L2Misses).To(Equal(int64(0)))
	})

	It("ignores non-terminal states", func() {
		c.Set(ctx, "cs_1", payment.SessionCreated)
		_, ok := c.Get(ctx, "cs_1")
		Expect(ok).To(BeFalse())
	})

	It("expires entries after the L1 ttl", func() {
		short := cache.NewSessionCache(nil, &cache.CacheConfig{L1TTL: time.Millisecond, L1MaxItems: 10, EnableL1: true})
		short.Set(ctx, "cs_1", payment.SessionFailed)

		Eventually(func() bool {
			_, ok := short.Get(ctx, "cs_1")
			return ok
		}).Should(BeFalse())
	})

	It("stays within the L1 capacity", func() {
		for i := 0; i < 25; i++ {
			c.Set(ctx, string(rune('a'+i)), payment.SessionExpired)
		}
		c.CleanupExpired()

		hits := 0
		for i := 0; i < 25; i++ {
			if _, ok := c.Get(ctx, string(rune('a'+i))); ok {
				hits++
			}
		}
		Expect(hits).To(BeNumerically("<=", 10))
		Expect(hits).To(BeNumerically(">", 0))
	})

	Context("with a Redis tier", func() {
		var (
			mr     *miniredis.Miniredis
			shared *cache.SessionCache
			config func() *cache.CacheConfig
		)

		BeforeEach(func() {
			var client *redis.Client
			mr, client = startRedis()
			config = func() *cache.CacheConfig {
				return &cache.CacheConfig{
					L1TTL:      time.Minute,
					L2TTL:      time.Hour,
					L1MaxItems: 10,
					EnableL1:   true,
					EnableL2:   true,
				}
			}
			shared = cache.NewSessionCache(client, config())
		})

		It("writes terminal outcomes through to Redis with the L2 ttl", func() {
			shared.Set(ctx, "cs_1", payment.SessionCompleted)

			stored, err := mr.Get("payment:session:cs_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal("completed"))
			Expect(mr.TTL("payment:session:cs_1")).To(Equal(time.Hour))
		})

		It("serves another instance from Redis and then from its own L1", func() {
			shared.Set(ctx, "cs_1", payment.SessionFailed)

			otherClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			DeferCleanup(otherClient.Close)
			other := cache.NewSessionCache(otherClient, config())
			state, ok := other.Get(ctx, "cs_1")
			Expect(ok).To(BeTrue())
			Expect(state).To(Equal(payment.SessionFailed))

			state, ok = other.Get(ctx, "cs_1")
			Expect(ok).To(BeTrue())
			Expect(state).To(Equal(payment.SessionFailed))

			stats := other.GetStats()
			Expect(stats.L1Misses).To(Equal(int64(1)))
			Expect(stats.L2Hits).To(Equal(int64(1)))
			Expect(stats.L1Hits).To(Equal(int64(1)))
		})

		It("ignores values in Redis that are not terminal", func() {
			Expect(mr.Set("payment:session:cs_1", "created")).To(Succeed())

			_, ok := shared.Get(ctx, "cs_1")
			Expect(ok).To(BeFalse())
			Expect(shared.GetStats().L2Misses).To(Equal(int64(1)))
		})

		It("falls back to a miss when Redis is down", func() {
			mr.Close()

			_, ok := shared.Get(ctx, "cs_1")
			Expect(ok).To(BeFalse())
		})
	})
})
