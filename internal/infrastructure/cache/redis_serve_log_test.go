package cache_test

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/infrastructure/cache"
)

const shards = 4

var _ = Describe("RedisServeLog", func() {
	var (
		ctx    context.Context
		mr     *miniredis.Miniredis
		client *redis.Client
		log    *cache.RedisServeLog
		now    time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		mr, client = startRedis()
		log = cache.NewRedisServeLog(client, shards)
		now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	})

	newIDs := func(n int) []ad.AdID {
		ids := make([]ad.AdID, n)
		for i := range ids {
			ids[i] = ad.NewAdID()
		}
		return ids
	}

	It("returns recorded marks and omits ads never served", func() {
		ids := newIDs(3)
		Expect(log.Record(ctx, ids[0], now.Add(-30*time.Second))).To(Succeed())
		Expect(log.Record(ctx, ids[1], now.Add(-10*time.Second))).To(Succeed())

		marks, err := log.LastServed(ctx, ids)
		Expect(err).NotTo(HaveOccurred())
		Expect(marks).To(HaveLen(2))
		Expect(marks[ids[0]]).To(BeTemporally("==", now.Add(-30*time.Second)))
		Expect(marks[ids[1]]).To(BeTemporally("==", now.Add(-10*time.Second)))
		Expect(marks).NotTo(HaveKey(ids[2]))
	})

	It("never moves a mark backwards", func() {
		id := ad.NewAdID()
		Expect(log.Record(ctx, id, now)).To(Succeed())
		Expect(log.Record(ctx, id, now.Add(-time.Hour))).To(Succeed())

		marks, err := log.LastServed(ctx, []ad.AdID{id})
		Expect(err).NotTo(HaveOccurred())
		Expect(marks[id]).To(BeTemporally("==", now))

		Expect(log.Record(ctx, id, now.Add(time.Minute))).To(Succeed())
		marks, err = log.LastServed(ctx, []ad.AdID{id})
		Expect(err).NotTo(HaveOccurred())
		Expect(marks[id]).To(BeTemporally("==", now.Add(time.Minute)))
	})

	It("spreads marks over the configured shards", func() {
		ids := newIDs(20)
		for i, id := range ids {
			Expect(log.Record(ctx, id, now.Add(time.Duration(i)*time.Second))).To(Succeed())
		}

		total := 0
		for _, key := range mr.Keys() {
			var shard int
			_, err := fmt.Sscanf(key, "serve:shard:%d", &shard)
			Expect(err).NotTo(HaveOccurred())
			Expect(shard).To(BeNumerically("<", shards))

			members, err := mr.ZMembers(key)
			Expect(err).NotTo(HaveOccurred())
			total += len(members)
		}
		Expect(total).To(Equal(len(ids)))

		marks, err := log.LastServed(ctx, ids)
		Expect(err).NotTo(HaveOccurred())
		Expect(marks).To(HaveLen(len(ids)))
	})

	It("answers an empty log without error", func() {
		marks, err := log.LastServed(ctx, newIDs(2))
		Expect(err).NotTo(HaveOccurred())
		Expect(marks).To(BeEmpty())
	})

	Describe("Drain", func() {
		It("pops up to the limit and leaves the rest", func() {
			ids := newIDs(5)
			for i, id := range ids {
				Expect(log.Record(ctx, id, now.Add(time.Duration(i)*time.Second))).To(Succeed())
			}

			first, err := log.Drain(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(HaveLen(3))

			rest, err := log.Drain(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(rest).To(HaveLen(2))

			drained := make(map[ad.AdID]time.Time)
			for _, mark := range append(first, rest...) {
				drained[mark.AdID()] = mark.ServedAt()
			}
			for i, id := range ids {
				Expect(drained[id]).To(BeTemporally("==", now.Add(time.Duration(i)*time.Second)))
			}

			empty, err := log.Drain(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(empty).To(BeEmpty())
		})

		It("does nothing for a non-positive limit", func() {
			Expect(log.Record(ctx, ad.NewAdID(), now)).To(Succeed())

			marks, err := log.Drain(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(marks).To(BeEmpty())
			Expect(mr.Keys()).To(HaveLen(1))
		})
	})

	It("reports an unreachable server", func() {
		mr.Close()

		Expect(log.Record(ctx, ad.NewAdID(), now)).NotTo(Succeed())
		_, err := log.LastServed(ctx, newIDs(1))
		Expect(err).To(HaveOccurred())
	})
})
