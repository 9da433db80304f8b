package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
	"github.com/personal/ad-lifecycle/internal/domain/serving"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// RedisServeLog implements serving.Log with sharded Redis sorted sets.
// Each member is an ad id scored by its last served instant in unix ms.
type RedisServeLog struct {
	client     *redis.Client
	shardCount int
}

// NewRedisServeLog creates a new RedisServeLog
func NewRedisServeLog(client *redis.Client, shardCount int) *RedisServeLog {
	if shardCount <= 0 {
		shardCount = 1
	}
	return &RedisServeLog{
		client:     client,
		shardCount: shardCount,
	}
}

// shardIndex hashes an ad id onto a shard
func (r *RedisServeLog) shardIndex(adID ad.AdID) int {
	hash := 0
	for _, c := range adID.String() {
		hash = int(c) + ((hash << 5) - hash)
	}

	shard := hash % r.shardCount
	if shard < 0 {
		shard = -shard
	}
	return shard
}

func shardKey(i int) string {
	return fmt.Sprintf("serve:shard:%d", i)
}

// Record stores a mark; ZADD GT keeps the newer of the stored and given marks
func (r *RedisServeLog) Record(ctx context.Context, adID ad.AdID, servedAt time.Time) error {
	start := time.Now()
	mark := serving.NewServeMark(adID, servedAt)

	err := r.client.ZAddGT(ctx, shardKey(r.shardIndex(adID)), redis.Z{
		Score:  mark.Score(),
		Member: adID.String(),
	}).Err()
	monitoring.RecordRedisCommand("zadd", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to record serve mark: %w", err)
	}
	return nil
}

// LastServed returns buffered marks for ids, grouped into one ZMSCORE per shard
func (r *RedisServeLog) LastServed(ctx context.Context, ids []ad.AdID) (map[ad.AdID]time.Time, error) {
	start := time.Now()

	byShard := make(map[int][]ad.AdID)
	for _, id := range ids {
		i := r.shardIndex(id)
		byShard[i] = append(byShard[i], id)
	}

	pipe := r.client.Pipeline()
	cmds := make(map[int]*redis.FloatSliceCmd, len(byShard))
	for i, shardIDs := range byShard {
		members := make([]string, len(shardIDs))
		for j, id := range shardIDs {
			members[j] = id.String()
		}
		cmds[i] = pipe.ZMScore(ctx, shardKey(i), members...)
	}
	_, err := pipe.Exec(ctx)
	monitoring.RecordRedisCommand("zmscore", time.Since(start), err)
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read serve marks: %w", err)
	}

	result := make(map[ad.AdID]time.Time, len(ids))
	for i, cmd := range cmds {
		scores, err := cmd.Result()
		if err != nil {
			continue
		}
		for j, score := range scores {
			// ZMSCORE reports missing members as 0
			if score <= 0 {
				continue
			}
			result[byShard[i][j]] = time.UnixMilli(int64(score)).UTC()
		}
	}
	return result, nil
}

// Drain pops up to limit marks across shards, oldest first within a shard
func (r *RedisServeLog) Drain(ctx context.Context, limit int) ([]serving.ServeMark, error) {
	if limit <= 0 {
		return nil, nil
	}
	start := time.Now()

	var marks []serving.ServeMark
	for i := 0; i < r.shardCount && len(marks) < limit; i++ {
		popped, err := r.client.ZPopMin(ctx, shardKey(i), int64(limit-len(marks))).Result()
		if err != nil && err != redis.Nil {
			monitoring.RecordRedisCommand("zpopmin", time.Since(start), err)
			return marks, fmt.Errorf("failed to drain shard %d: %w", i, err)
		}

		for _, z := range popped {
			member, ok := z.Member.(string)
			if !ok {
				continue
			}
			adID, err := ad.ParseAdID(member)
			if err != nil {
				continue
			}
			marks = append(marks, serving.NewServeMark(adID, time.UnixMilli(int64(z.Score)).UTC()))
		}
	}

	monitoring.RecordRedisCommand("zpopmin", time.Since(start), nil)
	return marks, nil
}
