package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/personal/ad-lifecycle/internal/domain/notification"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// DefaultNotificationChannel is the pub/sub channel owner notifications go to
const DefaultNotificationChannel = "ads:notifications"

// RedisNotifier publishes owner notifications on a Redis channel for the
// delivery service to pick up
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a new RedisNotifier
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultNotificationChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

// Notify publishes n as JSON
func (r *RedisNotifier) Notify(ctx context.Context, n notification.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	start := time.Now()
	err = r.client.Publish(ctx, r.channel, payload).Err()
	monitoring.RecordRedisCommand("publish", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
