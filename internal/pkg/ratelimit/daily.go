package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DailyCounter 按 UTC 日期分桶的每用户计数器。
// key 带 TTL，跨天自然归零，不需要后台重置任务。
type DailyCounter struct {
	client *redis.Client
	prefix string
}

func NewDailyCounter(client *redis.Client, prefix string) *DailyCounter {
	if prefix == "" {
		prefix = "daily"
	}
	return &DailyCounter{client: client, prefix: prefix}
}

// Get 返回当日已计数
func (d *DailyCounter) Get(ctx context.Context, userID int64, now time.Time) (int, error) {
	count, err := d.client.Get(ctx, d.key(userID, now)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get daily counter: %w", err)
	}
	return count, nil
}

// Incr 计数加一，首次写入时设置到当日结束的 TTL
func (d *DailyCounter) Incr(ctx context.Context, userID int64, now time.Time) error {
	key := d.key(userID, now)

	count, err := d.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to incr daily counter: %w", err)
	}

	if count == 1 {
		endOfDay := now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
		// TTL 失败不致命，留给下一次写入重试
		d.client.ExpireAt(ctx, key, endOfDay)
	}

	return nil
}

func (d *DailyCounter) key(userID int64, now time.Time) string {
	return fmt.Sprintf("%s:%d:%s", d.prefix, userID, now.UTC().Format("20060102"))
}
