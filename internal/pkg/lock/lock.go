package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 只有持有者能释放：比较 token 再删除，避免误删他人续期后的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 Redis SET NX PX 的单飞锁。
// 同一个 key 同一时刻只有一个持有者，TTL 防止持有者崩溃后永久占用。
type Locker struct {
	client *redis.Client
	prefix string
}

func NewLocker(client *redis.Client, prefix string) *Locker {
	if prefix == "" {
		prefix = "lock"
	}
	return &Locker{client: client, prefix: prefix}
}

// Handle 一次成功的加锁，Release 负责归还
type Handle struct {
	locker *Locker
	key    string
	token  string
}

// Acquire 尝试加锁，不阻塞：锁被占用时返回 (nil, false, nil)。
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Handle, bool, error) {
	token, err := randomToken()
	if err != nil {
		return nil, false, err
	}

	fullKey := fmt.Sprintf("%s:%s", l.prefix, key)
	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	return &Handle{locker: l, key: fullKey, token: token}, true, nil
}

// Release 释放锁。幂等：锁已过期或被他人持有时是 no-op。
func (h *Handle) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, h.locker.client, []string{h.key}, h.token).Err()
}

func randomToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
