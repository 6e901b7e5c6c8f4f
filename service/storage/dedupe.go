package storage

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeStore 记录“这个 key 是否已经处理过一次”。
// 发送端点用它在重放（replay）时压掉重复的消息事件/推送派发。
type DedupeStore interface {
	SeenOnce(ctx context.Context, key string, ttl time.Duration) (seen bool, err error)
}

// ----- Redis 实现（SET NX EX） -----

type redisDedupe struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisDedupe(rdb *redis.Client, prefix string) DedupeStore {
	if prefix == "" {
		prefix = "sc:seen:"
	}
	return &redisDedupe{rdb: rdb, prefix: prefix}
}

func (d *redisDedupe) SeenOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	ok, err := d.rdb.SetNX(ctx, d.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil // SETNX 失败 = 已见过
}

// ----- 内存实现（单进程/测试） -----

type memDedupe struct {
	mu sync.Mutex
	m  map[string]int64 // key -> expireUnix
}

func NewMemDedupe() DedupeStore {
	return &memDedupe{m: make(map[string]int64)}
}

func (d *memDedupe) SeenOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now().Unix()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.m[key]; ok && exp > now {
		return true, nil
	}
	d.m[key] = time.Now().Add(ttl).Unix()
	return false, nil
}
