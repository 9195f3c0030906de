package travel

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// MemoCache 单次运行内的出行时间缓存，按 (起点, 终点, 出行方式) 记忆
type MemoCache struct {
	inner    Provider
	entries  map[string]int
	hits     int
	misses   int
	recorder LookupRecorder
	mu       sync.Mutex
}

// NewMemoCache 创建运行内缓存
func NewMemoCache(inner Provider) *MemoCache {
	return &MemoCache{
		inner:   inner,
		entries: make(map[string]int),
	}
}

// WithRecorder 设置查询记录器
func (c *MemoCache) WithRecorder(r LookupRecorder) *MemoCache {
	c.recorder = r
	return c
}

// TravelTime 先查缓存，未命中时查询下层并记忆结果
func (c *MemoCache) TravelTime(ctx context.Context, origin, destination string, mode model.TransportMode) (int, error) {
	key := cacheKey(origin, destination, mode)

	c.mu.Lock()
	if m, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		if c.recorder != nil {
			c.recorder(SourceMemo)
		}
		return m, nil
	}
	c.misses++
	c.mu.Unlock()

	m, err := c.inner.TravelTime(ctx, origin, destination, mode)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.entries[key] = m
	c.mu.Unlock()
	return m, nil
}

// Stats 返回命中与未命中次数
func (c *MemoCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len 返回缓存条目数
func (c *MemoCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache 跨运行的出行时间缓存
type RedisCache struct {
	inner    Provider
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	recorder LookupRecorder
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(client *redis.Client, inner Provider, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "rota:travel:"
	}
	return &RedisCache{
		inner:  inner,
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// WithRecorder 设置查询记录器
func (c *RedisCache) WithRecorder(r LookupRecorder) *RedisCache {
	c.recorder = r
	return c
}

// TravelTime 先查 Redis，未命中时查询下层并写回
// Redis 不可用时直接查询下层
func (c *RedisCache) TravelTime(ctx context.Context, origin, destination string, mode model.TransportMode) (int, error) {
	if model.SameAddress(origin, destination) {
		return 0, nil
	}

	key := c.prefix + cacheKey(origin, destination, mode)
	val, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if m, convErr := strconv.Atoi(val); convErr == nil {
			if c.recorder != nil {
				c.recorder(SourceRedis)
			}
			return Clamp(m), nil
		}
	case err != redis.Nil:
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		logger.Debug().Err(err).Str("key", key).Msg("读取出行时间缓存失败")
	}

	m, err := c.inner.TravelTime(ctx, origin, destination, mode)
	if err != nil {
		return 0, err
	}

	if setErr := c.client.Set(ctx, key, strconv.Itoa(m), c.ttl).Err(); setErr != nil {
		logger.Debug().Err(setErr).Str("key", key).Msg("写入出行时间缓存失败")
	}
	return m, nil
}
