// Package cache 提供内存优先、可选 Redis 的结果缓存
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultTTL = 5 * time.Minute
	keyPrefix  = "qa-grader:"
)

// Cache 两级缓存，Redis 为空时只用内存
type Cache struct {
	mu     sync.RWMutex
	memory map[string]entry
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	nextSweep time.Time
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// New 创建缓存
func New(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		memory: make(map[string]entry),
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Key 由若干部分生成稳定的缓存键
func Key(namespace string, parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return namespace + ":" + hex.EncodeToString(h[:16])
}

// Get 读取缓存并解码到 out，未命中返回 false
func (c *Cache) Get(ctx context.Context, key string, out interface{}) bool {
	c.mu.RLock()
	e, ok := c.memory[key]
	c.mu.RUnlock()

	if ok && c.now().Before(e.expiresAt) {
		return json.Unmarshal(e.data, out) == nil
	}
	if ok {
		c.mu.Lock()
		delete(c.memory, key)
		c.mu.Unlock()
	}

	if c.redis == nil {
		return false
	}

	data, err := c.redis.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false
	}

	now := c.now()
	c.mu.Lock()
	c.sweepLocked(now)
	c.memory[key] = entry{data: data, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return true
}

// Set 写入缓存，Redis 写入失败只记录日志
func (c *Cache) Set(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	now := c.now()
	c.mu.Lock()
	c.sweepLocked(now)
	c.memory[key] = entry{data: data, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	if c.redis != nil {
		if err := c.redis.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// sweepLocked 每隔一个 TTL 清理一次过期的内存项，调用方持有写锁
func (c *Cache) sweepLocked(now time.Time) {
	if now.Before(c.nextSweep) {
		return
	}
	for k, e := range c.memory {
		if !now.Before(e.expiresAt) {
			delete(c.memory, k)
		}
	}
	c.nextSweep = now.Add(c.ttl)
}

// Delete 删除缓存项
func (c *Cache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.memory, key)
	c.mu.Unlock()

	if c.redis != nil {
		if err := c.redis.Del(ctx, keyPrefix+key).Err(); err != nil {
			c.logger.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Len 返回内存中的缓存项数量
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memory)
}
