package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"opentry/internal/config"
)

// RedisCache 基于 Redis 的分布式锁与事件去重，多实例部署时使用
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 连接 Redis 并 Ping 确认可用
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

// TryLock 尝试加锁，返回是否拿到锁
func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}

// Unlock 释放锁
func (c *RedisCache) Unlock(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// MarkOnce 标记某个事件已处理；首次标记返回 true，重复标记返回 false
func (c *RedisCache) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, 1, ttl).Result()
}

// Close 关闭连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping 就绪探针使用
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// 常用 key 模式
const (
	PhaseLockKeyPrefix    = "opentry:lock:phase:"  // 项目阶段运行锁
	PhaseLockTTL          = 30 * time.Minute
	WebhookEventKeyPrefix = "opentry:webhook:rzp:" // Razorpay webhook 事件去重
	WebhookEventTTL       = 24 * time.Hour
)
