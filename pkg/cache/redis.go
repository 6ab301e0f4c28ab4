// Package cache 提供 Redis 客户端封装，支持 JSON 序列化的读写
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bitvex/marketcenter/pkg/logger"
)

// Config Redis 配置
type Config struct {
	Host        string
	Port        int
	Password    string
	DB          int
	MaxPoolSize int
}

// RedisCache Redis 缓存实现
type RedisCache struct {
	client *redis.Client
}

// New 创建 Redis 缓存实例
func New(cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.MaxPoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info(context.Background(), "Redis connected successfully", "addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	return &RedisCache{client: client}, nil
}

// SetJSON 序列化并写入缓存值
func (rc *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return rc.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON 读取并反序列化缓存值；key 不存在时返回 (false, nil)
func (rc *RedisCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := rc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

// Close 关闭客户端
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
