// Package cache 提供 Redis 连接
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dumeirei/affiliate-backend/internal/common/config"
)

// 常用键前缀
const (
	KeyPrefixMail             = "mail:"
	KeyPrefixRateLimitIP      = "ratelimit:ip:"
	KeyPrefixRateLimitSubject = "ratelimit:subject:"
)

// Open 创建 Redis 客户端并检查连通性
func Open(cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return rdb, nil
}

// BuildKey 构建缓存键，前缀自带分隔符
func BuildKey(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, ":")
}
