// Package cache 提供查询加速用的键值缓存。
// 工作流的正确性不依赖缓存：未命中或缓存不可用时，调用方必须回落实时查询。
package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrMiss 键不存在。调用方用 errors.Is 区分未命中与缓存故障。
var ErrMiss = errors.New("cache miss")

// Cache 缓存接口，当前由 Redis 实现。
type Cache interface {
	// Get 读取缓存值，未命中返回 ErrMiss。
	Get(ctx context.Context, key string) (string, error)

	// Set 写入缓存值，expiration 为 0 表示永不过期
	Set(ctx context.Context, key string, value string, expiration time.Duration) error

	// Del 删除缓存键
	Del(ctx context.Context, keys ...string) error

	// Close 关闭缓存连接
	Close() error
}
