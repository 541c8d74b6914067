// Package retry 提供显式的重试策略：最大次数、退避间隔、可重试判定。
// 各外部依赖（设备、配置源、告警后端）按自身语义配置策略，调用点不再散落裸循环。
package retry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Policy 重试策略
type Policy struct {
	MaxAttempts int                   // 总尝试次数（含首次），<=0 视为 1
	Backoff     time.Duration         // 两次尝试之间的等待间隔
	Retryable   func(err error) bool  // 判定错误是否可重试，nil 表示全部可重试
}

// Do 按策略执行 fn，直到成功、错误不可重试或次数耗尽。
// 退避等待期间响应 ctx 取消。
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "retry canceled")
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if i == attempts-1 {
			break
		}

		if p.Backoff > 0 {
			timer := time.NewTimer(p.Backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Wrap(ctx.Err(), "retry canceled")
			case <-timer.C:
			}
		}
	}

	return lastErr
}
