// Package poll 提供固定间隔轮询工具，统一支付、视频任务和渲染任务的轮询逻辑
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrMaxAttempts 达到最大轮询次数仍未完成
var ErrMaxAttempts = errors.New("poll: max attempts reached")

// CheckFunc 单次检查函数
// attempt 从 1 开始；done 为 true 时结束轮询并返回 value；
// 返回非 nil error 会立即终止轮询
type CheckFunc[T any] func(ctx context.Context, attempt int) (value T, done bool, err error)

// Until 按固定间隔执行 check，直到完成、出错、超过 maxAttempts 或 ctx 被取消
// 第一次检查在 interval 之后执行，与前端定时器语义一致
func Until[T any](ctx context.Context, interval time.Duration, maxAttempts int, check CheckFunc[T]) (T, error) {
	var zero T
	if maxAttempts <= 0 {
		return zero, ErrMaxAttempts
	}
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}

		value, done, err := check(ctx, attempt)
		if err != nil {
			return zero, err
		}
		if done {
			return value, nil
		}
	}

	return zero, ErrMaxAttempts
}
