package xretry

import (
	"context"
	"time"
)

// RetryPolicy 定义重试策略接口，判断是否应该继续重试。
//
// 通过 Retryer 使用时：
//   - MaxAttempts() 设置 retry-go 的 Attempts 上限
//   - ShouldRetry() 在每次失败后被调用
//   - Unrecoverable 错误会在 ShouldRetry 之前被短路拦截
type RetryPolicy interface {
	// MaxAttempts 返回最大尝试次数（包含首次尝试）
	MaxAttempts() int

	// ShouldRetry 判断是否应该重试，attempt 从 1 开始
	ShouldRetry(ctx context.Context, attempt int, err error) bool
}

// BackoffPolicy 定义退避策略接口
type BackoffPolicy interface {
	// NextDelay 返回第 attempt 次失败后的延迟，attempt 从 1 开始
	NextDelay(attempt int) time.Duration
}

// Executor 重试执行器接口
//
// 设计决策: NewRetryer 返回 *Retryer 而非接口，调用方如需 mock，
// 在自身代码中以 Executor 作为参数类型即可。
type Executor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Operation 是 Execute 驱动的一次尝试
type Operation func(ctx context.Context) error

// Recovery 在所有尝试耗尽后被调用一次，参数为最后一次失败的错误。
// 返回值即 Execute 的返回值。
type Recovery func(ctx context.Context, lastErr error) error
