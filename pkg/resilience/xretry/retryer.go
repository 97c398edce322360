package xretry

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// safeIntToUint 将 int 安全转换为 uint，负数返回 0。
func safeIntToUint(n int) uint {
	if n <= 0 {
		return 0
	}
	return uint(n)
}

// safeUintToInt 将 uint 安全转换为 int，超过 MaxInt 截断。
func safeUintToInt(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}

var _ Executor = (*Retryer)(nil)

// Retryer 基于 avast/retry-go/v5 的重试执行器。
//
// 与 Execute 的区别：Retryer 面向短促的传输层重试（如 broker 瞬时不可用），
// 按 IsRetryable 区分永久/临时错误，耗尽后直接返回最后一次错误，没有 recovery 阶段。
type Retryer struct {
	retryPolicy   RetryPolicy
	backoffPolicy BackoffPolicy
	onRetry       func(attempt int, err error)
}

// RetryerOption 执行器配置选项
type RetryerOption func(*Retryer)

// WithRetryPolicy 设置重试策略
func WithRetryPolicy(p RetryPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.retryPolicy = p
		}
	}
}

// WithBackoffPolicy 设置退避策略
func WithBackoffPolicy(p BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.backoffPolicy = p
		}
	}
}

// WithOnRetry 设置重试回调函数，nil 被忽略。
func WithOnRetry(f func(attempt int, err error)) RetryerOption {
	return func(r *Retryer) {
		if f != nil {
			r.onRetry = f
		}
	}
}

// NewRetryer 创建重试执行器，默认 FixedRetry(3) + ExponentialBackoff。
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{
		retryPolicy:   NewFixedRetry(3),
		backoffPolicy: NewExponentialBackoff(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do 执行带重试的操作。nil 接收者返回 ErrNilRetryer。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return ErrNilRetryer
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	return retry.New(r.buildOptions(ctx)...).Do(func() error {
		return fn(ctx)
	})
}

// buildOptions 构建 retry-go 的选项。
// 设计决策: 每次 Do 调用重建选项切片，对重试场景的开销可以忽略，
// 换来 Retryer 本身无可变状态、可并发复用。
func (r *Retryer) buildOptions(ctx context.Context) []retry.Option {
	opts := make([]retry.Option, 0, 6)
	opts = append(opts, retry.Context(ctx))

	retryPolicy := r.retryPolicy
	if retryPolicy == nil {
		retryPolicy = NewFixedRetry(3)
	}
	backoffPolicy := r.backoffPolicy
	if backoffPolicy == nil {
		backoffPolicy = NewExponentialBackoff()
	}

	maxAttempts := retryPolicy.MaxAttempts()
	if maxAttempts <= 0 {
		opts = append(opts, retry.UntilSucceeded())
	} else {
		opts = append(opts, retry.Attempts(safeIntToUint(maxAttempts)))
	}

	// 设计决策: Attempts 是硬上限，RetryIf 中的 ShouldRetry 可提前终止。
	// attemptCount 表示已失败次数（1-based），与 ShouldRetry 的 attempt 语义一致。
	var attemptCount atomic.Int64
	opts = append(opts, retry.RetryIf(func(err error) bool {
		count := int(attemptCount.Add(1))
		if !retry.IsRecoverable(err) {
			return false
		}
		return retryPolicy.ShouldRetry(ctx, count, err)
	}))

	// retry-go v5 中 DelayType 的 n 从 1 开始，与 NextDelay 一致
	opts = append(opts, retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
		return backoffPolicy.NextDelay(safeUintToInt(n))
	}))

	if r.onRetry != nil {
		// OnRetry 的 n 从 0 开始
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			r.onRetry(safeUintToInt(n)+1, err)
		}))
	}

	opts = append(opts, retry.LastErrorOnly(true))
	return opts
}

// Unrecoverable 将错误标记为 retry-go 的不可恢复错误
func Unrecoverable(err error) error {
	return retry.Unrecoverable(err)
}
