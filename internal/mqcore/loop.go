package mqcore

import (
	"context"
	"time"

	"github.com/omeyang/xrelay/pkg/resilience/xretry"
)

// ConsumeFunc 单次消费函数。
// 返回 error 时触发退避，返回 nil 时复位退避。
type ConsumeFunc func(ctx context.Context) error

type consumeLoopOptions struct {
	backoff xretry.BackoffPolicy
	onError func(err error, attempt int)
}

// ConsumeLoopOption 消费循环配置函数。
type ConsumeLoopOption func(*consumeLoopOptions)

// WithBackoff 设置连续错误时的退避策略，nil 被忽略。
func WithBackoff(backoff xretry.BackoffPolicy) ConsumeLoopOption {
	return func(o *consumeLoopOptions) {
		if backoff != nil {
			o.backoff = backoff
		}
	}
}

// WithOnError 设置错误回调，attempt 为连续失败次数（从 1 开始）。
func WithOnError(onError func(err error, attempt int)) ConsumeLoopOption {
	return func(o *consumeLoopOptions) {
		o.onError = onError
	}
}

// DefaultBackoff 返回消费循环的默认退避：100ms 起步，翻倍，30s 封顶，10% 抖动。
func DefaultBackoff() xretry.BackoffPolicy {
	return xretry.NewExponentialBackoff(
		xretry.WithInitialDelay(100*time.Millisecond),
		xretry.WithMaxDelay(30*time.Second),
		xretry.WithJitter(0.1),
	)
}

// RunConsumeLoop 持续调用 consume 直到 ctx 取消，返回 ctx.Err()。
//
// consume 失败时按退避策略等待后再调用，成功后复位连续失败计数。
// consume 本身应在一次 poll 超时内返回，循环只在两次调用之间检查 ctx。
func RunConsumeLoop(ctx context.Context, consume ConsumeFunc, opts ...ConsumeLoopOption) error {
	if consume == nil {
		return ErrNilHandler
	}
	options := &consumeLoopOptions{backoff: DefaultBackoff()}
	for _, opt := range opts {
		opt(options)
	}

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := consume(ctx)
		if err == nil {
			attempt = 0
			continue
		}

		attempt++
		if options.onError != nil {
			options.onError(err, attempt)
		}
		if err := xretry.Sleep(ctx, options.backoff.NextDelay(attempt)); err != nil {
			return err
		}
	}
}
