package xbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xrelay/pkg/resilience/xretry"
)

// Breaker 熔断器，封装 gobreaker 的两阶段熔断器。
//
// 两阶段模式让 Do 的结果在操作返回后才计入统计，
// 因此一次 Do 内部的多次重试只计为一次成功或失败。
type Breaker struct {
	name          string
	tripPolicy    TripPolicy
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	isExcluded    func(err error) bool
	onStateChange func(name string, from, to State)

	cb *gobreaker.TwoStepCircuitBreaker[struct{}]
}

// BreakerOption 熔断器选项
type BreakerOption func(*Breaker)

// WithTripPolicy 设置熔断判定策略，默认连续失败 5 次。
func WithTripPolicy(p TripPolicy) BreakerOption {
	return func(b *Breaker) {
		if p != nil {
			b.tripPolicy = p
		}
	}
}

// WithTimeout 设置 Open 转 HalfOpen 的等待时间，默认 30 秒。
func WithTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithInterval 设置 Closed 状态下清零统计的周期，0 表示持续累积。
func WithInterval(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d >= 0 {
			b.interval = d
		}
	}
}

// WithMaxRequests 设置 HalfOpen 状态允许通过的请求数，默认 1。
func WithMaxRequests(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithExcluded 设置不计入统计的错误判定。
// 默认排除 context.Canceled 与 context.DeadlineExceeded：调用方放弃不代表下游故障。
func WithExcluded(fn func(err error) bool) BreakerOption {
	return func(b *Breaker) {
		if fn != nil {
			b.isExcluded = fn
		}
	}
}

// WithOnStateChange 设置状态变化回调
func WithOnStateChange(fn func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// NewBreaker 创建熔断器，name 用于日志与错误信息。
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:        name,
		tripPolicy:  NewConsecutiveFailures(5),
		timeout:     30 * time.Second,
		maxRequests: 1,
		isExcluded:  isContextError,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	st := gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.maxRequests,
		Interval:    b.interval,
		Timeout:     b.timeout,
		ReadyToTrip: b.tripPolicy.ReadyToTrip,
		IsExcluded:  b.isExcluded,
	}
	if b.onStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			b.onStateChange(name, from, to)
		}
	}
	b.cb = gobreaker.NewTwoStepCircuitBreaker[struct{}](st)
	return b
}

// Do 在熔断器保护下执行 fn。
//
// 熔断器拒绝时 fn 不会被调用，返回 *BreakerError。
// fn panic 时记为失败后继续向上抛出。
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if b == nil {
		return ErrNilBreaker
	}
	if fn == nil {
		return ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done, allowErr := b.cb.Allow()
	if allowErr != nil {
		return wrapBreakerError(allowErr, b.name)
	}
	defer func() {
		if r := recover(); r != nil {
			done(fmt.Errorf("panic: %v", r))
			panic(r)
		}
		done(err)
	}()
	return fn(ctx)
}

// Name 返回熔断器名称
func (b *Breaker) Name() string { return b.name }

// State 返回当前状态
func (b *Breaker) State() State { return b.cb.State() }

// Counts 返回当前统计
func (b *Breaker) Counts() Counts { return b.cb.Counts() }

// RetryThenBreak 先重试后熔断：Retryer 负责短促的瞬时故障重试，
// 只有重试后的最终结果计入熔断统计。熔断打开时直接拒绝，不再进入重试。
type RetryThenBreak struct {
	retryer *xretry.Retryer
	breaker *Breaker
}

// NewRetryThenBreak 组合重试器与熔断器
func NewRetryThenBreak(retryer *xretry.Retryer, breaker *Breaker) (*RetryThenBreak, error) {
	if retryer == nil {
		return nil, ErrNilRetryer
	}
	if breaker == nil {
		return nil, ErrNilBreaker
	}
	return &RetryThenBreak{retryer: retryer, breaker: breaker}, nil
}

// Do 执行 fn
func (r *RetryThenBreak) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return ErrNilFunc
	}
	return r.breaker.Do(ctx, func(ctx context.Context) error {
		return r.retryer.Do(ctx, fn)
	})
}

// Breaker 返回内部熔断器
func (r *RetryThenBreak) Breaker() *Breaker { return r.breaker }
