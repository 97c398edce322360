package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrNilBreaker Breaker 为 nil
	ErrNilBreaker = errors.New("xbreaker: breaker cannot be nil")

	// ErrNilRetryer Retryer 为 nil
	ErrNilRetryer = errors.New("xbreaker: retryer cannot be nil")

	// ErrNilFunc 操作函数为 nil
	ErrNilFunc = errors.New("xbreaker: function cannot be nil")
)

// BreakerError 熔断器拒绝请求的错误。
//
// Retryable 返回 false，与 xretry 组合时熔断拒绝不会被继续退避重试。
type BreakerError struct {
	Err   error
	Name  string
	State State
}

func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

func (e *BreakerError) Unwrap() error { return e.Err }

// Retryable 熔断拒绝不可重试
func (e *BreakerError) Retryable() bool { return false }

// wrapBreakerError 仅包装 gobreaker 直接返回的哨兵错误。
//
// 状态由错误类型推导而非实时查询 State()，避免两者之间的状态变化造成不一致。
func wrapBreakerError(err error, name string) error {
	switch {
	case err == nil:
		return nil
	case err == gobreaker.ErrOpenState: //nolint:errorlint // 只认直接返回的哨兵，嵌套熔断器的错误不归因到当前熔断器
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	case err == gobreaker.ErrTooManyRequests: //nolint:errorlint // 同上
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	default:
		return err
	}
}

// IsBreakerError 判断 err 是否为熔断拒绝（Open 或 HalfOpen 请求过多）
func IsBreakerError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
