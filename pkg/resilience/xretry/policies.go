package xretry

import "context"

// FixedRetryPolicy 固定次数重试策略
type FixedRetryPolicy struct {
	maxAttempts int
}

// NewFixedRetry 创建固定次数重试策略
// maxAttempts: 最大尝试次数（包含首次尝试），最小为 1
func NewFixedRetry(maxAttempts int) *FixedRetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &FixedRetryPolicy{maxAttempts: maxAttempts}
}

func (p *FixedRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *FixedRetryPolicy) ShouldRetry(ctx context.Context, attempt int, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	return IsRetryable(err)
}

var _ RetryPolicy = (*FixedRetryPolicy)(nil)
