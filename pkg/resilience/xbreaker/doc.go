// Package xbreaker 基于 [sony/gobreaker/v2] 的熔断器。
//
// Breaker 使用两阶段熔断器，Do 的最终结果计入统计；context 取消与超时默认不计入。
// RetryThenBreak 将 xretry.Retryer 包在熔断器内部：
//
//	guard, _ := xbreaker.NewRetryThenBreak(
//	    xretry.NewRetryer(xretry.WithRetryPolicy(xretry.NewFixedRetry(3))),
//	    xbreaker.NewBreaker("kafka-publish"),
//	)
//	err := guard.Do(ctx, publish)
//	if xbreaker.IsBreakerError(err) {
//	    // 下游持续失败，快速失败
//	}
//
// 熔断拒绝返回 *BreakerError，其 Retryable() 为 false，不会被外层 xretry 继续重试。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
