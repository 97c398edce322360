// Package xretry 提供退避计算、显式重试状态机和基于 retry-go 的重试执行器。
//
// # 退避计算
//
// BackoffPolicy 给出第 n 次失败后的延迟（n 从 1 开始）：
//   - FixedBackoff：固定延迟
//   - ExponentialBackoff：min(initial * multiplier^(n-1), max)，默认无抖动
//   - NoBackoff：无延迟
//
// Delay(policy, attempt) 是以 0 为起点的同一计算；NewBackoff 按配置构建策略。
//
// # 重试引擎
//
// Machine 是纯状态机（Attempting → Succeeded | Exhausted），不做等待。
// Execute 驱动 Machine：失败后按退避等待，耗尽时恰好调用一次 recovery。
//
//	err := xretry.Execute(ctx,
//	    func(ctx context.Context) error { return send(ctx) },
//	    func(ctx context.Context, last error) error {
//	        logger.Error(ctx, "all attempts failed", xlog.Err(last))
//	        return nil
//	    },
//	    3, xretry.NewExponentialBackoff())
//
// # 传输层重试
//
// Retryer 底层使用 [avast/retry-go/v5]，用于短促的传输层重试：
//
//	retryer := xretry.NewRetryer(
//	    xretry.WithRetryPolicy(xretry.NewFixedRetry(3)),
//	    xretry.WithBackoffPolicy(xretry.NewFixedBackoff(100*time.Millisecond)),
//	)
//	err := retryer.Do(ctx, func(ctx context.Context) error { return publish(ctx) })
//
// # 错误分类
//
//   - NewPermanentError(err)：永久性错误，Retryer 不再重试
//   - NewTemporaryError(err)：临时性错误
//   - Unrecoverable(err)：retry-go 风格的不可恢复错误
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
