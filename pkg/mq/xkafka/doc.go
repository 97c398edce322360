// Package xkafka 提供基于 confluent-kafka-go 的消息可靠投递核心。
//
// # 组件
//
//   - Dispatcher：发送端。useRetry=false 时单次异步 Produce；useRetry=true 时阻塞发送，
//     每次尝试等待 broker 确认，按 xretry.Execute 的退避重试，耗尽后记录日志并返回 nil。
//   - Listener：持续消费主主题 T 和重试主题 T-retry-0 … T-retry-(n-2)，
//     处理成功的 payload 写入 xmsglog.Log，失败的交给 Router。
//   - Router：未耗尽时等待 RetryDelay 后发布到下一个重试主题，耗尽后发布到 T.DLQ 的原始分区。
//   - DLQListener：被动消费 T.DLQ，只记录日志。
//   - Fetcher：按需同步拉取，独立消费组，有界阻塞。
//   - Service：装配以上组件，对外提供 Send / Fetch / GetLog / RegisterProcessor / Run / Close。
//
// # 重试主题
//
// 重试进度由消息 Header 携带：x-retry-attempt 为当前投递序号（主主题首次投递为 1），
// x-original-topic / x-original-partition / x-original-offset 记录原始位置。
// RetryAttempts=3 时一条始终失败的消息依次出现在 T、T-retry-0、T-retry-1，最后进入 T.DLQ。
//
//	svc, err := xkafka.NewService(cfg, xkafka.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//	_ = svc.RegisterProcessor(xkafka.RejectContaining("error"))
//	go svc.Run(ctx)
//	err = svc.Send(ctx, cfg.Topic, "hello", true)
//
// # Offset 提交模型
//
// 消费者强制 enable.auto.offset.store=false。处理成功或成功交给 Router 后才通过
// StoreMessage 存储 offset，由 auto-commit 定期提交；交接失败时 Seek 回原消息，
// 退避后重新处理（at-least-once）。Fetcher 关闭自动提交，每批后同步 Commit。
//
// 设计决策: Router 在发布前于 worker 内等待 RetryDelay，期间该分区的后续消息被阻塞。
// 这与逐条重试的语义一致，代价是重试期间分区吞吐下降。
// 每个 worker 是消费组内的一个独立消费者，等待会阻塞分配给它的全部分区，
// 包括其他主题的分区。需要分区间互不影响时，consumer.concurrency 应不小于
// 主主题与全部重试主题的分区总数；多出的 worker 处于空闲状态。
//
// # 并发安全
//
// Dispatcher.Send 可并发调用，Close 通过 closeMu 等待进行中的 Send 返回。
// 每个监听 worker 和每次 Fetch 持有独立的消费者，消费者不跨 goroutine 共享。
package xkafka
