package xkafka

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/omeyang/xrelay/pkg/observability/xlog"
	"github.com/omeyang/xrelay/pkg/observability/xmetrics"
	"github.com/omeyang/xrelay/pkg/resilience/xretry"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
)

// DispatcherStats 发送端统计。
type DispatcherStats struct {
	// Produced Produce 调用次数（含重试）。Produce 是异步的，调用成功不等于投递成功。
	Produced int64
	// Delivered broker 确认成功的消息数。
	Delivered int64
	// Failed 入队失败或确认失败的次数（按尝试计）。
	Failed int64
	// Exhausted 重试耗尽后被恢复逻辑吞掉的消息数。
	Exhausted int64
	// QueueLength 当前本地队列中等待发送的消息数。
	QueueLength int
}

// Dispatcher 发送端：单次异步发送或阻塞的重试发送。
type Dispatcher struct {
	producer ProducerClient
	cfg      ProducerConfig
	backoff  xretry.BackoffPolicy
	options  *options

	// closeMu 协调 Send 与 Close：Close 等待进行中的 Send 返回后再刷新队列。
	closeMu sync.RWMutex
	closed  atomic.Bool
	// drained 在 Events 通道关闭、后台消费 goroutine 退出后关闭。
	drained chan struct{}

	produced  atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	exhausted atomic.Int64
}

// NewDispatcher 创建 Dispatcher 并启动投递报告消费 goroutine。
// Dispatcher 接管 producer 的生命周期，Close 时刷新并关闭它。
func NewDispatcher(producer ProducerClient, cfg ProducerConfig, opts ...Option) (*Dispatcher, error) {
	if producer == nil {
		return nil, ErrNilClient
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backoff, err := cfg.BackoffPolicy()
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		producer: producer,
		cfg:      cfg,
		backoff:  backoff,
		options:  applyOptions(opts),
		drained:  make(chan struct{}),
	}
	go d.drainEvents(producer.Events())
	return d, nil
}

// Send 发送 payload 到 topic。
//
// useRetry=false：单次 Produce 后立即返回，只有入队失败（如句柄不可用）会返回错误；
// 异步投递失败只记录日志。
// useRetry=true：阻塞调用方，每次尝试都等待 broker 确认，失败按退避重试；
// 尝试耗尽后记录 "all attempts failed" 并返回 nil。
//
// 参数校验失败在任何网络 I/O 之前同步返回。
func (d *Dispatcher) Send(ctx context.Context, topic, payload string, useRetry bool) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateSend(topic, payload); err != nil {
		return err
	}

	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed.Load() {
		return ErrClosed
	}

	ctx, span := xmetrics.Start(ctx, d.options.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "send",
		Kind:      xmetrics.KindProducer,
		Attrs:     append(kafkaAttrs(topic), xmetrics.Bool("retry", useRetry)),
	})
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	msg := d.newMessage(ctx, topic, payload)
	if !useRetry {
		return d.sendOnce(msg)
	}
	return d.sendWithRetry(ctx, msg)
}

func validateSend(topic, payload string) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if !utf8.ValidString(payload) {
		return ErrInvalidPayload
	}
	return nil
}

func (d *Dispatcher) newMessage(ctx context.Context, topic, payload string) *kafka.Message {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          []byte(payload),
		Headers:        []kafka.Header{{Key: HeaderMessageID, Value: []byte(uuid.NewString())}},
	}
	injectKafkaTrace(ctx, d.options.Tracer, msg)
	return msg
}

// sendOnce 投递报告走 Events 通道，由 drainEvents 记录。
func (d *Dispatcher) sendOnce(msg *kafka.Message) error {
	d.produced.Add(1)
	if err := d.producer.Produce(msg, nil); err != nil {
		d.failed.Add(1)
		return &BrokerError{Op: "produce", Topic: topicOf(msg), Err: err}
	}
	return nil
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, msg *kafka.Message) error {
	topic := topicOf(msg)
	id := getHeader(msg, HeaderMessageID)
	logger := d.options.Logger

	op := func(ctx context.Context) error {
		d.produced.Add(1)
		delivered, err := produceAndWait(ctx, d.producer, msg, d.cfg.DeliveryTimeout)
		if err != nil {
			d.failed.Add(1)
			return err
		}
		d.delivered.Add(1)
		logger.Info(ctx, "message delivered",
			xlog.Topic(topic),
			xlog.Partition(delivered.TopicPartition.Partition),
			xlog.Offset(int64(delivered.TopicPartition.Offset)),
			xlog.MessageID(id))
		return nil
	}

	recovery := func(ctx context.Context, last error) error {
		d.exhausted.Add(1)
		logger.Error(ctx, "all attempts failed",
			xlog.Topic(topic),
			xlog.MessageID(id),
			xlog.Attempt(d.cfg.MaxAttempts),
			xlog.Err(last))
		return nil
	}

	onAttempt := func(attempt int, err error, state xretry.State, next time.Duration) {
		if err == nil || state != xretry.StateAttempting {
			return
		}
		logger.Warn(ctx, "send attempt failed",
			xlog.Topic(topic),
			xlog.MessageID(id),
			xlog.Attempt(attempt),
			xlog.Duration(next),
			xlog.Err(err))
	}

	return xretry.Execute(ctx, op, recovery, d.cfg.MaxAttempts, d.backoff, xretry.WithOnAttempt(onAttempt))
}

// drainEvents 消费 Events 通道上的异步投递报告，通道在 producer.Close 后关闭。
func (d *Dispatcher) drainEvents(events chan kafka.Event) {
	defer close(d.drained)
	ctx := context.Background()
	logger := d.options.Logger

	for e := range events {
		switch ev := e.(type) {
		case *kafka.Message:
			topic := topicOf(ev)
			if ev.TopicPartition.Error != nil {
				d.failed.Add(1)
				logger.Error(ctx, "async delivery failed",
					xlog.Topic(topic),
					xlog.MessageID(getHeader(ev, HeaderMessageID)),
					xlog.Err(ev.TopicPartition.Error))
				continue
			}
			d.delivered.Add(1)
			logger.Info(ctx, "message delivered",
				xlog.Topic(topic),
				xlog.Partition(ev.TopicPartition.Partition),
				xlog.Offset(int64(ev.TopicPartition.Offset)),
				xlog.MessageID(getHeader(ev, HeaderMessageID)))
		case kafka.Error:
			logger.Warn(ctx, "producer error event", xlog.Err(ev))
		}
	}
}

// Stats 返回发送端统计。
func (d *Dispatcher) Stats() DispatcherStats {
	stats := DispatcherStats{
		Produced:  d.produced.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Exhausted: d.exhausted.Load(),
	}
	d.closeMu.RLock()
	if !d.closed.Load() {
		stats.QueueLength = d.producer.Len()
	}
	d.closeMu.RUnlock()
	return stats
}

// Close 刷新本地队列后关闭 producer，并等待投递报告消费完毕。
// 重复调用返回 ErrClosed。
func (d *Dispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	d.closeMu.Lock()
	defer d.closeMu.Unlock()

	remaining := d.producer.Flush(int(d.cfg.FlushTimeout.Milliseconds()))
	d.producer.Close()
	<-d.drained
	if remaining > 0 {
		return fmt.Errorf("%w: %d messages still in queue", ErrFlushTimeout, remaining)
	}
	return nil
}
