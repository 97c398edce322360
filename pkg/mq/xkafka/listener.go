package xkafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/omeyang/xrelay/pkg/lifecycle/xrun"
	"github.com/omeyang/xrelay/pkg/observability/xlog"
	"github.com/omeyang/xrelay/pkg/observability/xmetrics"
	"github.com/omeyang/xrelay/pkg/storage/xmsglog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// ListenerStats 监听器统计。
type ListenerStats struct {
	Received  int64
	Completed int64
	Failed    int64
	// Rewound 路由交接失败、回退到原消息的次数。
	Rewound int64
}

// Listener 持续消费主主题和全部重试主题，处理成功的 payload 写入消息记录，
// 处理失败的消息交给 Router。
//
// 每个 worker 持有独立的消费者，librdkafka 为同一消费组内的消费者分配互不相交的分区：
// 同一分区内严格顺序处理，不同分区之间并行。
type Listener struct {
	cfg       Config
	topics    []string
	router    *Router
	log       *xmsglog.Log
	processor atomic.Pointer[Processor]
	options   *options

	received  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rewound   atomic.Int64
}

// NewListener 创建 Listener。log 为 nil 时新建一个。
func NewListener(cfg Config, router *Router, log *xmsglog.Log, opts ...Option) (*Listener, error) {
	if router == nil {
		return nil, ErrNilRouter
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = xmsglog.New()
	}
	o := applyOptions(opts)

	l := &Listener{
		cfg:     cfg,
		topics:  cfg.ListenTopics(),
		router:  router,
		log:     log,
		options: o,
	}
	fn := Processor(AcceptAll)
	if o.Processor != nil {
		fn = o.Processor
	}
	l.processor.Store(&fn)
	return l, nil
}

// RegisterProcessor 替换处理函数，对之后收到的消息生效。
func (l *Listener) RegisterProcessor(fn Processor) error {
	if fn == nil {
		return ErrNilProcessor
	}
	l.processor.Store(&fn)
	return nil
}

// Topics 返回订阅的主题。
func (l *Listener) Topics() []string {
	return append([]string(nil), l.topics...)
}

// Run 启动 Concurrency 个 worker 并阻塞到 ctx 取消。ctx 取消时返回 nil。
func (l *Listener) Run(ctx context.Context) error {
	g, _ := xrun.NewGroup(ctx,
		xrun.WithName(componentName+"-listener"),
		xrun.WithLogger(l.options.Logger))
	for i := 0; i < l.cfg.Consumer.Concurrency; i++ {
		g.Go("worker-"+strconv.Itoa(i), l.runWorker)
	}
	return g.Wait()
}

func (l *Listener) runWorker(ctx context.Context) error {
	config, err := l.cfg.consumerConfigMap(l.cfg.GroupID)
	if err != nil {
		return err
	}
	s, err := openSession(l.options.NewConsumer, config, l.cfg.GroupID, l.topics)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(); err != nil {
			l.options.Logger.Warn(ctx, "listener session close failed", xlog.Err(err))
		}
	}()

	return consumeLoop(ctx, s, l.cfg.Consumer.PollTimeout, l.options, func(ctx context.Context, msg *kafka.Message) error {
		return l.handle(ctx, s, msg)
	})
}

// handle 单条消息：Received → Processing → Completed | Failed。
func (l *Listener) handle(ctx context.Context, s *session, msg *kafka.Message) error {
	l.received.Add(1)

	msgCtx := extractKafkaTrace(ctx, l.options.Tracer, msg)
	msgCtx, span := xmetrics.Start(msgCtx, l.options.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "consume",
		Kind:      xmetrics.KindConsumer,
		Attrs:     kafkaMessageAttrs(msg),
	})
	perr := l.process(msgCtx, msg)
	span.End(xmetrics.Result{Err: perr})

	if perr == nil {
		l.completed.Add(1)
		l.log.Append(string(msg.Value))
		return s.store(msg)
	}

	l.failed.Add(1)
	l.options.Logger.Warn(msgCtx, "message processing failed",
		xlog.Topic(topicOf(msg)),
		xlog.Partition(msg.TopicPartition.Partition),
		xlog.Offset(int64(msg.TopicPartition.Offset)),
		xlog.MessageID(getHeader(msg, HeaderMessageID)),
		xlog.Err(perr))

	if _, err := l.router.Escalate(msgCtx, msg, perr); err != nil {
		// 交接失败：回退到原消息，退避后重新处理，保证 at-least-once。
		l.rewound.Add(1)
		if serr := s.rewind(msg); serr != nil {
			return errors.Join(err, serr)
		}
		return err
	}
	return s.store(msg)
}

// process 调用处理函数，panic 转为 ProcessingError。
func (l *Listener) process(ctx context.Context, msg *kafka.Message) (err error) {
	payload := string(msg.Value)
	defer func() {
		if r := recover(); r != nil {
			err = &ProcessingError{Payload: payload, Err: fmt.Errorf("%w: %v", ErrProcessorPanic, r)}
		}
	}()

	fn := *l.processor.Load()
	if perr := fn(ctx, payload); perr != nil {
		return &ProcessingError{Payload: payload, Err: perr}
	}
	return nil
}

// Log 返回处理成功消息的记录。
func (l *Listener) Log() *xmsglog.Log { return l.log }

// Stats 返回监听器统计。
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Received:  l.received.Load(),
		Completed: l.completed.Load(),
		Failed:    l.failed.Load(),
		Rewound:   l.rewound.Load(),
	}
}
