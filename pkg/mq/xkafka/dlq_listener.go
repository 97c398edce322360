package xkafka

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/omeyang/xrelay/pkg/observability/xlog"
	"github.com/omeyang/xrelay/pkg/observability/xmetrics"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// DLQListener 被动消费死信主题：记录 WARN 日志、存储 offset，可选回调。不做任何重试。
type DLQListener struct {
	cfg     Config
	topic   string
	groupID string
	options *options

	received atomic.Int64
}

// NewDLQListener 创建死信监听器，消费组为 <group_id>-dlq。
func NewDLQListener(cfg Config, opts ...Option) (*DLQListener, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DLQListener{
		cfg:     cfg,
		topic:   DLQTopic(cfg.Topic),
		groupID: cfg.GroupID + DLQGroupSuffix,
		options: applyOptions(opts),
	}, nil
}

// Run 阻塞到 ctx 取消，ctx 取消时返回 nil。
func (l *DLQListener) Run(ctx context.Context) error {
	config, err := l.cfg.consumerConfigMap(l.groupID)
	if err != nil {
		return err
	}
	s, err := openSession(l.options.NewConsumer, config, l.groupID, []string{l.topic})
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(); err != nil {
			l.options.Logger.Warn(ctx, "dlq session close failed", xlog.Err(err))
		}
	}()

	err = consumeLoop(ctx, s, l.cfg.Consumer.PollTimeout, l.options, func(ctx context.Context, msg *kafka.Message) error {
		return l.handle(ctx, s, msg)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (l *DLQListener) handle(ctx context.Context, s *session, msg *kafka.Message) error {
	l.received.Add(1)
	record := DecodeDeadLetter(msg)

	msgCtx := extractKafkaTrace(ctx, l.options.Tracer, msg)
	msgCtx, span := xmetrics.Start(msgCtx, l.options.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "dead_letter",
		Kind:      xmetrics.KindConsumer,
		Attrs:     kafkaMessageAttrs(msg),
	})
	defer span.End(xmetrics.Result{})

	l.options.Logger.Warn(msgCtx, "dead letter received",
		xlog.Topic(record.OriginalTopic),
		xlog.Partition(record.Partition),
		xlog.Offset(record.Offset),
		xlog.Attempt(record.Attempts),
		xlog.MessageID(getHeader(msg, HeaderMessageID)),
		slog.String("reason", record.Reason))

	if l.options.OnDeadLetter != nil {
		l.options.OnDeadLetter(msgCtx, record)
	}
	return s.store(msg)
}

// Received 返回已收到的死信数。
func (l *DLQListener) Received() int64 { return l.received.Load() }
