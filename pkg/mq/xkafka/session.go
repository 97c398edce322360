package xkafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/omeyang/xrelay/internal/mqcore"
	"github.com/omeyang/xrelay/pkg/observability/xlog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// session 一个消费者实例及其订阅。
// 每个监听 worker、每次 Fetch 各自持有一个 session，不跨 goroutine 共享，所有退出路径都会关闭。
type session struct {
	groupID  string
	topics   []string
	consumer ConsumerClient
	polls    int
}

// openSession 创建消费者并订阅 topics，订阅失败时关闭消费者。
func openSession(factory ConsumerFactory, config *kafka.ConfigMap, groupID string, topics []string) (*session, error) {
	s := &session{groupID: groupID, topics: topics}
	consumer, err := factory(config)
	if err != nil {
		return nil, s.wrap(err)
	}
	if consumer == nil {
		return nil, s.wrap(ErrNilClient)
	}
	if err := consumer.SubscribeTopics(topics, nil); err != nil {
		return nil, s.wrap(errors.Join(err, consumer.Close()))
	}
	s.consumer = consumer
	return s, nil
}

func (s *session) wrap(err error) error {
	return &SessionError{Group: s.groupID, Topic: strings.Join(s.topics, ","), Err: err}
}

// poll 轮询一条消息。超时、分区 EOF 和再均衡等事件返回 (nil, nil)。
func (s *session) poll(timeout time.Duration) (*kafka.Message, error) {
	s.polls++
	switch e := s.consumer.Poll(int(timeout.Milliseconds())).(type) {
	case nil:
		return nil, nil
	case *kafka.Message:
		if e.TopicPartition.Error != nil {
			return nil, s.wrap(&BrokerError{Op: "poll", Topic: topicOf(e), Err: e.TopicPartition.Error})
		}
		return e, nil
	case kafka.Error:
		if e.Code() == kafka.ErrTimedOut || e.Code() == kafka.ErrPartitionEOF {
			return nil, nil
		}
		return nil, s.wrap(&BrokerError{Op: "poll", Err: e})
	default:
		return nil, nil
	}
}

// store 存储 msg 的下一个 offset（StoreMessage 内部 offset+1）。
func (s *session) store(msg *kafka.Message) error {
	if _, err := s.consumer.StoreMessage(msg); err != nil {
		return s.wrap(fmt.Errorf("store offset: %w", err))
	}
	return nil
}

// commit 同步提交已存储的 offset，没有可提交的 offset 不视为错误。
func (s *session) commit() error {
	if _, err := s.consumer.Commit(); err != nil {
		var kerr kafka.Error
		if errors.As(err, &kerr) && kerr.Code() == kafka.ErrNoOffset {
			return nil
		}
		return s.wrap(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// rewind 将 msg 所在分区的位置回退到 msg，下一次轮询会再次收到它。
func (s *session) rewind(msg *kafka.Message) error {
	if err := s.consumer.Seek(msg.TopicPartition, 0); err != nil {
		return s.wrap(fmt.Errorf("seek: %w", err))
	}
	return nil
}

func (s *session) close() error {
	if err := s.consumer.Close(); err != nil {
		return s.wrap(fmt.Errorf("close: %w", err))
	}
	return nil
}

// consumeLoop 在 session 上持续轮询并调用 handle，直到 ctx 取消。
// handle 返回错误时按退避等待，由 mqcore.RunConsumeLoop 驱动。
func consumeLoop(ctx context.Context, s *session, pollTimeout time.Duration, o *options,
	handle func(ctx context.Context, msg *kafka.Message) error,
) error {
	consume := func(ctx context.Context) error {
		msg, err := s.poll(pollTimeout)
		if err != nil || msg == nil {
			return err
		}
		return handle(ctx, msg)
	}

	loopOpts := []mqcore.ConsumeLoopOption{
		mqcore.WithOnError(func(err error, attempt int) {
			if ctx.Err() != nil {
				return
			}
			o.Logger.Warn(ctx, "consume failed",
				xlog.Group(s.groupID),
				xlog.Attempt(attempt),
				xlog.Err(err))
		}),
	}
	if o.LoopBackoff != nil {
		loopOpts = append(loopOpts, mqcore.WithBackoff(o.LoopBackoff))
	}
	return mqcore.RunConsumeLoop(ctx, consume, loopOpts...)
}
