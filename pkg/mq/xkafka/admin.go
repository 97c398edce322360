package xkafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// EnsureTopics 创建主主题、全部重试主题和死信主题，已存在的主题被忽略。
// 所有主题使用相同的分区数，死信消息才能落在原始分区号上。
func EnsureTopics(ctx context.Context, admin AdminClient, cfg Config) error {
	if admin == nil {
		return ErrNilClient
	}
	cfg = cfg.WithDefaults()
	if cfg.Topic == "" {
		return ErrEmptyTopic
	}

	topics := AllTopics(cfg.Topic, cfg.Consumer.RetryAttempts)
	specs := make([]kafka.TopicSpecification, 0, len(topics))
	for _, t := range topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             t,
			NumPartitions:     cfg.Consumer.Partitions,
			ReplicationFactor: cfg.Consumer.ReplicationFactor,
		})
	}

	results, err := admin.CreateTopics(ctx, specs)
	if err != nil {
		return &BrokerError{Op: "create topics", Err: err}
	}

	var errs []error
	for _, r := range results {
		switch r.Error.Code() {
		case kafka.ErrNoError, kafka.ErrTopicAlreadyExists:
		default:
			errs = append(errs, fmt.Errorf("xkafka: create topic %s: %w", r.Topic, r.Error))
		}
	}
	return errors.Join(errs...)
}
