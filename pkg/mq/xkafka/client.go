package xkafka

import (
	"context"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

//go:generate mockgen -source=client.go -destination=mock_client_test.go -package=xkafka

// ProducerClient 本包使用的生产者能力子集，*kafka.Producer 实现此接口。
type ProducerClient interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Len() int
	Close()
}

// ConsumerClient 本包使用的消费者能力子集，*kafka.Consumer 实现此接口。
type ConsumerClient interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	Poll(timeoutMs int) kafka.Event
	StoreMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
	Commit() ([]kafka.TopicPartition, error)
	Seek(partition kafka.TopicPartition, ignoredTimeoutMs int) error
	Close() error
}

// AdminClient 本包使用的管理能力子集，*kafka.AdminClient 实现此接口。
type AdminClient interface {
	CreateTopics(ctx context.Context, topics []kafka.TopicSpecification,
		options ...kafka.CreateTopicsAdminOption) ([]kafka.TopicResult, error)
	Close()
}

// 编译时检查。
var (
	_ ProducerClient = (*kafka.Producer)(nil)
	_ ConsumerClient = (*kafka.Consumer)(nil)
	_ AdminClient    = (*kafka.AdminClient)(nil)
)

// ProducerFactory 按配置创建生产者。
type ProducerFactory func(config *kafka.ConfigMap) (ProducerClient, error)

// ConsumerFactory 按配置创建消费者。每个监听 worker 和每次 Fetch 各自调用一次。
type ConsumerFactory func(config *kafka.ConfigMap) (ConsumerClient, error)

// AdminFactory 按配置创建管理客户端。
type AdminFactory func(config *kafka.ConfigMap) (AdminClient, error)

// NewKafkaProducer 默认 ProducerFactory，基于 confluent-kafka-go。
func NewKafkaProducer(config *kafka.ConfigMap) (ProducerClient, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	cloned, err := cloneConfig(config)
	if err != nil {
		return nil, err
	}
	p, err := kafka.NewProducer(cloned)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewKafkaConsumer 默认 ConsumerFactory，基于 confluent-kafka-go。
//
// 强制设置 enable.auto.offset.store=false：offset 只在消息处理完成后
// 通过 StoreMessage 显式存储，保证 at-least-once。
func NewKafkaConsumer(config *kafka.ConfigMap) (ConsumerClient, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	cloned, err := cloneConfig(config)
	if err != nil {
		return nil, err
	}
	if err := cloned.SetKey("enable.auto.offset.store", false); err != nil {
		return nil, fmt.Errorf("failed to set enable.auto.offset.store: %w", err)
	}
	c, err := kafka.NewConsumer(cloned)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewKafkaAdmin 默认 AdminFactory，基于 confluent-kafka-go。
func NewKafkaAdmin(config *kafka.ConfigMap) (AdminClient, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	a, err := kafka.NewAdminClient(config)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// cloneConfig 复制配置，避免修改调用方传入的 ConfigMap。
func cloneConfig(config *kafka.ConfigMap) (*kafka.ConfigMap, error) {
	cloned := &kafka.ConfigMap{}
	for k, v := range *config {
		if err := cloned.SetKey(k, v); err != nil {
			return nil, fmt.Errorf("clone config key %q: %w", k, err)
		}
	}
	return cloned, nil
}

// consumerOnlyKeys 仅消费者可用的 librdkafka 配置项，生产者会拒绝它们。
var consumerOnlyKeys = map[string]bool{
	"group.id":                      true,
	"group.instance.id":             true,
	"auto.offset.reset":             true,
	"enable.auto.commit":            true,
	"auto.commit.interval.ms":       true,
	"enable.auto.offset.store":      true,
	"partition.assignment.strategy": true,
	"session.timeout.ms":            true,
	"heartbeat.interval.ms":         true,
	"max.poll.interval.ms":          true,
	"fetch.min.bytes":               true,
	"fetch.max.bytes":               true,
	"fetch.wait.max.ms":             true,
	"max.partition.fetch.bytes":     true,
	"isolation.level":               true,
	"check.crcs":                    true,
	"queued.min.messages":           true,
	"queued.max.messages.kbytes":    true,
	"fetch.message.max.bytes":       true,
}

// filterProducerConfig 从通用配置派生生产者配置，过滤仅消费者可用的配置项。
func filterProducerConfig(config *kafka.ConfigMap) (*kafka.ConfigMap, error) {
	producerConfig := &kafka.ConfigMap{}
	for key, value := range *config {
		if consumerOnlyKeys[key] {
			continue
		}
		if err := producerConfig.SetKey(key, value); err != nil {
			return nil, fmt.Errorf("set producer config key %q: %w", key, err)
		}
	}
	return producerConfig, nil
}
