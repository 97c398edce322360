package xkafka

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/omeyang/xrelay/pkg/resilience/xretry"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// 默认值。
const (
	DefaultMaxAttempts       = 3
	DefaultBackoff           = "fixed"
	DefaultBackoffBase       = time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultBackoffMax        = 5 * time.Second
	DefaultDeliveryTimeout   = 10 * time.Second
	DefaultFlushTimeout      = 10 * time.Second

	DefaultRetryAttempts     = 3
	DefaultRetryDelay        = 2 * time.Second
	DefaultConcurrency       = 1
	DefaultPollTimeout       = 100 * time.Millisecond
	DefaultPartitions        = 1
	DefaultReplicationFactor = 1

	DefaultFetchPollTimeout = 2 * time.Second

	// FetchGroupSuffix 默认拉取消费组后缀，与持续监听的消费组隔离。
	FetchGroupSuffix = "-fetch"
	// DLQGroupSuffix 死信监听消费组后缀。
	DLQGroupSuffix = "-dlq"
)

// maxTopicLength 为 ".DLQ" 等派生后缀预留空间（Kafka 主题名上限 249）。
const maxTopicLength = 232

var topicPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Config 消息可靠投递核心配置。
//
//	kafka:
//	  brokers: ["localhost:9092"]
//	  group_id: relay
//	  topic: orders
//	  producer:
//	    max_attempts: 3
//	    backoff: exponential
//	  consumer:
//	    retry_attempts: 3
//	    retry_delay: 2s
type Config struct {
	Brokers  []string       `koanf:"brokers"`
	GroupID  string         `koanf:"group_id"`
	Topic    string         `koanf:"topic"`
	Producer ProducerConfig `koanf:"producer"`
	Consumer ConsumerConfig `koanf:"consumer"`
	Fetch    FetchConfig    `koanf:"fetch"`

	// Extra 透传给 librdkafka 的原始配置项（如 security.protocol），
	// 生产者会过滤掉仅消费者可用的键。
	Extra map[string]string `koanf:"extra"`
}

// ProducerConfig 发送端重试配置。
type ProducerConfig struct {
	// MaxAttempts 重试发送的最大尝试次数（含首次）。
	MaxAttempts int `koanf:"max_attempts"`
	// Backoff 退避类型：fixed 或 exponential。
	Backoff           string        `koanf:"backoff"`
	BackoffBase       time.Duration `koanf:"backoff_base"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
	BackoffMax        time.Duration `koanf:"backoff_max"`
	// DeliveryTimeout 每次尝试等待 broker 确认的上限。
	DeliveryTimeout time.Duration `koanf:"delivery_timeout"`
	// FlushTimeout 关闭时刷新队列的上限。
	FlushTimeout time.Duration `koanf:"flush_timeout"`
}

// ConsumerConfig 消费端重试主题配置。
type ConsumerConfig struct {
	// RetryAttempts 一条消息的总投递次数（主主题 + 重试主题），耗尽后进入死信。
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	// Concurrency worker 数量，每个 worker 一个消费者。RetryDelay 期间 worker 持有的
	// 全部分区都会暂停，建议不小于所订阅主题的分区总数。
	Concurrency   int           `koanf:"concurrency"`
	PollTimeout   time.Duration `koanf:"poll_timeout"`
	// CreateTopics 为 true 时 Run 前创建主主题、重试主题和死信主题。
	CreateTopics      bool `koanf:"create_topics"`
	Partitions        int  `koanf:"partitions"`
	ReplicationFactor int  `koanf:"replication_factor"`
}

// FetchConfig 按需拉取配置。
type FetchConfig struct {
	// GroupID 为空时使用 <group_id>-fetch。
	GroupID     string        `koanf:"group_id"`
	PollTimeout time.Duration `koanf:"poll_timeout"`
}

// WithDefaults 返回补齐默认值后的副本。
func (c Config) WithDefaults() Config {
	c.Producer = c.Producer.withDefaults()
	c.Consumer = c.Consumer.withDefaults()
	if c.Fetch.GroupID == "" && c.GroupID != "" {
		c.Fetch.GroupID = c.GroupID + FetchGroupSuffix
	}
	if c.Fetch.PollTimeout <= 0 {
		c.Fetch.PollTimeout = DefaultFetchPollTimeout
	}
	return c
}

func (p ProducerConfig) withDefaults() ProducerConfig {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Backoff == "" {
		p.Backoff = DefaultBackoff
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = DefaultBackoffBase
	}
	if p.BackoffMultiplier <= 0 {
		p.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if p.BackoffMax <= 0 {
		p.BackoffMax = DefaultBackoffMax
	}
	if p.DeliveryTimeout <= 0 {
		p.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if p.FlushTimeout <= 0 {
		p.FlushTimeout = DefaultFlushTimeout
	}
	return p
}

func (c ConsumerConfig) withDefaults() ConsumerConfig {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.Partitions <= 0 {
		c.Partitions = DefaultPartitions
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = DefaultReplicationFactor
	}
	return c
}

// Validate 实现 xconf.Validator。
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Brokers, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.GroupID, validation.Required, validation.Match(topicPattern)),
		validation.Field(&c.Topic, validation.Required,
			validation.Length(1, maxTopicLength), validation.Match(topicPattern)),
		validation.Field(&c.Producer),
		validation.Field(&c.Consumer),
		validation.Field(&c.Fetch),
	)
}

// Validate 校验发送端配置。
func (p ProducerConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.MaxAttempts, validation.Min(1)),
		validation.Field(&p.Backoff, validation.By(func(any) error {
			_, err := xretry.ParseBackoffKind(p.Backoff)
			return err
		})),
		validation.Field(&p.BackoffBase, validation.Min(time.Duration(0))),
		validation.Field(&p.BackoffMultiplier, validation.Min(1.0)),
		validation.Field(&p.BackoffMax, validation.Min(time.Duration(0)), validation.By(p.checkBackoffMax)),
		validation.Field(&p.DeliveryTimeout, validation.Min(time.Millisecond)),
		validation.Field(&p.FlushTimeout, validation.Min(time.Duration(0))),
	)
}

// checkBackoffMax 指数退避的上限不得小于起始延迟。
func (p ProducerConfig) checkBackoffMax(any) error {
	kind, err := xretry.ParseBackoffKind(p.Backoff)
	if err != nil || kind != xretry.BackoffExponential {
		return nil
	}
	if p.BackoffMax > 0 && p.BackoffBase > 0 && p.BackoffMax < p.BackoffBase {
		return fmt.Errorf("must not be less than backoff_base (%s)", p.BackoffBase)
	}
	return nil
}

// Validate 校验消费端配置。
func (c ConsumerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.RetryAttempts, validation.Min(1)),
		validation.Field(&c.RetryDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.Concurrency, validation.Min(1)),
		validation.Field(&c.PollTimeout, validation.Min(time.Millisecond)),
		validation.Field(&c.Partitions, validation.Min(1)),
		validation.Field(&c.ReplicationFactor, validation.Min(1)),
	)
}

// Validate 校验拉取配置。
func (f FetchConfig) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.GroupID, validation.Match(topicPattern)),
		validation.Field(&f.PollTimeout, validation.Min(time.Millisecond)),
	)
}

// BackoffPolicy 按配置构建发送端退避策略。
func (p ProducerConfig) BackoffPolicy() (xretry.BackoffPolicy, error) {
	p = p.withDefaults()
	kind, err := xretry.ParseBackoffKind(p.Backoff)
	if err != nil {
		return nil, err
	}
	return xretry.NewBackoff(kind, p.BackoffBase, p.BackoffMultiplier, p.BackoffMax)
}

// ListenTopics 返回监听器订阅的主题：主主题加全部重试主题。
func (c Config) ListenTopics() []string {
	return append([]string{c.Topic}, RetryTopics(c.Topic, c.Consumer.RetryAttempts)...)
}

// producerConfigMap 生产者配置。
func (c Config) producerConfigMap() (*kafka.ConfigMap, error) {
	base, err := c.baseConfigMap()
	if err != nil {
		return nil, err
	}
	return filterProducerConfig(base)
}

// consumerConfigMap 持续监听的消费者配置。
func (c Config) consumerConfigMap(groupID string) (*kafka.ConfigMap, error) {
	cm, err := c.baseConfigMap()
	if err != nil {
		return nil, err
	}
	if err := setKeys(cm, map[string]kafka.ConfigValue{
		"group.id":          groupID,
		"auto.offset.reset": "earliest",
	}); err != nil {
		return nil, err
	}
	return cm, nil
}

// fetchConfigMap 拉取会话配置：独立消费组，关闭自动提交，每次调用使用唯一 client.id。
func (c Config) fetchConfigMap() (*kafka.ConfigMap, error) {
	cm, err := c.consumerConfigMap(c.Fetch.GroupID)
	if err != nil {
		return nil, err
	}
	if err := setKeys(cm, map[string]kafka.ConfigValue{
		"enable.auto.commit": false,
		"client.id":          "xrelay-fetch-" + uuid.NewString(),
	}); err != nil {
		return nil, err
	}
	return cm, nil
}

// adminConfigMap 管理客户端配置。
func (c Config) adminConfigMap() (*kafka.ConfigMap, error) {
	return c.producerConfigMap()
}

func (c Config) baseConfigMap() (*kafka.ConfigMap, error) {
	cm := &kafka.ConfigMap{}
	for k, v := range c.Extra {
		if err := cm.SetKey(k, v); err != nil {
			return nil, fmt.Errorf("xkafka: set extra key %q: %w", k, err)
		}
	}
	if err := cm.SetKey("bootstrap.servers", strings.Join(c.Brokers, ",")); err != nil {
		return nil, fmt.Errorf("xkafka: set bootstrap.servers: %w", err)
	}
	return cm, nil
}

func setKeys(cm *kafka.ConfigMap, kv map[string]kafka.ConfigValue) error {
	for k, v := range kv {
		if err := cm.SetKey(k, v); err != nil {
			return fmt.Errorf("xkafka: set %q: %w", k, err)
		}
	}
	return nil
}
