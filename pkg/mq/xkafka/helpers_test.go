package xkafka

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/omeyang/xrelay/pkg/observability/xlog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// 测试配置与日志
// =============================================================================

func testConfig() Config {
	return Config{
		Brokers: []string{"localhost:9092"},
		GroupID: "relay",
		Topic:   "orders",
		Producer: ProducerConfig{
			MaxAttempts:     3,
			Backoff:         "fixed",
			BackoffBase:     time.Millisecond,
			DeliveryTimeout: time.Second,
		},
		Consumer: ConsumerConfig{
			RetryAttempts: 3,
			RetryDelay:    time.Millisecond,
			PollTimeout:   5 * time.Millisecond,
		},
		Fetch: FetchConfig{PollTimeout: 20 * time.Millisecond},
	}
}

// syncBuffer 并发安全的日志缓冲。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(t *testing.T) (xlog.Logger, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	logger, cleanup, err := xlog.New().
		SetOutput(buf).
		SetFormat("json").
		SetLevel(xlog.LevelDebug).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	return logger, buf
}

// containsAll 判断日志输出是否包含全部片段。
func containsAll(out string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(out, p) {
			return false
		}
	}
	return true
}

// =============================================================================
// 内存 broker
// =============================================================================

// fakeBroker 单进程内存 broker：每个主题一条日志，offset 为日志下标，记录保留生产时的分区号。
type fakeBroker struct {
	mu        sync.Mutex
	topics    map[string][]*kafka.Message
	committed map[string]map[string]int64 // group -> topic -> next offset

	produceErr  error
	deliveryErr error
	produces    int
	consumers   []*fakeConsumer
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		topics:    make(map[string][]*kafka.Message),
		committed: make(map[string]map[string]int64),
	}
}

// inject 直接写入一条记录，返回其 offset。
func (b *fakeBroker) inject(topic string, partition int32, payload string, headers ...kafka.Header) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appendLocked(topic, partition, []byte(payload), headers)
}

func (b *fakeBroker) appendLocked(topic string, partition int32, value []byte, headers []kafka.Header) int64 {
	offset := int64(len(b.topics[topic]))
	t := topic
	b.topics[topic] = append(b.topics[topic], &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &t, Partition: partition, Offset: kafka.Offset(offset)},
		Value:          append([]byte(nil), value...),
		Headers:        cloneHeaders(headers),
		Timestamp:      time.Now(),
	})
	return offset
}

func (b *fakeBroker) messages(topic string) []*kafka.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*kafka.Message(nil), b.topics[topic]...)
}

func (b *fakeBroker) payloads(topic string) []string {
	var out []string
	for _, m := range b.messages(topic) {
		out = append(out, string(m.Value))
	}
	return out
}

func (b *fakeBroker) committedOffset(group, topic string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed[group][topic]
}

func (b *fakeBroker) produceCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.produces
}

func (b *fakeBroker) setDeliveryErr(err error) {
	b.mu.Lock()
	b.deliveryErr = err
	b.mu.Unlock()
}

func (b *fakeBroker) openConsumers() []*fakeConsumer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*fakeConsumer(nil), b.consumers...)
}

func (b *fakeBroker) producerFactory() ProducerFactory {
	return func(*kafka.ConfigMap) (ProducerClient, error) {
		return &fakeProducer{broker: b, events: make(chan kafka.Event, 128)}, nil
	}
}

func (b *fakeBroker) consumerFactory() ConsumerFactory {
	return func(cm *kafka.ConfigMap) (ConsumerClient, error) {
		group, err := cm.Get("group.id", "")
		if err != nil {
			return nil, err
		}
		c := &fakeConsumer{
			broker:   b,
			group:    group.(string),
			position: make(map[string]int64),
			stored:   make(map[string]int64),
		}
		b.mu.Lock()
		b.consumers = append(b.consumers, c)
		b.mu.Unlock()
		return c, nil
	}
}

// fakeProducer 写入 fakeBroker 的生产者。
type fakeProducer struct {
	broker    *fakeBroker
	events    chan kafka.Event
	closeOnce sync.Once
}

func (p *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	b := p.broker
	b.mu.Lock()
	b.produces++
	if b.produceErr != nil {
		err := b.produceErr
		b.mu.Unlock()
		return err
	}
	report := &kafka.Message{
		TopicPartition: msg.TopicPartition,
		Value:          msg.Value,
		Headers:        msg.Headers,
	}
	if report.TopicPartition.Partition == kafka.PartitionAny {
		report.TopicPartition.Partition = 0
	}
	if b.deliveryErr != nil {
		report.TopicPartition.Error = b.deliveryErr
	} else {
		offset := b.appendLocked(*msg.TopicPartition.Topic, report.TopicPartition.Partition, msg.Value, msg.Headers)
		report.TopicPartition.Offset = kafka.Offset(offset)
	}
	b.mu.Unlock()

	if deliveryChan != nil {
		deliveryChan <- report
	} else {
		p.events <- report
	}
	return nil
}

func (p *fakeProducer) Events() chan kafka.Event { return p.events }
func (p *fakeProducer) Flush(int) int            { return 0 }
func (p *fakeProducer) Len() int                 { return 0 }
func (p *fakeProducer) Close()                   { p.closeOnce.Do(func() { close(p.events) }) }

// fakeConsumer 从 fakeBroker 读取，起始位置为消费组已提交的 offset（等价于 earliest）。
type fakeConsumer struct {
	broker   *fakeBroker
	group    string
	topics   []string
	position map[string]int64
	stored   map[string]int64
	seeks    []kafka.TopicPartition
	polls    int
	closed   bool
}

func (c *fakeConsumer) SubscribeTopics(topics []string, _ kafka.RebalanceCb) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.topics = append([]string(nil), topics...)
	for _, t := range topics {
		c.position[t] = c.broker.committed[c.group][t]
	}
	return nil
}

func (c *fakeConsumer) Poll(timeoutMs int) kafka.Event {
	c.broker.mu.Lock()
	c.polls++
	for _, t := range c.topics {
		log := c.broker.topics[t]
		if pos := c.position[t]; pos < int64(len(log)) {
			c.position[t] = pos + 1
			msg := log[pos]
			c.broker.mu.Unlock()
			return msg
		}
	}
	c.broker.mu.Unlock()
	if timeoutMs > 0 {
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (c *fakeConsumer) StoreMessage(m *kafka.Message) ([]kafka.TopicPartition, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.stored[*m.TopicPartition.Topic] = int64(m.TopicPartition.Offset) + 1
	return nil, nil
}

func (c *fakeConsumer) Commit() ([]kafka.TopicPartition, error) {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if len(c.stored) == 0 {
		return nil, kafka.NewError(kafka.ErrNoOffset, "no offset stored", false)
	}
	if c.broker.committed[c.group] == nil {
		c.broker.committed[c.group] = make(map[string]int64)
	}
	for t, off := range c.stored {
		c.broker.committed[c.group][t] = off
	}
	return nil, nil
}

func (c *fakeConsumer) Seek(tp kafka.TopicPartition, _ int) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.seeks = append(c.seeks, tp)
	c.position[*tp.Topic] = int64(tp.Offset)
	return nil
}

func (c *fakeConsumer) Close() error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConsumer) isClosed() bool {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return c.closed
}

func (c *fakeConsumer) seekCount() int {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	return len(c.seeks)
}

// runInBackground 运行 fn 直到测试结束，返回取消函数和结果通道。
func runInBackground(t *testing.T, fn func(ctx context.Context) error) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run to return")
		return nil
	}
}
