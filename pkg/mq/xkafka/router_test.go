package xkafka

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/omeyang/xrelay/pkg/resilience/xbreaker"
	"github.com/omeyang/xrelay/pkg/resilience/xretry"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// singleShot 路由器发布只尝试一次，测试中不产生传输层退避。
func singleShot() Option {
	return WithPublishRetryer(xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewFixedRetry(1)),
		xretry.WithBackoffPolicy(xretry.NewNoBackoff()),
	))
}

func newTestRouter(t *testing.T, b *fakeBroker, opts ...Option) *Router {
	t.Helper()
	producer, err := b.producerFactory()(nil)
	require.NoError(t, err)
	t.Cleanup(producer.Close)

	opts = append([]Option{singleShot(), withClock(func() time.Time { return fixedNow })}, opts...)
	r, err := NewRouter(producer, testConfig(), opts...)
	require.NoError(t, err)
	return r
}

// failed 构造一条来自 topic 的失败消息，attempt 为 0 时不带重试 Header。
func failed(topic string, partition int32, offset int64, attempt int) *kafka.Message {
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: partition, Offset: kafka.Offset(offset)},
		Value:          []byte("order-42"),
		Headers:        []kafka.Header{{Key: HeaderMessageID, Value: []byte("id-1")}},
	}
	if attempt > 0 {
		setHeader(msg, HeaderRetryAttempt, strconv.Itoa(attempt))
		setHeader(msg, HeaderOriginalTopic, "orders")
		setHeader(msg, HeaderOriginalPartition, "2")
		setHeader(msg, HeaderOriginalOffset, "5")
		setHeader(msg, HeaderFirstFailTime, fixedNow.Add(-time.Minute).Format(time.RFC3339Nano))
	}
	return msg
}

func TestNewRouter_NilProducer(t *testing.T) {
	_, err := NewRouter(nil, testConfig())
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestRouter_FirstFailureGoesToFirstRetryTopic(t *testing.T) {
	b := newFakeBroker()
	r := newTestRouter(t, b)

	decision, err := r.Escalate(context.Background(), failed("orders", 2, 5, 0), ErrRejected)
	require.NoError(t, err)
	assert.Equal(t, DecisionRetry, decision)

	msgs := b.messages("orders-retry-0")
	require.Len(t, msgs, 1)
	out := msgs[0]
	assert.Equal(t, "order-42", string(out.Value))
	assert.Equal(t, "2", getHeader(out, HeaderRetryAttempt))
	assert.Equal(t, "orders", getHeader(out, HeaderOriginalTopic))
	assert.Equal(t, "2", getHeader(out, HeaderOriginalPartition))
	assert.Equal(t, "5", getHeader(out, HeaderOriginalOffset))
	assert.Equal(t, "id-1", getHeader(out, HeaderMessageID))
	assert.Contains(t, getHeader(out, HeaderFailureReason), "rejected")

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Escalated)
	assert.Equal(t, int64(1), stats.Retried)
	assert.Empty(t, b.messages("orders.DLQ"))
}

func TestRouter_SecondFailureGoesToSecondRetryTopic(t *testing.T) {
	b := newFakeBroker()
	r := newTestRouter(t, b)

	decision, err := r.Escalate(context.Background(), failed("orders-retry-0", 0, 0, 2), ErrRejected)
	require.NoError(t, err)
	assert.Equal(t, DecisionRetry, decision)

	msgs := b.messages("orders-retry-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "3", getHeader(msgs[0], HeaderRetryAttempt))
	// 首次失败时间沿用上一次的 Header
	assert.Equal(t, fixedNow.Add(-time.Minute), parseTime(getHeader(msgs[0], HeaderFirstFailTime)))
}

func TestRouter_ExhaustedGoesToDLQOnOriginalPartition(t *testing.T) {
	b := newFakeBroker()
	logger, buf := newTestLogger(t)
	r := newTestRouter(t, b, WithLogger(logger))

	decision, err := r.Escalate(context.Background(), failed("orders-retry-1", 0, 9, 3), ErrRejected)
	require.NoError(t, err)
	assert.Equal(t, DecisionDeadLetter, decision)

	msgs := b.messages("orders.DLQ")
	require.Len(t, msgs, 1)
	out := msgs[0]
	assert.Equal(t, int32(2), out.TopicPartition.Partition)
	assert.Equal(t, "order-42", string(out.Value))

	record := DecodeDeadLetter(out)
	assert.Equal(t, "orders", record.OriginalTopic)
	assert.Equal(t, int32(2), record.Partition)
	assert.Equal(t, int64(5), record.Offset)
	assert.Equal(t, 3, record.Attempts)
	assert.Equal(t, fixedNow, record.LastFailure)
	assert.Contains(t, record.Reason, "rejected")

	assert.Empty(t, b.messages("orders-retry-2"))
	stats := r.Stats()
	assert.Equal(t, int64(1), stats.DeadLettered)
	assert.Equal(t, int64(1), stats.ByTopic["orders"])
	assert.True(t, containsAll(buf.String(), "message dead-lettered"))
}

func TestRouter_SingleAttemptDeadLettersImmediately(t *testing.T) {
	b := newFakeBroker()
	producer, err := b.producerFactory()(nil)
	require.NoError(t, err)
	defer producer.Close()

	cfg := testConfig()
	cfg.Consumer.RetryAttempts = 1
	r, err := NewRouter(producer, cfg, singleShot())
	require.NoError(t, err)

	decision, err := r.Escalate(context.Background(), failed("orders", 1, 0, 0), ErrRejected)
	require.NoError(t, err)
	assert.Equal(t, DecisionDeadLetter, decision)
	require.Len(t, b.messages("orders.DLQ"), 1)
	assert.Equal(t, int32(1), b.messages("orders.DLQ")[0].TopicPartition.Partition)
}

func TestRouter_PublishFailure(t *testing.T) {
	b := newFakeBroker()
	b.setDeliveryErr(errors.New("broker unavailable"))
	r := newTestRouter(t, b)

	_, err := r.Escalate(context.Background(), failed("orders", 0, 0, 0), ErrRejected)
	require.Error(t, err)
	var be *BrokerError
	assert.ErrorAs(t, err, &be)

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.PublishFailed)
	assert.Equal(t, int64(0), stats.Retried)
}

func TestRouter_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	b := newFakeBroker()
	b.setDeliveryErr(errors.New("broker unavailable"))
	breaker := xbreaker.NewBreaker("test-router",
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(2)))
	r := newTestRouter(t, b, WithPublishBreaker(breaker))

	for i := 0; i < 2; i++ {
		_, err := r.Escalate(context.Background(), failed("orders", 0, int64(i), 0), ErrRejected)
		require.Error(t, err)
	}
	assert.Equal(t, xbreaker.StateOpen, r.BreakerState())

	produced := b.produceCount()
	_, err := r.Escalate(context.Background(), failed("orders", 0, 2, 0), ErrRejected)
	assert.True(t, xbreaker.IsBreakerError(err))
	assert.Equal(t, produced, b.produceCount(), "open breaker must not reach the producer")
}

func TestRouter_RetryDelayHonorsContext(t *testing.T) {
	b := newFakeBroker()
	producer, err := b.producerFactory()(nil)
	require.NoError(t, err)
	defer producer.Close()

	cfg := testConfig()
	cfg.Consumer.RetryDelay = time.Hour
	r, err := NewRouter(producer, cfg, singleShot())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Escalate(ctx, failed("orders", 0, 0, 0), ErrRejected)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, b.produceCount())
}

func TestRouter_NilMessage(t *testing.T) {
	r := newTestRouter(t, newFakeBroker())
	_, err := r.Escalate(context.Background(), nil, ErrRejected)
	assert.ErrorIs(t, err, ErrNilMessage)
	assert.Equal(t, 3, r.MaxAttempts())
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "retry", DecisionRetry.String())
	assert.Equal(t, "dead_letter", DecisionDeadLetter.String())
	assert.Equal(t, "decision(9)", Decision(9).String())
}
