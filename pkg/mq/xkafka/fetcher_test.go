package xkafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestFetcher(t *testing.T, factory ConsumerFactory, opts ...Option) *Fetcher {
	t.Helper()
	f, err := NewFetcher(testConfig(), append([]Option{WithConsumerFactory(factory)}, opts...)...)
	require.NoError(t, err)
	return f
}

func TestFetcher_ReturnsAtMostMaxCount(t *testing.T) {
	b := newFakeBroker()
	for _, p := range []string{"m0", "m1", "m2", "m3", "m4"} {
		b.inject("orders", 0, p)
	}
	f := newTestFetcher(t, b.consumerFactory())

	got, err := f.Fetch(context.Background(), "orders", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1"}, got)
	assert.Equal(t, int64(2), b.committedOffset("relay-fetch", "orders"))

	consumers := b.openConsumers()
	require.Len(t, consumers, 1)
	assert.True(t, consumers[0].isClosed())
	// 预热轮询拿到的消息被回退
	assert.Equal(t, 1, consumers[0].seekCount())

	// 下一次调用从已提交的位置继续
	got, err = f.Fetch(context.Background(), "orders", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3", "m4"}, got)
	assert.Equal(t, int64(5), b.committedOffset("relay-fetch", "orders"))
}

func TestFetcher_IdleTopicReturnsEmpty(t *testing.T) {
	b := newFakeBroker()
	f := newTestFetcher(t, b.consumerFactory())

	start := time.Now()
	got, err := f.Fetch(context.Background(), "orders", 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Less(t, time.Since(start), time.Second)

	consumers := b.openConsumers()
	require.Len(t, consumers, 1)
	assert.True(t, consumers[0].isClosed())
	assert.Zero(t, b.committedOffset("relay-fetch", "orders"))
}

func TestFetcher_NonPositiveMaxCount(t *testing.T) {
	b := newFakeBroker()
	b.inject("orders", 0, "m0")
	f := newTestFetcher(t, b.consumerFactory())

	for _, n := range []int{0, -1} {
		got, err := f.Fetch(context.Background(), "orders", n)
		require.NoError(t, err)
		assert.Equal(t, []string{}, got)
	}
	assert.Empty(t, b.openConsumers(), "no session for an empty request")
}

func TestFetcher_EmptyTopic(t *testing.T) {
	f := newTestFetcher(t, newFakeBroker().consumerFactory())
	_, err := f.Fetch(context.Background(), "", 1)
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestFetcher_UsesIsolatedGroup(t *testing.T) {
	var seen *kafka.ConfigMap
	b := newFakeBroker()
	inner := b.consumerFactory()
	f := newTestFetcher(t, func(cm *kafka.ConfigMap) (ConsumerClient, error) {
		seen = cm
		return inner(cm)
	})

	_, err := f.Fetch(context.Background(), "orders", 1)
	require.NoError(t, err)
	require.NotNil(t, seen)

	group, err := seen.Get("group.id", "")
	require.NoError(t, err)
	assert.Equal(t, "relay-fetch", group)
	autoCommit, err := seen.Get("enable.auto.commit", true)
	require.NoError(t, err)
	assert.Equal(t, false, autoCommit)
	clientID, err := seen.Get("client.id", "")
	require.NoError(t, err)
	assert.Contains(t, clientID, "xrelay-fetch-")
}

func TestFetcher_PollErrorStillClosesSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	consumer := NewMockConsumerClient(ctrl)
	logger, buf := newTestLogger(t)

	gomock.InOrder(
		consumer.EXPECT().SubscribeTopics([]string{"orders"}, gomock.Any()).Return(nil),
		consumer.EXPECT().Poll(0).Return(kafka.NewError(kafka.ErrAllBrokersDown, "all brokers down", false)),
		consumer.EXPECT().Close().Return(nil),
	)

	f := newTestFetcher(t, func(*kafka.ConfigMap) (ConsumerClient, error) { return consumer, nil }, WithLogger(logger))
	got, err := f.Fetch(context.Background(), "orders", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, containsAll(buf.String(), "fetch session error", "all brokers down"))
}

func TestFetcher_SubscribeErrorClosesConsumer(t *testing.T) {
	ctrl := gomock.NewController(t)
	consumer := NewMockConsumerClient(ctrl)
	consumer.EXPECT().SubscribeTopics(gomock.Any(), gomock.Any()).Return(errors.New("unknown topic"))
	consumer.EXPECT().Close().Return(nil)

	f := newTestFetcher(t, func(*kafka.ConfigMap) (ConsumerClient, error) { return consumer, nil })
	got, err := f.Fetch(context.Background(), "orders", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetcher_FactoryError(t *testing.T) {
	f := newTestFetcher(t, func(*kafka.ConfigMap) (ConsumerClient, error) {
		return nil, errors.New("invalid config")
	})
	got, err := f.Fetch(context.Background(), "orders", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetcher_PartialResultOnCommitError(t *testing.T) {
	ctrl := gomock.NewController(t)
	consumer := NewMockConsumerClient(ctrl)
	topic := "orders"
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 0, Offset: 0},
		Value:          []byte("m0"),
	}

	consumer.EXPECT().SubscribeTopics(gomock.Any(), gomock.Any()).Return(nil)
	gomock.InOrder(
		consumer.EXPECT().Poll(0).Return(nil),
		consumer.EXPECT().Poll(gomock.Not(0)).Return(msg),
		consumer.EXPECT().Poll(0).Return(nil),
	)
	consumer.EXPECT().StoreMessage(msg).Return(nil, nil)
	consumer.EXPECT().Commit().Return(nil, kafka.NewError(kafka.ErrRebalanceInProgress, "rebalance", false))
	consumer.EXPECT().Close().Return(nil)

	f := newTestFetcher(t, func(*kafka.ConfigMap) (ConsumerClient, error) { return consumer, nil })
	got, err := f.Fetch(context.Background(), "orders", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0"}, got)
}

func TestFetcher_IgnoresTimeoutEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	consumer := NewMockConsumerClient(ctrl)
	topic := "orders"
	msg := &kafka.Message{TopicPartition: kafka.TopicPartition{Topic: &topic}, Value: []byte("m0")}

	consumer.EXPECT().SubscribeTopics(gomock.Any(), gomock.Any()).Return(nil)
	gomock.InOrder(
		consumer.EXPECT().Poll(0).Return(kafka.NewError(kafka.ErrPartitionEOF, "eof", false)),
		consumer.EXPECT().Poll(gomock.Not(0)).Return(msg),
		consumer.EXPECT().Poll(0).Return(kafka.NewError(kafka.ErrTimedOut, "timed out", false)),
		consumer.EXPECT().Poll(gomock.Not(0)).Return(nil),
	)
	consumer.EXPECT().StoreMessage(msg).Return(nil, nil)
	consumer.EXPECT().Commit().Return(nil, nil)
	consumer.EXPECT().Close().Return(nil)

	f := newTestFetcher(t, func(*kafka.ConfigMap) (ConsumerClient, error) { return consumer, nil })
	got, err := f.Fetch(context.Background(), "orders", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"m0"}, got)
}
