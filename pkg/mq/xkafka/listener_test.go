package xkafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/omeyang/xrelay/pkg/resilience/xbreaker"
	"github.com/omeyang/xrelay/pkg/resilience/xretry"
	"github.com/omeyang/xrelay/pkg/storage/xmsglog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

func newTestListener(t *testing.T, b *fakeBroker, opts ...Option) *Listener {
	t.Helper()
	r := newTestRouter(t, b, opts...)
	opts = append([]Option{
		WithConsumerFactory(b.consumerFactory()),
		WithLoopBackoff(xretry.NewFixedBackoff(time.Millisecond)),
	}, opts...)
	l, err := NewListener(testConfig(), r, nil, opts...)
	require.NoError(t, err)
	return l
}

func TestNewListener_Validation(t *testing.T) {
	_, err := NewListener(testConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrNilRouter)

	r := newTestRouter(t, newFakeBroker())
	cfg := testConfig()
	cfg.Topic = "bad topic"
	_, err = NewListener(cfg, r, nil)
	assert.Error(t, err)
}

func TestListener_Topics(t *testing.T) {
	l := newTestListener(t, newFakeBroker())
	assert.Equal(t, []string{"orders", "orders-retry-0", "orders-retry-1"}, l.Topics())
}

func TestListener_RegisterProcessor(t *testing.T) {
	l := newTestListener(t, newFakeBroker())
	assert.ErrorIs(t, l.RegisterProcessor(nil), ErrNilProcessor)
	assert.NoError(t, l.RegisterProcessor(RejectContaining("x")))
}

func TestListener_SuccessAppendedOnce(t *testing.T) {
	b := newFakeBroker()
	l := newTestListener(t, b)
	b.inject("orders", 0, "a")
	b.inject("orders", 1, "b")

	cancel, done := runInBackground(t, l.Run)
	require.Eventually(t, func() bool { return l.Log().Len() == 2 }, waitFor, 5*time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, []string{"a", "b"}, l.Log().Snapshot())
	stats := l.Stats()
	assert.Equal(t, int64(2), stats.Received)
	assert.Equal(t, int64(2), stats.Completed)
	assert.Zero(t, stats.Failed)
	for _, c := range b.openConsumers() {
		assert.True(t, c.isClosed())
	}
}

func TestListener_FailureEscalatesToDLQ(t *testing.T) {
	b := newFakeBroker()
	logger, buf := newTestLogger(t)
	l := newTestListener(t, b, WithLogger(logger), WithProcessor(RejectContaining("error")))
	b.inject("orders", 2, "error-payload")
	b.inject("orders", 0, "fine")

	cancel, done := runInBackground(t, l.Run)
	require.Eventually(t, func() bool { return len(b.messages("orders.DLQ")) == 1 }, waitFor, 5*time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, []string{"error-payload"}, b.payloads("orders-retry-0"))
	assert.Equal(t, []string{"error-payload"}, b.payloads("orders-retry-1"))
	assert.Empty(t, b.messages("orders-retry-2"))

	dlq := b.messages("orders.DLQ")[0]
	assert.Equal(t, int32(2), dlq.TopicPartition.Partition)
	assert.Equal(t, "3", getHeader(dlq, HeaderRetryAttempt))

	assert.Equal(t, []string{"fine"}, l.Log().Snapshot())
	stats := l.Stats()
	assert.Equal(t, int64(3), stats.Failed)
	assert.Equal(t, int64(1), stats.Completed)
	assert.True(t, containsAll(buf.String(), "message processing failed", "message dead-lettered"))
}

func TestListener_ProcessorPanicBecomesFailure(t *testing.T) {
	b := newFakeBroker()
	l := newTestListener(t, b)
	require.NoError(t, l.RegisterProcessor(func(_ context.Context, payload string) error {
		if payload == "boom" {
			panic("kaboom")
		}
		return nil
	}))
	b.inject("orders", 0, "boom")

	cancel, done := runInBackground(t, l.Run)
	require.Eventually(t, func() bool { return len(b.messages("orders.DLQ")) == 1 }, waitFor, 5*time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	assert.Zero(t, l.Log().Len())
	record := DecodeDeadLetter(b.messages("orders.DLQ")[0])
	assert.Contains(t, record.Reason, "panicked")
}

func TestListener_RewindsWhenEscalationFails(t *testing.T) {
	b := newFakeBroker()
	b.setDeliveryErr(errors.New("broker unavailable"))
	breaker := xbreaker.NewBreaker("test-rewind",
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(1<<20)))
	l := newTestListener(t, b, WithProcessor(RejectContaining("error")), WithPublishBreaker(breaker))
	b.inject("orders", 0, "error-payload")

	cancel, done := runInBackground(t, l.Run)
	require.Eventually(t, func() bool { return l.Stats().Rewound >= 2 }, waitFor, 5*time.Millisecond)
	assert.Empty(t, b.messages("orders-retry-0"))

	b.setDeliveryErr(nil)
	require.Eventually(t, func() bool { return len(b.messages("orders-retry-0")) > 0 }, waitFor, 5*time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	consumers := b.openConsumers()
	require.NotEmpty(t, consumers)
	assert.GreaterOrEqual(t, consumers[0].seekCount(), 2)
}

func TestListener_ProcessorSwapTakesEffect(t *testing.T) {
	b := newFakeBroker()
	l := newTestListener(t, b)

	cancel, done := runInBackground(t, l.Run)
	b.inject("orders", 0, "first")
	require.Eventually(t, func() bool { return l.Log().Len() == 1 }, waitFor, 5*time.Millisecond)

	require.NoError(t, l.RegisterProcessor(RejectContaining("second")))
	b.inject("orders", 0, "second")
	require.Eventually(t, func() bool { return len(b.messages("orders-retry-0")) >= 1 }, waitFor, 5*time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, []string{"first"}, l.Log().Snapshot())
}

func TestListener_SharedLog(t *testing.T) {
	b := newFakeBroker()
	log := xmsglog.New()
	r := newTestRouter(t, b)
	l, err := NewListener(testConfig(), r, log, WithConsumerFactory(b.consumerFactory()))
	require.NoError(t, err)
	assert.Same(t, log, l.Log())
}

func TestDLQListener_LogsAndCallsBack(t *testing.T) {
	b := newFakeBroker()
	logger, buf := newTestLogger(t)

	var (
		mu      sync.Mutex
		records []DeadLetterRecord
	)
	l, err := NewDLQListener(testConfig(),
		WithLogger(logger),
		WithConsumerFactory(b.consumerFactory()),
		WithOnDeadLetter(func(_ context.Context, r DeadLetterRecord) {
			mu.Lock()
			records = append(records, r)
			mu.Unlock()
		}))
	require.NoError(t, err)

	last := failed("orders-retry-1", 0, 3, 3)
	out, _ := buildDeadLetterMessage(last, RetryStateOf(last, 3), ErrRejected, fixedNow)
	b.inject("orders.DLQ", out.TopicPartition.Partition, string(out.Value), out.Headers...)

	cancel, done := runInBackground(t, l.Run)
	require.Eventually(t, func() bool { return l.Received() == 1 }, waitFor, 5*time.Millisecond)
	cancel()
	require.NoError(t, waitDone(t, done))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, records, 1)
	assert.Equal(t, "orders", records[0].OriginalTopic)
	assert.Equal(t, int32(2), records[0].Partition)
	assert.Equal(t, "order-42", records[0].Payload)
	assert.True(t, containsAll(buf.String(), "dead letter received", "payload rejected"))

	// 死信监听器只记录，不再发布
	assert.Zero(t, b.produceCount())
	consumers := b.openConsumers()
	require.Len(t, consumers, 1)
	assert.Equal(t, "relay-dlq", consumers[0].group)
	assert.True(t, consumers[0].isClosed())
}
