package xkafka

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/omeyang/xrelay/pkg/observability/xlog"
	"github.com/omeyang/xrelay/pkg/observability/xmetrics"
	"github.com/omeyang/xrelay/pkg/resilience/xbreaker"
	"github.com/omeyang/xrelay/pkg/resilience/xretry"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Decision 失败消息的去向。
type Decision int

const (
	// DecisionRetry 发布到下一个重试主题。
	DecisionRetry Decision = iota + 1
	// DecisionDeadLetter 发布到死信主题，生命周期结束。
	DecisionDeadLetter
)

func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionDeadLetter:
		return "dead_letter"
	default:
		return "decision(" + strconv.Itoa(int(d)) + ")"
	}
}

// 路由器发布的默认传输层保护。
const (
	defaultPublishAttempts  = 3
	defaultBreakerThreshold = 5
)

// RouterStats 升级路由统计。
type RouterStats struct {
	// Escalated 进入路由器的失败消息数。
	Escalated int64
	// Retried 成功发布到重试主题的消息数。
	Retried int64
	// DeadLettered 成功发布到死信主题的消息数。
	DeadLettered int64
	// PublishFailed 发布失败（交回监听器回退）的次数。
	PublishFailed int64
	// ByTopic 按原始主题统计的死信数。
	ByTopic map[string]int64
}

// Clone 返回深拷贝。
func (s *RouterStats) Clone() RouterStats {
	out := *s
	out.ByTopic = make(map[string]int64, len(s.ByTopic))
	for k, v := range s.ByTopic {
		out.ByTopic[k] = v
	}
	return out
}

type routerStatsCollector struct {
	mu    sync.Mutex
	stats RouterStats
}

func newRouterStatsCollector() *routerStatsCollector {
	return &routerStatsCollector{stats: RouterStats{ByTopic: make(map[string]int64)}}
}

func (c *routerStatsCollector) incEscalated() {
	c.mu.Lock()
	c.stats.Escalated++
	c.mu.Unlock()
}

func (c *routerStatsCollector) incRetried() {
	c.mu.Lock()
	c.stats.Retried++
	c.mu.Unlock()
}

func (c *routerStatsCollector) incDeadLetter(topic string) {
	c.mu.Lock()
	c.stats.DeadLettered++
	c.stats.ByTopic[topic]++
	c.mu.Unlock()
}

func (c *routerStatsCollector) incPublishFailed() {
	c.mu.Lock()
	c.stats.PublishFailed++
	c.mu.Unlock()
}

func (c *routerStatsCollector) get() RouterStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.Clone()
}

// Router 将处理失败的消息升级到重试主题，耗尽后发往死信主题。
type Router struct {
	producer        ProducerClient
	maxAttempts     int
	retryDelay      time.Duration
	deliveryTimeout time.Duration
	guard           *xbreaker.RetryThenBreak
	options         *options
	stats           *routerStatsCollector
}

// NewRouter 创建 Router。producer 由调用方管理生命周期。
//
// 发布默认经 3 次传输层重试（retry-go）并受熔断器保护：
// broker 持续不可用时熔断器打开，Escalate 快速失败，由监听器回退并退避。
func NewRouter(producer ProducerClient, cfg Config, opts ...Option) (*Router, error) {
	if producer == nil {
		return nil, ErrNilClient
	}
	cfg = cfg.WithDefaults()
	o := applyOptions(opts)

	retryer := o.PublishRetryer
	if retryer == nil {
		retryer = xretry.NewRetryer(
			xretry.WithRetryPolicy(xretry.NewFixedRetry(defaultPublishAttempts)),
			xretry.WithBackoffPolicy(xretry.NewExponentialBackoff(
				xretry.WithInitialDelay(100*time.Millisecond),
				xretry.WithMaxDelay(time.Second),
			)),
		)
	}
	breaker := o.PublishBreaker
	if breaker == nil {
		breaker = xbreaker.NewBreaker(componentName+"-router",
			xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(defaultBreakerThreshold)),
			xbreaker.WithOnStateChange(func(name string, from, to xbreaker.State) {
				o.Logger.Warn(context.Background(), "publish breaker state changed",
					xlog.Component(name),
					xlog.Operation("escalate"),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			}),
		)
	}
	guard, err := xbreaker.NewRetryThenBreak(retryer, breaker)
	if err != nil {
		return nil, err
	}

	return &Router{
		producer:        producer,
		maxAttempts:     cfg.Consumer.RetryAttempts,
		retryDelay:      cfg.Consumer.RetryDelay,
		deliveryTimeout: cfg.Producer.DeliveryTimeout,
		guard:           guard,
		options:         o,
		stats:           newRouterStatsCollector(),
	}, nil
}

// Escalate 处理一条失败消息。
//
// 当前投递序号小于上限时等待 RetryDelay，再以序号+1 发布到 <原始主题>-retry-(序号-1)；
// 达到上限时以原始 payload 发布到 <原始主题>.DLQ 的原始分区，不再重新发布。
// 返回错误表示未能交接，调用方应保留原消息（不存储 offset）。
func (r *Router) Escalate(ctx context.Context, msg *kafka.Message, cause error) (decision Decision, err error) {
	if msg == nil {
		return 0, ErrNilMessage
	}
	r.stats.incEscalated()
	state := RetryStateOf(msg, r.maxAttempts)

	decision = DecisionRetry
	if state.Exhausted() {
		decision = DecisionDeadLetter
	}

	ctx, span := xmetrics.Start(ctx, r.options.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "escalate",
		Kind:      xmetrics.KindProducer,
		Attrs: append(kafkaAttrs(state.OriginalTopic),
			xmetrics.Int("attempt", state.Attempt),
			xmetrics.String("decision", decision.String())),
	})
	defer func() {
		span.End(xmetrics.Result{Err: err})
	}()

	if decision == DecisionDeadLetter {
		return decision, r.deadLetter(ctx, msg, state, cause)
	}
	return decision, r.retry(ctx, msg, state, cause)
}

func (r *Router) retry(ctx context.Context, msg *kafka.Message, state RetryState, cause error) error {
	if err := xretry.Sleep(ctx, r.retryDelay); err != nil {
		return err
	}
	out := buildRetryMessage(msg, state, cause, r.options.Now())
	injectKafkaTrace(ctx, r.options.Tracer, out)
	if err := r.publish(ctx, out); err != nil {
		r.stats.incPublishFailed()
		return err
	}
	r.stats.incRetried()
	r.options.Logger.Info(ctx, "message escalated to retry topic",
		xlog.Topic(topicOf(out)),
		xlog.Attempt(state.Attempt+1),
		xlog.MessageID(getHeader(msg, HeaderMessageID)),
		xlog.Err(cause))
	return nil
}

func (r *Router) deadLetter(ctx context.Context, msg *kafka.Message, state RetryState, cause error) error {
	out, record := buildDeadLetterMessage(msg, state, cause, r.options.Now())
	injectKafkaTrace(ctx, r.options.Tracer, out)
	if err := r.publish(ctx, out); err != nil {
		r.stats.incPublishFailed()
		return err
	}
	r.stats.incDeadLetter(state.OriginalTopic)
	r.options.Logger.Error(ctx, "message dead-lettered",
		xlog.Topic(topicOf(out)),
		xlog.Partition(record.Partition),
		xlog.Offset(record.Offset),
		xlog.Attempt(record.Attempts),
		xlog.MessageID(getHeader(msg, HeaderMessageID)),
		xlog.Err(cause))
	return nil
}

func (r *Router) publish(ctx context.Context, msg *kafka.Message) error {
	return r.guard.Do(ctx, func(ctx context.Context) error {
		_, err := produceAndWait(ctx, r.producer, msg, r.deliveryTimeout)
		return err
	})
}

// MaxAttempts 返回一条消息的总投递次数上限。
func (r *Router) MaxAttempts() int { return r.maxAttempts }

// Stats 返回路由统计。
func (r *Router) Stats() RouterStats { return r.stats.get() }

// BreakerState 返回发布熔断器状态。
func (r *Router) BreakerState() xbreaker.State { return r.guard.Breaker().State() }
