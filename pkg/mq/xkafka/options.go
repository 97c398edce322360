package xkafka

import (
	"context"
	"time"

	"github.com/omeyang/xrelay/pkg/observability/xlog"
	"github.com/omeyang/xrelay/pkg/observability/xmetrics"
	"github.com/omeyang/xrelay/pkg/resilience/xbreaker"
	"github.com/omeyang/xrelay/pkg/resilience/xretry"
	"github.com/omeyang/xrelay/pkg/storage/xmsglog"
)

// options 各组件共享的可选依赖，组件忽略与自身无关的选项。
type options struct {
	Logger   xlog.Logger
	Tracer   Tracer
	Observer xmetrics.Observer

	Log          *xmsglog.Log
	Processor    Processor
	OnDeadLetter func(ctx context.Context, record DeadLetterRecord)

	NewProducer ProducerFactory
	NewConsumer ConsumerFactory
	NewAdmin    AdminFactory

	PublishRetryer *xretry.Retryer
	PublishBreaker *xbreaker.Breaker
	LoopBackoff    xretry.BackoffPolicy

	Now func() time.Time
}

func defaultOptions() *options {
	return &options{
		Logger:      xlog.Default(),
		Tracer:      NewOTelTracer(),
		Observer:    xmetrics.NoopObserver{},
		NewProducer: NewKafkaProducer,
		NewConsumer: NewKafkaConsumer,
		NewAdmin:    NewKafkaAdmin,
		Now:         time.Now,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Option 配置选项函数。
type Option func(*options)

// WithLogger 设置日志记录器。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithTracer 设置链路追踪器，默认使用 W3C Trace Context + Baggage 传播。
// 传入 NoopTracer{} 可关闭消息头中的追踪传播。
func WithTracer(tracer Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.Tracer = tracer
		}
	}
}

// WithObserver 设置统一观测接口。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.Observer = observer
		}
	}
}

// WithMessageLog 注入处理成功消息的记录，nil 时由 Service 自行创建。
func WithMessageLog(log *xmsglog.Log) Option {
	return func(o *options) {
		if log != nil {
			o.Log = log
		}
	}
}

// WithProcessor 设置初始处理函数，默认接受所有消息。
func WithProcessor(fn Processor) Option {
	return func(o *options) {
		if fn != nil {
			o.Processor = fn
		}
	}
}

// WithOnDeadLetter 设置死信监听器收到记录时的回调。
func WithOnDeadLetter(fn func(ctx context.Context, record DeadLetterRecord)) Option {
	return func(o *options) {
		o.OnDeadLetter = fn
	}
}

// WithProducerFactory 替换生产者工厂。
func WithProducerFactory(f ProducerFactory) Option {
	return func(o *options) {
		if f != nil {
			o.NewProducer = f
		}
	}
}

// WithConsumerFactory 替换消费者工厂。
func WithConsumerFactory(f ConsumerFactory) Option {
	return func(o *options) {
		if f != nil {
			o.NewConsumer = f
		}
	}
}

// WithAdminFactory 替换管理客户端工厂。
func WithAdminFactory(f AdminFactory) Option {
	return func(o *options) {
		if f != nil {
			o.NewAdmin = f
		}
	}
}

// WithPublishRetryer 设置路由器发布时的传输层重试器。
func WithPublishRetryer(r *xretry.Retryer) Option {
	return func(o *options) {
		if r != nil {
			o.PublishRetryer = r
		}
	}
}

// WithPublishBreaker 设置路由器发布时的熔断器。
func WithPublishBreaker(b *xbreaker.Breaker) Option {
	return func(o *options) {
		if b != nil {
			o.PublishBreaker = b
		}
	}
}

// WithLoopBackoff 设置消费循环连续出错时的退避，默认 mqcore.DefaultBackoff。
func WithLoopBackoff(b xretry.BackoffPolicy) Option {
	return func(o *options) {
		if b != nil {
			o.LoopBackoff = b
		}
	}
}

// withClock 替换时钟，仅测试使用。
func withClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.Now = now
		}
	}
}
