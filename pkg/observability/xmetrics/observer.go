package xmetrics

import (
	"context"
	"strconv"
)

// Kind 表示观测跨度类型。
type Kind int

const (
	// KindInternal 内部操作。
	KindInternal Kind = iota
	// KindClient 客户端调用（如 broker 元数据、管理接口）。
	KindClient
	// KindProducer 消息生产。
	KindProducer
	// KindConsumer 消息消费。
	KindConsumer
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "Internal"
	case KindClient:
		return "Client"
	case KindProducer:
		return "Producer"
	case KindConsumer:
		return "Consumer"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Status 表示观测结果状态。
type Status string

const (
	// StatusOK 成功。
	StatusOK Status = "ok"
	// StatusError 失败。
	StatusError Status = "error"
)

// Attr 观测属性。
type Attr struct {
	Key   string
	Value any
}

// SpanOptions 观测跨度的创建参数。
type SpanOptions struct {
	Component string
	Operation string
	Kind      Kind
	Attrs     []Attr
}

// Result 观测跨度结束时的结果。Status 为空时根据 Err 推导。
type Result struct {
	Status Status
	Err    error
	Attrs  []Attr
}

// Span 一次观测跨度。
type Span interface {
	End(result Result)
}

// Observer 统一观测接口。
type Observer interface {
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 是空实现。
type NoopObserver struct{}

// Start 返回 ctx 和空跨度，nil ctx 替换为 context.Background()。
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 是空跨度。
type NoopSpan struct{}

// End 不做任何处理。
func (NoopSpan) End(_ Result) {}

// Start 使用 observer 开始观测。
// 保证返回非 nil 的 ctx 和 Span：nil ctx 替换为 Background，
// nil observer 或 observer 返回 nil Span 时兜底为 NoopSpan。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Start(ctx, opts)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}

// Multi 把同一次观测分发给多个 Observer，nil 项被跳过。
// ctx 沿 observers 顺序传递，后者可看到前者写入的追踪信息。
func Multi(observers ...Observer) Observer {
	filtered := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopObserver{}
	case 1:
		return filtered[0]
	default:
		return filtered
	}
}

type multiObserver []Observer

func (m multiObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	spans := make(multiSpan, 0, len(m))
	for _, o := range m {
		var span Span
		ctx, span = Start(ctx, o, opts)
		spans = append(spans, span)
	}
	return ctx, spans
}

type multiSpan []Span

func (m multiSpan) End(result Result) {
	// 逆序结束，与嵌套开始的顺序对称
	for i := len(m) - 1; i >= 0; i-- {
		m[i].End(result)
	}
}

func resolveStatus(result Result) Status {
	if result.Status != "" {
		return result.Status
	}
	if result.Err != nil {
		return StatusError
	}
	return StatusOK
}

const (
	unknownComponent = "unknown"
	unknownOperation = "unknown"
)

func normalizeNames(opts SpanOptions) (component, operation string) {
	component, operation = opts.Component, opts.Operation
	if component == "" {
		component = unknownComponent
	}
	if operation == "" {
		operation = unknownOperation
	}
	return component, operation
}
