package mqcore

import "context"

// Tracer 在消息头中传播追踪上下文。
// 实现者应使用 W3C Trace Context 标准键名（traceparent / tracestate）。
type Tracer interface {
	// Inject 将 ctx 中的追踪信息写入 headers。
	Inject(ctx context.Context, headers map[string]string)

	// Extract 从 headers 中读取追踪信息，返回携带远端 SpanContext 的 Context。
	Extract(headers map[string]string) context.Context
}

// NoopTracer 不传播任何追踪信息。
type NoopTracer struct{}

// Inject 不做任何操作。
func (NoopTracer) Inject(_ context.Context, _ map[string]string) {}

// Extract 返回 context.Background()。
func (NoopTracer) Extract(_ map[string]string) context.Context {
	return context.Background()
}

var _ Tracer = NoopTracer{}
