package xlog

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// ErrNilHandler NewEnrichHandler 的 base 为 nil
var ErrNilHandler = errors.New("xlog: base handler is nil")

// 注入字段名
const (
	KeyTraceID    = "trace_id"
	KeySpanID     = "span_id"
	KeyTraceFlags = "trace_flags"
)

// EnrichHandler 从 context 中的 OpenTelemetry span 上下文提取 trace_id/span_id 注入日志。
//
// ctx 中没有有效 span 时不注入任何字段。
//
// 设计决策: 调用 WithGroup 后注入字段会落在 group 下，这是 slog handler 链的固有行为。
type EnrichHandler struct {
	base slog.Handler
}

var _ slog.Handler = (*EnrichHandler)(nil)

// NewEnrichHandler 创建 EnrichHandler
func NewEnrichHandler(base slog.Handler) (*EnrichHandler, error) {
	if base == nil {
		return nil, ErrNilHandler
	}
	return &EnrichHandler{base: base}, nil
}

// Enabled 委托给底层 handler
func (h *EnrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle 注入追踪字段后交给底层 handler。按 slog 契约先 Clone 再修改 record。
func (h *EnrichHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			r = r.Clone()
			r.AddAttrs(
				slog.String(KeyTraceID, sc.TraceID().String()),
				slog.String(KeySpanID, sc.SpanID().String()),
				slog.String(KeyTraceFlags, sc.TraceFlags().String()),
			)
		}
	}
	return h.base.Handle(ctx, r)
}

// WithAttrs 返回带额外属性的新 handler
func (h *EnrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EnrichHandler{base: h.base.WithAttrs(attrs)}
}

// WithGroup 返回带分组的新 handler
func (h *EnrichHandler) WithGroup(name string) slog.Handler {
	return &EnrichHandler{base: h.base.WithGroup(name)}
}
