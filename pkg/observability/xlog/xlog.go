package xlog

import (
	"context"
	"log/slog"
)

// Logger 日志接口
//
// 所有方法都要求 context.Context，EnrichHandler 依赖它注入 trace_id/span_id。
// 只接受 slog.Attr，避免隐式 key-value 转换。
type Logger interface {
	Debug(ctx context.Context, msg string, attrs ...slog.Attr)
	Info(ctx context.Context, msg string, attrs ...slog.Attr)
	Warn(ctx context.Context, msg string, attrs ...slog.Attr)
	Error(ctx context.Context, msg string, attrs ...slog.Attr)

	// Stack 记录附带当前 goroutine 调用栈的错误日志
	Stack(ctx context.Context, msg string, attrs ...slog.Attr)

	// With 返回带额外属性的派生 Logger，派生 Logger 与父级共享级别
	With(attrs ...slog.Attr) Logger

	// WithGroup 返回带分组的派生 Logger
	WithGroup(name string) Logger
}

// Leveler 级别控制接口，与 Logger 分离以保持日志接口最小。
type Leveler interface {
	SetLevel(level Level)
	GetLevel() Level
	Enabled(ctx context.Context, level Level) bool
}

// LoggerWithLevel Build 的返回类型。
type LoggerWithLevel interface {
	Logger
	Leveler
}
