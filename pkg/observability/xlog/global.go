package xlog

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// =============================================================================
// 全局 Logger
//
// 面向 CLI 与脚手架场景；服务组件通过选项显式注入 Logger。
// =============================================================================

var (
	globalLogger atomic.Pointer[LoggerWithLevel]
	globalMu     sync.Mutex
)

// Default 返回全局 Logger，首次调用时惰性创建（stderr、Info、text）。
func Default() LoggerWithLevel {
	if l := globalLogger.Load(); l != nil {
		return *l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	logger, _, err := New().Build()
	if err != nil {
		// 默认参数不会失败；兜底为最小可用 logger，避免库代码 panic
		logger = &xlogger{
			handler:        slog.NewTextHandler(os.Stderr, nil),
			levelVar:       new(slog.LevelVar),
			errorCount:     new(atomic.Uint64),
			inErrorHandler: new(atomic.Bool),
		}
	}
	globalLogger.Store(&logger)
	return logger
}

// SetDefault 替换全局 Logger，nil 被忽略。
func SetDefault(l LoggerWithLevel) {
	if l == nil {
		return
	}
	globalLogger.Store(&l)
}

// ResetDefault 重置为未初始化状态，供测试使用。
func ResetDefault() {
	globalMu.Lock()
	globalLogger.Store(nil)
	globalMu.Unlock()
}

func globalLog(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	l := Default()
	if xl, ok := l.(*xlogger); ok {
		xl.logWithSkip(ctx, level, msg, attrs, 1)
		return
	}
	switch level {
	case slog.LevelDebug:
		l.Debug(ctx, msg, attrs...)
	case slog.LevelInfo:
		l.Info(ctx, msg, attrs...)
	case slog.LevelWarn:
		l.Warn(ctx, msg, attrs...)
	default:
		l.Error(ctx, msg, attrs...)
	}
}

// Debug 使用全局 Logger 记录 Debug 日志
func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelDebug, msg, attrs)
}

// Info 使用全局 Logger 记录 Info 日志
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelInfo, msg, attrs)
}

// Warn 使用全局 Logger 记录 Warn 日志
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelWarn, msg, attrs)
}

// Error 使用全局 Logger 记录 Error 日志
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelError, msg, attrs)
}

// Stack 使用全局 Logger 记录带调用栈的错误日志
func Stack(ctx context.Context, msg string, attrs ...slog.Attr) {
	l := Default()
	if xl, ok := l.(*xlogger); ok {
		xl.stackWithSkip(ctx, msg, attrs, 0)
		return
	}
	l.Stack(ctx, msg, attrs...)
}
