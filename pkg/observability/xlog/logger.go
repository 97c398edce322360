package xlog

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

var (
	_ Logger          = (*xlogger)(nil)
	_ LoggerWithLevel = (*xlogger)(nil)
)

// maxStackSize Stack 捕获调用栈的上限（64KB）
const maxStackSize = 64 * 1024

// xlogger Logger 的实现，派生实例共享 levelVar、errorCount 与 inErrorHandler。
type xlogger struct {
	handler        slog.Handler
	levelVar       *slog.LevelVar
	onError        func(error)
	errorCount     *atomic.Uint64
	addSource      bool
	inErrorHandler *atomic.Bool
}

// logWithSkip 写一条记录。extraSkip 为调用方与业务代码之间的额外栈帧数。
//
//go:noinline
func (l *xlogger) logWithSkip(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr, extraSkip int) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, l.callerPC(extraSkip))
	r.AddAttrs(attrs...)
	if err := l.handler.Handle(ctx, r); err != nil {
		l.handleError(err)
	}
}

// callerPC 仅在 AddSource 时捕获调用者，runtime.Callers 的开销在热路径上不可忽略。
func (l *xlogger) callerPC(extraSkip int) uintptr {
	if !l.addSource {
		return 0
	}
	var pcs [1]uintptr
	// Callers → callerPC → logWithSkip/stackWithSkip → 入口方法 → 业务代码
	runtime.Callers(4+extraSkip, pcs[:])
	return pcs[0]
}

//go:noinline
func (l *xlogger) log(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	l.logWithSkip(ctx, level, msg, attrs, 1)
}

// handleError 计数并回调。回调 panic 被隔离，并发期间重入的错误只计数不回调。
func (l *xlogger) handleError(err error) {
	l.errorCount.Add(1)
	if l.onError == nil || !l.inErrorHandler.CompareAndSwap(false, true) {
		return
	}
	defer l.inErrorHandler.Store(false)
	defer func() {
		if r := recover(); r != nil {
			l.errorCount.Add(1)
		}
	}()
	l.onError(err)
}

func (l *xlogger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelDebug, msg, attrs)
}

func (l *xlogger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelInfo, msg, attrs)
}

func (l *xlogger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelWarn, msg, attrs)
}

func (l *xlogger) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelError, msg, attrs)
}

//go:noinline
func (l *xlogger) Stack(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.stackWithSkip(ctx, msg, attrs, 0)
}

//go:noinline
func (l *xlogger) stackWithSkip(ctx context.Context, msg string, attrs []slog.Attr, extraSkip int) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, slog.LevelError) {
		return
	}

	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	for n == len(buf) && len(buf) < maxStackSize {
		buf = make([]byte, min(len(buf)*2, maxStackSize))
		n = runtime.Stack(buf, false)
	}

	r := slog.NewRecord(time.Now(), slog.LevelError, msg, l.callerPC(extraSkip))
	r.AddAttrs(attrs...)
	r.AddAttrs(slog.String(KeyStack, string(buf[:n])))
	if err := l.handler.Handle(ctx, r); err != nil {
		l.handleError(err)
	}
}

func (l *xlogger) derive(h slog.Handler) *xlogger {
	return &xlogger{
		handler:        h,
		levelVar:       l.levelVar,
		onError:        l.onError,
		errorCount:     l.errorCount,
		addSource:      l.addSource,
		inErrorHandler: l.inErrorHandler,
	}
}

func (l *xlogger) With(attrs ...slog.Attr) Logger {
	if len(attrs) == 0 {
		return l
	}
	return l.derive(l.handler.WithAttrs(attrs))
}

func (l *xlogger) WithGroup(name string) Logger {
	if name == "" {
		return l
	}
	return l.derive(l.handler.WithGroup(name))
}

func (l *xlogger) SetLevel(level Level) {
	l.levelVar.Set(slog.Level(level))
}

func (l *xlogger) GetLevel() Level {
	return Level(l.levelVar.Level())
}

func (l *xlogger) Enabled(ctx context.Context, level Level) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	return l.handler.Enabled(ctx, slog.Level(level))
}
