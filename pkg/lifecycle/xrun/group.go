package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xrelay/pkg/observability/xlog"
)

// Group 基于 errgroup 管理多个服务的并发运行与协调关闭。
//
// 任一服务返回错误或 Cancel 被调用时，所有服务的 ctx 都会被取消。
// Go 与 Cancel 可并发调用，Wait 只应调用一次。
//
//	g, ctx := xrun.NewGroup(ctx, xrun.WithName("relay"))
//	g.Go("listener", listener.Run)
//	g.Go("metrics", xrun.HTTPServer(srv, 5*time.Second))
//	err := g.Wait()
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *groupOptions
}

// NewGroup 创建 Group，返回的 ctx 在任一服务失败时被取消。nil ctx 视为 Background。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)
	return &Group{eg: eg, ctx: egCtx, causeCtx: causeCtx, cancel: cancel, opts: options}, egCtx
}

// Go 以 name 启动一个服务，并记录其启停。
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		attrs := []slog.Attr{slog.String("group", g.opts.name), slog.String("service", name)}
		g.opts.logger.Debug(g.ctx, "service starting", attrs...)

		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.opts.logger.Warn(g.ctx, "service exited with error", append(attrs, xlog.Err(err))...)
		} else {
			g.opts.logger.Debug(g.ctx, "service stopped", attrs...)
		}
		return err
	})
}

// Add 注册 Service，nil 会让 Group 以 ErrNilService 失败。
func (g *Group) Add(name string, svc Service) {
	if svc == nil {
		g.Go(name, func(context.Context) error { return ErrNilService })
		return
	}
	g.Go(name, svc.Run)
}

// Wait 等待所有服务退出。
//
// 服务以 context.Canceled 退出时：若 Group 带显式原因被取消（如 SignalError）返回该原因，
// 否则返回 nil。其余错误原样返回。
func (g *Group) Wait() error {
	defer g.cancel(nil)

	err := g.eg.Wait()
	cause := context.Cause(g.causeCtx)
	explicit := g.causeCtx.Err() != nil && cause != nil && !errors.Is(cause, context.Canceled)

	switch {
	case errors.Is(err, context.Canceled) && g.causeCtx.Err() != nil:
		if explicit {
			return cause
		}
		return nil
	case err == nil && explicit:
		return cause
	default:
		return err
	}
}

// Cancel 以 cause 为原因取消所有服务。cause 不应包装 context.Canceled，否则 Wait 会将其过滤。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context 返回 Group 的 ctx。
func (g *Group) Context() context.Context {
	return g.ctx
}

// Service 可被 Group 管理的服务，Run 阻塞到 ctx 取消或出错。
type Service interface {
	Run(ctx context.Context) error
}

// ServiceFunc 将函数适配为 Service。
type ServiceFunc func(ctx context.Context) error

// Run 实现 Service。
func (f ServiceFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Run 监听退出信号并运行 setup 注册的服务，收到信号时返回 *SignalError。
//
//	err := xrun.Run(ctx, func(g *xrun.Group) {
//	    g.Add("relay", svc)
//	}, xrun.WithLogger(logger))
//	if errors.Is(err, xrun.ErrSignal) {
//	    err = nil
//	}
func Run(ctx context.Context, setup func(g *Group), opts ...Option) error {
	g, _ := NewGroup(ctx, opts...)

	if !g.opts.noSignalHandler {
		signals := g.opts.signals
		if len(signals) == 0 {
			signals = DefaultSignals()
		}
		g.Go("signal", func(ctx context.Context) error {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, signals...)
			defer signal.Stop(sigCh)

			var sig os.Signal
			select {
			case sig = <-g.opts.testSignals:
			case sig = <-sigCh:
			case <-ctx.Done():
				return ctx.Err()
			}
			g.opts.logger.Info(ctx, "received signal",
				slog.String("group", g.opts.name), slog.String("signal", sig.String()))
			g.cancel(&SignalError{Signal: sig})
			return nil
		})
	}

	if setup != nil {
		setup(g)
	}
	return g.Wait()
}
