package xrun

import (
	"os"
	"syscall"

	"github.com/omeyang/xrelay/pkg/observability/xlog"
)

// Option 配置 Group 的选项函数。
type Option func(*groupOptions)

type groupOptions struct {
	logger          xlog.Logger
	name            string
	signals         []os.Signal
	noSignalHandler bool

	// testSignals 测试注入的信号通道，避免向进程发送真实信号
	testSignals <-chan os.Signal
}

func defaultOptions() *groupOptions {
	return &groupOptions{
		logger: xlog.Default(),
		name:   "xrun",
	}
}

// DefaultSignals 返回默认监听的信号：SIGHUP、SIGINT、SIGTERM、SIGQUIT。
func DefaultSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}

// WithLogger 设置生命周期日志，nil 被忽略。
func WithLogger(logger xlog.Logger) Option {
	return func(o *groupOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置 Group 名称，空值被忽略。
func WithName(name string) Option {
	return func(o *groupOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// WithSignals 覆盖 Run 监听的信号列表，空列表等价于 DefaultSignals。
func WithSignals(signals []os.Signal) Option {
	copied := append([]os.Signal(nil), signals...)
	return func(o *groupOptions) {
		o.signals = copied
	}
}

// WithoutSignalHandler 禁用 Run 的信号监听。
func WithoutSignalHandler() Option {
	return func(o *groupOptions) {
		o.noSignalHandler = true
	}
}
