package xrun

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSignal 因收到系统信号而终止，配合 errors.Is 使用
	ErrSignal = errors.New("received signal")

	// ErrNilFunc 服务函数为 nil
	ErrNilFunc = errors.New("xrun: nil service func")

	// ErrNilService Service 为 nil
	ErrNilService = errors.New("xrun: nil service")

	// ErrNilServer HTTPServer 的 server 为 nil
	ErrNilServer = errors.New("xrun: nil http server")

	// ErrInvalidInterval Ticker 的间隔必须为正数
	ErrInvalidInterval = errors.New("xrun: interval must be positive")
)

// SignalError 记录触发退出的信号，errors.Is(err, ErrSignal) 为 true。
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	if e.Signal == nil {
		return "received signal <nil>"
	}
	return fmt.Sprintf("received signal %s", e.Signal)
}

// Unwrap 返回 ErrSignal
func (e *SignalError) Unwrap() error {
	return ErrSignal
}
