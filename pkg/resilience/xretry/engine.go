package xretry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State 重试状态机的状态
type State int

const (
	// StateAttempting 正在进行第 n 次尝试
	StateAttempting State = iota
	// StateSucceeded 某次尝试成功（终态）
	StateSucceeded
	// StateExhausted 达到最大尝试次数仍失败（终态）
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Machine 显式的重试状态机：
//
//	Attempting(n) --ok--> Succeeded
//	Attempting(n) --err, n<max--> Attempting(n+1)（先等待 Delay(policy, n-1)）
//	Attempting(n) --err, n==max--> Exhausted
//
// Machine 不做任何等待，只给出下一步的延迟；不是并发安全的，
// 每次执行独占一个实例。
type Machine struct {
	maxAttempts int
	policy      BackoffPolicy
	attempt     int
	state       State
	lastErr     error
}

// NewMachine 创建状态机，初始状态为 Attempting(1)。
// maxAttempts < 1 返回 ErrInvalidAttempts；policy 为 nil 时不等待。
func NewMachine(maxAttempts int, policy BackoffPolicy) (*Machine, error) {
	if maxAttempts < 1 {
		return nil, ErrInvalidAttempts
	}
	if policy == nil {
		policy = NewNoBackoff()
	}
	return &Machine{
		maxAttempts: maxAttempts,
		policy:      policy,
		attempt:     1,
		state:       StateAttempting,
	}, nil
}

// Attempt 返回当前（或最后一次）尝试的序号，从 1 开始
func (m *Machine) Attempt() int { return m.attempt }

// MaxAttempts 返回最大尝试次数
func (m *Machine) MaxAttempts() int { return m.maxAttempts }

// State 返回当前状态
func (m *Machine) State() State { return m.state }

// LastErr 返回最后一次失败的错误
func (m *Machine) LastErr() error { return m.lastErr }

// Record 记录当前尝试的结果，返回迁移后的状态，
// 以及状态仍为 Attempting 时进入下一次尝试前应等待的时长。
// 终态下调用 Record 不改变状态。
func (m *Machine) Record(err error) (State, time.Duration) {
	if m.state != StateAttempting {
		return m.state, 0
	}
	if err == nil {
		m.state = StateSucceeded
		return m.state, 0
	}
	m.lastErr = err
	if m.attempt >= m.maxAttempts {
		m.state = StateExhausted
		return m.state, 0
	}
	delay := Delay(m.policy, m.attempt-1)
	m.attempt++
	return m.state, delay
}

// AttemptHook 每次尝试结束后被调用。
// next 为进入下一次尝试前的等待时长，终态时为 0。
type AttemptHook func(attempt int, err error, state State, next time.Duration)

type executeOptions struct {
	onAttempt AttemptHook
}

// ExecuteOption Execute 配置选项
type ExecuteOption func(*executeOptions)

// WithOnAttempt 设置每次尝试后的回调，nil 被忽略。
func WithOnAttempt(fn AttemptHook) ExecuteOption {
	return func(o *executeOptions) {
		if fn != nil {
			o.onAttempt = fn
		}
	}
}

// Execute 以最多 maxAttempts 次尝试执行 op，尝试之间按 policy 等待。
//
// 语义：
//   - 任一次成功立即返回 nil
//   - 耗尽时调用 recovery 恰好一次，返回其结果；recovery 为 nil 时返回
//     包装了最后一次错误的 ErrExhausted
//   - 等待只阻塞调用方 goroutine，ctx 取消时立即返回 ctx 错误与最后一次错误，
//     不调用 recovery
func Execute(ctx context.Context, op Operation, recovery Recovery, maxAttempts int, policy BackoffPolicy, opts ...ExecuteOption) error {
	if ctx == nil {
		return ErrNilContext
	}
	if op == nil {
		return ErrNilFunc
	}
	m, err := NewMachine(maxAttempts, policy)
	if err != nil {
		return err
	}
	o := &executeOptions{}
	for _, opt := range opts {
		opt(o)
	}

	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, m.LastErr())
		}

		attempt := m.Attempt()
		opErr := op(ctx)
		state, delay := m.Record(opErr)
		if o.onAttempt != nil {
			o.onAttempt(attempt, opErr, state, delay)
		}

		switch state {
		case StateSucceeded:
			return nil
		case StateExhausted:
			if recovery == nil {
				return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, m.MaxAttempts(), m.LastErr())
			}
			return recovery(ctx, m.LastErr())
		}

		if err := Sleep(ctx, delay); err != nil {
			return errors.Join(err, m.LastErr())
		}
	}
}

// Sleep 等待 d 或直到 ctx 取消，d <= 0 立即返回。
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
