package mqcore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/omeyang/xrelay/pkg/resilience/xretry"

	"github.com/stretchr/testify/assert"
)

func TestRunConsumeLoop_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var calls atomic.Int32
	err := RunConsumeLoop(ctx, func(context.Context) error {
		calls.Add(1)
		time.Sleep(time.Millisecond)
		return nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Positive(t, calls.Load())
}

func TestRunConsumeLoop_BacksOffOnError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var calls atomic.Int32
	var attempts []int
	boom := errors.New("boom")

	err := RunConsumeLoop(ctx,
		func(context.Context) error {
			calls.Add(1)
			return boom
		},
		WithBackoff(xretry.NewFixedBackoff(50*time.Millisecond)),
		WithOnError(func(err error, attempt int) {
			assert.ErrorIs(t, err, boom)
			attempts = append(attempts, attempt)
		}),
	)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// 300ms / 50ms，约 6 次
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
	assert.LessOrEqual(t, calls.Load(), int32(10))
	for i, a := range attempts {
		assert.Equal(t, i+1, a)
	}
}

func TestRunConsumeLoop_ResetsAfterSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	var attempts []int
	err := RunConsumeLoop(ctx,
		func(context.Context) error {
			n := calls.Add(1)
			switch n {
			case 1, 2, 4:
				return errors.New("fail")
			case 5:
				cancel()
			}
			return nil
		},
		WithBackoff(xretry.NewNoBackoff()),
		WithOnError(func(_ error, attempt int) { attempts = append(attempts, attempt) }),
	)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1, 2, 1}, attempts)
}

func TestRunConsumeLoop_NilConsume(t *testing.T) {
	assert.ErrorIs(t, RunConsumeLoop(context.Background(), nil), ErrNilHandler)
}

func TestWithBackoff_NilIgnored(t *testing.T) {
	o := &consumeLoopOptions{backoff: DefaultBackoff()}
	WithBackoff(nil)(o)
	assert.NotNil(t, o.backoff)
}
