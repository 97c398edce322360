package xretry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedBackoff(t *testing.T) {
	b := NewFixedBackoff(500 * time.Millisecond)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 500*time.Millisecond, Delay(b, i))
	}

	assert.Equal(t, time.Duration(0), NewFixedBackoff(-time.Second).NextDelay(1))
}

func TestExponentialBackoff(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		b := NewExponentialBackoff()
		// 1s, 2s, 4s, 然后封顶 5s
		assert.Equal(t, time.Second, Delay(b, 0))
		assert.Equal(t, 2*time.Second, Delay(b, 1))
		assert.Equal(t, 4*time.Second, Delay(b, 2))
		assert.Equal(t, 5*time.Second, Delay(b, 3))
		assert.Equal(t, 5*time.Second, Delay(b, 30))
	})

	t.Run("Deterministic", func(t *testing.T) {
		b := NewExponentialBackoff(WithInitialDelay(100*time.Millisecond), WithMaxDelay(time.Minute))
		for i := 0; i < 8; i++ {
			assert.Equal(t, Delay(b, i), Delay(b, i))
		}
	})

	t.Run("MonotonicAndCapped", func(t *testing.T) {
		b := NewExponentialBackoff(
			WithInitialDelay(10*time.Millisecond),
			WithMultiplier(3),
			WithMaxDelay(2*time.Second),
		)
		prev := time.Duration(0)
		for i := 0; i < 64; i++ {
			d := Delay(b, i)
			assert.GreaterOrEqual(t, d, prev)
			assert.LessOrEqual(t, d, 2*time.Second)
			prev = d
		}
	})

	t.Run("HugeAttemptDoesNotOverflow", func(t *testing.T) {
		b := NewExponentialBackoff(WithJitter(1))
		assert.Equal(t, b.MaxDelay(), b.NextDelay(math.MaxInt32))
	})

	t.Run("MaxBelowInitialCaps", func(t *testing.T) {
		b := NewExponentialBackoff(WithInitialDelay(2*time.Second), WithMaxDelay(time.Second))
		assert.Equal(t, time.Second, b.MaxDelay())
		for i := 0; i < 3; i++ {
			assert.Equal(t, time.Second, Delay(b, i))
		}
	})

	t.Run("JitterStaysInRange", func(t *testing.T) {
		b := NewExponentialBackoff(WithInitialDelay(time.Second), WithMaxDelay(time.Minute), WithJitter(0.2))
		for i := 0; i < 50; i++ {
			d := b.NextDelay(1)
			assert.GreaterOrEqual(t, d, 800*time.Millisecond)
			assert.LessOrEqual(t, d, 1200*time.Millisecond)
		}
	})

	t.Run("InvalidOptionsIgnored", func(t *testing.T) {
		b := NewExponentialBackoff(WithInitialDelay(-1), WithMaxDelay(0), WithMultiplier(0.5))
		assert.Equal(t, time.Second, b.InitialDelay())
		assert.Equal(t, 2*time.Second, Delay(b, 1))
	})
}

func TestDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), Delay(nil, 3))
	assert.Equal(t, time.Duration(0), Delay(NewNoBackoff(), 3))

	b := NewExponentialBackoff()
	assert.Equal(t, Delay(b, 0), Delay(b, -5))
	for i := 0; i < 5; i++ {
		assert.Equal(t, b.NextDelay(i+1), Delay(b, i))
	}
}

func TestParseBackoffKind(t *testing.T) {
	tests := []struct {
		in   string
		want BackoffKind
		err  bool
	}{
		{"", BackoffExponential, false},
		{"exponential", BackoffExponential, false},
		{" Fixed ", BackoffFixed, false},
		{"EXPONENTIAL", BackoffExponential, false},
		{"linear", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackoffKind(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnknownBackoff)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewBackoff(t *testing.T) {
	fixed, err := NewBackoff(BackoffFixed, 2*time.Second, 5, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, Delay(fixed, 4))

	exp, err := NewBackoff(BackoffExponential, time.Second, 2, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second},
		[]time.Duration{Delay(exp, 0), Delay(exp, 1), Delay(exp, 2), Delay(exp, 3)})

	capped, err := NewBackoff(BackoffExponential, 2*time.Second, 2, time.Second)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, time.Second, Delay(capped, i))
	}

	_, err = NewBackoff("linear", time.Second, 2, time.Second)
	assert.ErrorIs(t, err, ErrUnknownBackoff)
}
