package xretry

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// BackoffKind 退避策略类型，用于配置驱动的策略构建。
type BackoffKind string

const (
	// BackoffFixed 固定延迟
	BackoffFixed BackoffKind = "fixed"
	// BackoffExponential 指数退避
	BackoffExponential BackoffKind = "exponential"
)

// ParseBackoffKind 解析退避策略类型（大小写不敏感）。
// 空字符串视为 exponential。
func ParseBackoffKind(s string) (BackoffKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(BackoffExponential):
		return BackoffExponential, nil
	case string(BackoffFixed):
		return BackoffFixed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackoff, s)
	}
}

// NewBackoff 根据配置构建退避策略。
//
// fixed 只使用 base；exponential 使用 base/multiplier/maxDelay，抖动为 0，
// 保证同样的输入总是得到同样的延迟。
func NewBackoff(kind BackoffKind, base time.Duration, multiplier float64, maxDelay time.Duration) (BackoffPolicy, error) {
	switch kind {
	case BackoffFixed:
		return NewFixedBackoff(base), nil
	case BackoffExponential, "":
		return NewExponentialBackoff(
			WithInitialDelay(base),
			WithMultiplier(multiplier),
			WithMaxDelay(maxDelay),
			WithJitter(0),
		), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackoff, kind)
	}
}

// Delay 计算第 attempt 次失败之后的等待时间，attempt 从 0 开始。
//
// 与 BackoffPolicy.NextDelay 的关系：Delay(p, i) == p.NextDelay(i+1)。
// nil 策略或负数 attempt 返回 0 / 首次延迟。
func Delay(policy BackoffPolicy, attempt int) time.Duration {
	if policy == nil {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	d := policy.NextDelay(attempt + 1)
	if d < 0 {
		return 0
	}
	return d
}

// FixedBackoff 固定延迟退避策略
type FixedBackoff struct {
	delay time.Duration
}

// NewFixedBackoff 创建固定延迟退避策略
func NewFixedBackoff(delay time.Duration) *FixedBackoff {
	if delay < 0 {
		delay = 0
	}
	return &FixedBackoff{delay: delay}
}

func (b *FixedBackoff) NextDelay(_ int) time.Duration {
	return b.delay
}

// ExponentialBackoff 指数退避策略
// delay = min(initialDelay * multiplier^(attempt-1) * (1 + rand(-1,1) * jitter), maxDelay)
type ExponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       float64
}

// ExponentialBackoffOption 指数退避配置选项
type ExponentialBackoffOption func(*ExponentialBackoff)

// WithInitialDelay 设置初始延迟，d <= 0 时保持默认值。
func WithInitialDelay(d time.Duration) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.initialDelay = d
		}
	}
}

// WithMaxDelay 设置最大延迟
func WithMaxDelay(d time.Duration) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.maxDelay = d
		}
	}
}

// WithMultiplier 设置乘数因子（>= 1.0）。
// 1.0 等价于固定延迟，小于 1.0 的值被忽略。
func WithMultiplier(m float64) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if m >= 1 {
			b.multiplier = m
		}
	}
}

// WithJitter 设置抖动因子，超出 [0,1] 的值被截断。
func WithJitter(j float64) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if j < 0 {
			j = 0
		} else if j > 1 {
			j = 1
		}
		b.jitter = j
	}
}

// NewExponentialBackoff 创建指数退避策略
// 默认值：
//   - initialDelay: 1s
//   - maxDelay: 5s
//   - multiplier: 2.0
//   - jitter: 0
//
// 默认值与生产者重试配置一致（1s 起步，翻倍，5s 封顶）。
// maxDelay 小于 initialDelay 时按上限截断，每次延迟都等于 maxDelay。
func NewExponentialBackoff(opts ...ExponentialBackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initialDelay: time.Second,
		maxDelay:     5 * time.Second,
		multiplier:   2.0,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt-1))

	if b.jitter > 0 {
		jitterFactor := 1.0 + (randomFloat64()*2-1)*b.jitter
		delay *= jitterFactor
	}

	// 设计决策: attempt 极大时 math.Pow 溢出为 +Inf，与 jitterFactor=0 相乘得到 NaN，
	// NaN 的所有比较都为 false 会绕过上限，因此 NaN/负数统一返回 maxDelay。
	if math.IsNaN(delay) || delay < 0 {
		return b.maxDelay
	}
	if delay >= float64(b.maxDelay) {
		return b.maxDelay
	}

	return time.Duration(delay)
}

// InitialDelay 返回初始延迟
func (b *ExponentialBackoff) InitialDelay() time.Duration { return b.initialDelay }

// MaxDelay 返回延迟上限
func (b *ExponentialBackoff) MaxDelay() time.Duration { return b.maxDelay }

// NoBackoff 无延迟退避策略
type NoBackoff struct{}

// NewNoBackoff 创建无延迟退避策略
func NewNoBackoff() *NoBackoff {
	return &NoBackoff{}
}

func (b *NoBackoff) NextDelay(_ int) time.Duration {
	return 0
}

// 确保实现了接口
var (
	_ BackoffPolicy = (*FixedBackoff)(nil)
	_ BackoffPolicy = (*ExponentialBackoff)(nil)
	_ BackoffPolicy = (*NoBackoff)(nil)
)

const (
	floatBits  = 53
	floatScale = 1.0 / (1 << floatBits)
)

func randomFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand 失败时返回 0，即无抖动
		return 0
	}
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) * floatScale
}
