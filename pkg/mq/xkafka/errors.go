package xkafka

import (
	"errors"
	"fmt"

	"github.com/omeyang/xrelay/internal/mqcore"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// 从 mqcore 重导出的公共错误。
var (
	// ErrClosed 组件已关闭。
	ErrClosed = mqcore.ErrClosed
	// ErrNilMessage 消息为 nil。
	ErrNilMessage = mqcore.ErrNilMessage
	// ErrNilHandler 处理函数为 nil。
	ErrNilHandler = mqcore.ErrNilHandler
	// ErrNilClient 底层客户端为 nil。
	ErrNilClient = mqcore.ErrNilClient
)

var (
	// ErrNilConfig 配置为 nil。
	ErrNilConfig = errors.New("xkafka: nil config")
	// ErrEmptyTopic 主题名为空。
	ErrEmptyTopic = errors.New("xkafka: empty topic")
	// ErrInvalidPayload 消息体不是合法的 UTF-8。
	ErrInvalidPayload = errors.New("xkafka: payload is not valid UTF-8")
	// ErrDeliveryTimeout 等待 broker 确认超时。
	ErrDeliveryTimeout = errors.New("xkafka: delivery report timeout")
	// ErrFlushTimeout 关闭时刷新超时，队列中仍有未发送消息。
	ErrFlushTimeout = errors.New("xkafka: flush timeout")
	// ErrNilProcessor 注册的处理函数为 nil。
	ErrNilProcessor = errors.New("xkafka: nil processor")
	// ErrNilRouter 监听器缺少路由器。
	ErrNilRouter = errors.New("xkafka: nil router")
	// ErrRejected 处理函数拒绝了消息。
	ErrRejected = errors.New("xkafka: payload rejected")
	// ErrProcessorPanic 处理函数发生 panic。
	ErrProcessorPanic = errors.New("xkafka: processor panicked")
	// ErrUnexpectedEvent 投递通道收到非消息事件。
	ErrUnexpectedEvent = errors.New("xkafka: unexpected delivery event")
)

// BrokerError 与 broker 交互失败（入队、投递确认、轮询）。
// 实现 xretry.RetryableError：librdkafka 报告为 fatal 的错误不可重试，其余均可重试。
type BrokerError struct {
	Op    string
	Topic string
	Err   error
}

func (e *BrokerError) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("xkafka: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("xkafka: %s %s: %v", e.Op, e.Topic, e.Err)
}

func (e *BrokerError) Unwrap() error { return e.Err }

// Retryable 实现 xretry.RetryableError。
func (e *BrokerError) Retryable() bool {
	var kerr kafka.Error
	if errors.As(e.Err, &kerr) {
		return !kerr.IsFatal()
	}
	return true
}

// ProcessingError 处理函数拒绝消息。只会驱动重试主题升级，不会在原地重试。
type ProcessingError struct {
	Payload string
	Err     error
}

func (e *ProcessingError) Error() string {
	return "xkafka: processing failed: " + errorString(e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Retryable 返回 false，同一次投递内不重试。
func (e *ProcessingError) Retryable() bool { return false }

// SessionError 消费会话创建、订阅、轮询或提交失败。
type SessionError struct {
	Group string
	Topic string
	Err   error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("xkafka: session group=%s topic=%s: %v", e.Group, e.Topic, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// errorString 安全地获取错误字符串，nil 返回空字符串。
func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
