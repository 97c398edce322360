package xkafka

import (
	"strconv"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Kafka 消息 Header 键名常量。
const (
	// HeaderMessageID 发送端生成的消息 ID（UUID）。
	HeaderMessageID = "x-message-id"
	// HeaderRetryAttempt 当前投递序号，主主题首次投递为 1。
	HeaderRetryAttempt = "x-retry-attempt"
	// HeaderOriginalTopic 原始 Topic。
	HeaderOriginalTopic = "x-original-topic"
	// HeaderOriginalPartition 原始分区。
	HeaderOriginalPartition = "x-original-partition"
	// HeaderOriginalOffset 原始偏移量。
	HeaderOriginalOffset = "x-original-offset"
	// HeaderFirstFailTime 首次失败时间（RFC3339Nano）。
	HeaderFirstFailTime = "x-first-fail-time"
	// HeaderLastFailTime 最近失败时间（RFC3339Nano）。
	HeaderLastFailTime = "x-last-fail-time"
	// HeaderFailureReason 最近一次失败原因。
	HeaderFailureReason = "x-failure-reason"
)

// Message broker 记录的只读视图。
type Message struct {
	Topic     string
	Partition *int32
	Offset    int64
	Payload   string
	Timestamp time.Time
	Headers   map[string]string
}

// NewMessage 从 broker 记录构建 Message，nil 返回零值。
func NewMessage(m *kafka.Message) Message {
	if m == nil {
		return Message{}
	}
	partition := m.TopicPartition.Partition
	return Message{
		Topic:     topicOf(m),
		Partition: &partition,
		Offset:    int64(m.TopicPartition.Offset),
		Payload:   string(m.Value),
		Timestamp: m.Timestamp,
		Headers:   kafkaHeadersToMap(m.Headers),
	}
}

// RetryState 一条逻辑消息的重试进度，随消息 Header 在主题间传递。
type RetryState struct {
	// Attempt 当前投递序号，从 1 开始，单调不减。
	Attempt     int
	MaxAttempts int

	OriginalTopic     string
	OriginalPartition int32
	OriginalOffset    int64
	FirstFailure      time.Time
}

// RetryStateOf 从消息 Header 恢复重试进度。没有重试 Header 的消息处于第 1 次投递。
func RetryStateOf(msg *kafka.Message, maxAttempts int) RetryState {
	state := RetryState{
		Attempt:           1,
		MaxAttempts:       maxAttempts,
		OriginalTopic:     topicOf(msg),
		OriginalPartition: msg.TopicPartition.Partition,
		OriginalOffset:    int64(msg.TopicPartition.Offset),
	}
	if v := getHeader(msg, HeaderRetryAttempt); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			state.Attempt = n
		}
	}
	if v := getHeader(msg, HeaderOriginalTopic); v != "" {
		state.OriginalTopic = v
	}
	if v := getHeader(msg, HeaderOriginalPartition); v != "" {
		// ParseInt with bitSize 32 保证返回值在 int32 范围内
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			state.OriginalPartition = int32(n)
		}
	}
	if v := getHeader(msg, HeaderOriginalOffset); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			state.OriginalOffset = n
		}
	}
	state.FirstFailure = parseTime(getHeader(msg, HeaderFirstFailTime))
	return state
}

// Exhausted 当前投递已是最后一次。
func (s RetryState) Exhausted() bool {
	return s.Attempt >= s.MaxAttempts
}

// NextTopic 下一次投递的重试主题。第 n 次投递失败后进入 <原始主题>-retry-(n-1)。
func (s RetryState) NextTopic() string {
	return RetryTopic(s.OriginalTopic, s.Attempt-1)
}

// DeadLetterRecord 死信记录。消息体保持原始 payload，其余字段由 Header 携带。
type DeadLetterRecord struct {
	OriginalTopic string
	Partition     int32
	Offset        int64
	Payload       string
	Reason        string
	Attempts      int
	FirstFailure  time.Time
	LastFailure   time.Time
}

// DecodeDeadLetter 从死信主题上的消息还原 DeadLetterRecord。
func DecodeDeadLetter(msg *kafka.Message) DeadLetterRecord {
	state := RetryStateOf(msg, 0)
	return DeadLetterRecord{
		OriginalTopic: state.OriginalTopic,
		Partition:     state.OriginalPartition,
		Offset:        state.OriginalOffset,
		Payload:       string(msg.Value),
		Reason:        getHeader(msg, HeaderFailureReason),
		Attempts:      state.Attempt,
		FirstFailure:  state.FirstFailure,
		LastFailure:   parseTime(getHeader(msg, HeaderLastFailTime)),
	}
}

// buildRetryMessage 构建下一次投递的重试消息，Attempt 加一。
func buildRetryMessage(msg *kafka.Message, state RetryState, reason error, now time.Time) *kafka.Message {
	topic := state.NextTopic()
	out := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            msg.Key,
		Value:          msg.Value,
		Headers:        cloneHeaders(msg.Headers),
	}
	setFailureHeaders(out, state, reason, now)
	setHeader(out, HeaderRetryAttempt, strconv.Itoa(state.Attempt+1))
	return out
}

// buildDeadLetterMessage 构建死信消息，发往原始主题的死信主题并保留原始分区。
func buildDeadLetterMessage(msg *kafka.Message, state RetryState, reason error, now time.Time) (*kafka.Message, DeadLetterRecord) {
	topic := DLQTopic(state.OriginalTopic)
	out := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: state.OriginalPartition},
		Key:            msg.Key,
		Value:          msg.Value,
		Headers:        cloneHeaders(msg.Headers),
	}
	first := setFailureHeaders(out, state, reason, now)
	setHeader(out, HeaderRetryAttempt, strconv.Itoa(state.Attempt))

	return out, DeadLetterRecord{
		OriginalTopic: state.OriginalTopic,
		Partition:     state.OriginalPartition,
		Offset:        state.OriginalOffset,
		Payload:       string(msg.Value),
		Reason:        errorString(reason),
		Attempts:      state.Attempt,
		FirstFailure:  first,
		LastFailure:   now,
	}
}

// setFailureHeaders 写入原始位置和失败信息，返回首次失败时间。
func setFailureHeaders(msg *kafka.Message, state RetryState, reason error, now time.Time) time.Time {
	first := state.FirstFailure
	if first.IsZero() {
		first = now
	}
	setHeader(msg, HeaderOriginalTopic, state.OriginalTopic)
	setHeader(msg, HeaderOriginalPartition, strconv.FormatInt(int64(state.OriginalPartition), 10))
	setHeader(msg, HeaderOriginalOffset, strconv.FormatInt(state.OriginalOffset, 10))
	setHeader(msg, HeaderFirstFailTime, first.UTC().Format(time.RFC3339Nano))
	setHeader(msg, HeaderLastFailTime, now.UTC().Format(time.RFC3339Nano))
	setHeader(msg, HeaderFailureReason, errorString(reason))
	return first
}

func setHeader(msg *kafka.Message, key, value string) {
	for i, h := range msg.Headers {
		if h.Key == key {
			msg.Headers[i].Value = []byte(value)
			return
		}
	}
	msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func getHeader(msg *kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func cloneHeaders(headers []kafka.Header) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafka.Header, len(headers))
	for i, h := range headers {
		out[i] = kafka.Header{Key: h.Key, Value: append([]byte(nil), h.Value...)}
	}
	return out
}

func kafkaHeadersToMap(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	result := make(map[string]string, len(headers))
	for _, h := range headers {
		result[h.Key] = string(h.Value)
	}
	return result
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func topicOf(msg *kafka.Message) string {
	if msg == nil || msg.TopicPartition.Topic == nil {
		return ""
	}
	return *msg.TopicPartition.Topic
}
