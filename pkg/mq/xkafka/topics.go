package xkafka

import "strconv"

const (
	// RetryTopicSuffix 重试主题后缀，后接从 0 开始的序号：orders-retry-0。
	RetryTopicSuffix = "-retry-"
	// DLQTopicSuffix 死信主题后缀：orders.DLQ。
	DLQTopicSuffix = ".DLQ"
)

// RetryTopic 返回 topic 的第 index 个重试主题。
func RetryTopic(topic string, index int) string {
	return topic + RetryTopicSuffix + strconv.Itoa(index)
}

// RetryTopics 返回 maxAttempts 次投递所需的全部重试主题。
// 首次投递在主主题上，因此重试主题数为 maxAttempts-1。
func RetryTopics(topic string, maxAttempts int) []string {
	if maxAttempts <= 1 {
		return nil
	}
	topics := make([]string, 0, maxAttempts-1)
	for i := 0; i < maxAttempts-1; i++ {
		topics = append(topics, RetryTopic(topic, i))
	}
	return topics
}

// DLQTopic 返回 topic 的死信主题。
func DLQTopic(topic string) string {
	return topic + DLQTopicSuffix
}

// AllTopics 返回主主题、重试主题和死信主题，用于建主题。
func AllTopics(topic string, maxAttempts int) []string {
	topics := append([]string{topic}, RetryTopics(topic, maxAttempts)...)
	return append(topics, DLQTopic(topic))
}
