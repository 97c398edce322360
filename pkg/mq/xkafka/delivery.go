package xkafka

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// produceAndWait 入队并等待该消息的投递报告。
//
// 使用缓冲为 1 的私有 deliveryChan，ctx 取消或超时后 librdkafka 仍可写入而不阻塞。
// 成功时返回 broker 确认的消息（含分区与 offset）。
func produceAndWait(ctx context.Context, producer ProducerClient, msg *kafka.Message, timeout time.Duration) (*kafka.Message, error) {
	topic := topicOf(msg)
	deliveryChan := make(chan kafka.Event, 1)
	if err := producer.Produce(msg, deliveryChan); err != nil {
		return nil, &BrokerError{Op: "produce", Topic: topic, Err: err}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, &BrokerError{Op: "delivery", Topic: topic, Err: ErrDeliveryTimeout}
	case e := <-deliveryChan:
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				return ev, &BrokerError{Op: "delivery", Topic: topic, Err: ev.TopicPartition.Error}
			}
			return ev, nil
		case kafka.Error:
			return nil, &BrokerError{Op: "delivery", Topic: topic, Err: ev}
		default:
			return nil, &BrokerError{Op: "delivery", Topic: topic, Err: fmt.Errorf("%w: %T", ErrUnexpectedEvent, e)}
		}
	}
}
