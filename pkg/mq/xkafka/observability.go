package xkafka

import (
	"context"

	"github.com/omeyang/xrelay/internal/mqcore"
	"github.com/omeyang/xrelay/pkg/observability/xmetrics"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	componentName = "xkafka"
)

// Tracer 在消息头中传播追踪上下文。
type Tracer = mqcore.Tracer

// NoopTracer 不传播任何追踪信息。
type NoopTracer = mqcore.NoopTracer

// OTelTracer 基于 OpenTelemetry 传播器（W3C Trace Context）的 Tracer。
type OTelTracer = mqcore.OTelTracer

// NewOTelTracer 创建 OTelTracer，默认使用 TraceContext + Baggage 组合传播器。
var NewOTelTracer = mqcore.NewOTelTracer

func kafkaAttrs(topic string) []xmetrics.Attr {
	attrs := []xmetrics.Attr{xmetrics.String("messaging.system", "kafka")}
	if topic != "" {
		attrs = append(attrs, xmetrics.String("messaging.destination", topic))
	}
	return attrs
}

func kafkaMessageAttrs(msg *kafka.Message) []xmetrics.Attr {
	attrs := kafkaAttrs(topicOf(msg))
	if msg == nil {
		return attrs
	}
	return append(attrs,
		xmetrics.Int64("messaging.kafka.partition", int64(msg.TopicPartition.Partition)),
		xmetrics.Int64("messaging.kafka.offset", int64(msg.TopicPartition.Offset)),
	)
}

func injectKafkaTrace(ctx context.Context, tracer Tracer, msg *kafka.Message) {
	if tracer == nil || msg == nil {
		return
	}
	carrier := kafkaHeadersToMap(msg.Headers)
	tracer.Inject(ctx, carrier)
	for key, value := range carrier {
		setHeader(msg, key, value)
	}
}

func extractKafkaTrace(ctx context.Context, tracer Tracer, msg *kafka.Message) context.Context {
	if tracer == nil || msg == nil {
		return ctx
	}
	extracted := tracer.Extract(kafkaHeadersToMap(msg.Headers))
	return mqcore.MergeTraceContext(ctx, extracted)
}
