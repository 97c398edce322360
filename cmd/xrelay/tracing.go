package main

import (
	"context"
	"fmt"

	"github.com/omeyang/xrelay/pkg/observability/xmetrics"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const instrumentationName = "github.com/omeyang/xrelay/cmd/xrelay"

// tracing 进程级追踪：SDK TracerProvider 为每次发送和消费生成 span，
// xkafka 把当前 span 写入 traceparent 头，重试主题和死信主题沿用同一 trace。
type tracing struct {
	provider *sdktrace.TracerProvider
	observer xmetrics.Observer
}

func newTracing() (*tracing, error) {
	tp := sdktrace.NewTracerProvider()
	obs, err := xmetrics.NewOTelObserver(
		xmetrics.WithTracerProvider(tp),
		xmetrics.WithInstrumentationName(instrumentationName),
	)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return nil, fmt.Errorf("xrelay: tracing: %w", err)
	}
	return &tracing{provider: tp, observer: obs}, nil
}

func (t *tracing) shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
