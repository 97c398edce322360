package mqcore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func remoteSpanContext(t *testing.T) trace.SpanContext {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
}

func TestNoopTracer(t *testing.T) {
	headers := map[string]string{}
	NoopTracer{}.Inject(context.Background(), headers)
	assert.Empty(t, headers)
	assert.NotNil(t, NoopTracer{}.Extract(headers))
}

func TestOTelTracer_RoundTrip(t *testing.T) {
	tracer := NewOTelTracer()
	sc := remoteSpanContext(t)
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	headers := map[string]string{}
	tracer.Inject(ctx, headers)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", headers["traceparent"])

	got := trace.SpanContextFromContext(tracer.Extract(headers))
	assert.Equal(t, sc.TraceID(), got.TraceID())
	assert.Equal(t, sc.SpanID(), got.SpanID())
	assert.True(t, got.IsRemote())
}

func TestOTelTracer_NilInputs(t *testing.T) {
	tracer := NewOTelTracer(WithOTelPropagator(nil))
	assert.NotPanics(t, func() {
		tracer.Inject(context.Background(), nil)
		//nolint:staticcheck // 验证 nil ctx 防护
		tracer.Inject(nil, map[string]string{})
	})
	assert.False(t, trace.SpanContextFromContext(tracer.Extract(nil)).IsValid())
}

func TestOTelTracer_CustomPropagator(t *testing.T) {
	tracer := NewOTelTracer(WithOTelPropagator(propagation.Baggage{}))
	ctx := trace.ContextWithSpanContext(context.Background(), remoteSpanContext(t))

	headers := map[string]string{}
	tracer.Inject(ctx, headers)
	assert.NotContains(t, headers, "traceparent")
}

func TestMergeTraceContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "v")
	sc := remoteSpanContext(t)
	extracted := trace.ContextWithRemoteSpanContext(context.Background(), sc)

	merged := MergeTraceContext(base, extracted)
	assert.Equal(t, "v", merged.Value(key{}))
	assert.Equal(t, sc.TraceID(), trace.SpanContextFromContext(merged).TraceID())

	assert.Same(t, base, MergeTraceContext(base, context.Background()))
	assert.Same(t, base, MergeTraceContext(base, nil))
	//nolint:staticcheck // 验证 nil ctx 防护
	assert.NotNil(t, MergeTraceContext(nil, nil))
}
