package xmetrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultPromNamespace = "xrelay"
)

type promConfig struct {
	namespace  string
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	buckets    []float64
}

// PrometheusOption 定义 Prometheus Observer 的配置选项。
type PrometheusOption func(*promConfig)

// WithNamespace 设置指标命名空间，默认 "xrelay"。
func WithNamespace(ns string) PrometheusOption {
	return func(cfg *promConfig) {
		if ns != "" {
			cfg.namespace = ns
		}
	}
}

// WithRegistry 使用独立的 Registry（测试或多实例场景），默认使用全局 DefaultRegisterer。
func WithRegistry(reg *prometheus.Registry) PrometheusOption {
	return func(cfg *promConfig) {
		if reg != nil {
			cfg.registerer = reg
			cfg.gatherer = reg
		}
	}
}

// WithBuckets 设置耗时直方图的桶边界（秒），默认 prometheus.DefBuckets。
func WithBuckets(buckets []float64) PrometheusOption {
	return func(cfg *promConfig) {
		if len(buckets) > 0 {
			cfg.buckets = buckets
		}
	}
}

// PrometheusObserver 把观测结果写入 Prometheus 计数器和直方图。
// 只记录指标，不产生追踪；需要追踪时与 OTel Observer 组合使用（见 Multi）。
type PrometheusObserver struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

// NewPrometheusObserver 创建并注册采集器。
// 同一 Registerer 上重复创建会返回 ErrRegister。
func NewPrometheusObserver(opts ...PrometheusOption) (*PrometheusObserver, error) {
	cfg := &promConfig{
		namespace:  defaultPromNamespace,
		registerer: prometheus.DefaultRegisterer,
		gatherer:   prometheus.DefaultGatherer,
		buckets:    prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	labels := []string{"component", "operation", "status"}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.namespace,
		Name:      "operations_total",
		Help:      "Total number of operations by component, operation and status",
	}, labels)
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.namespace,
		Name:      "operation_duration_seconds",
		Help:      "Histogram of operation latency in seconds",
		Buckets:   cfg.buckets,
	}, labels)

	for _, c := range []prometheus.Collector{total, duration} {
		if err := cfg.registerer.Register(c); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRegister, err)
		}
	}

	return &PrometheusObserver{total: total, duration: duration, gatherer: cfg.gatherer}, nil
}

// Start 开始一次观测。
func (o *PrometheusObserver) Start(ctx context.Context, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	component, operation := normalizeNames(opts)
	return ctx, &promSpan{
		observer:  o,
		component: component,
		operation: operation,
		start:     time.Now(),
	}
}

// Handler 返回暴露本 Observer 所用 Gatherer 的 /metrics 处理器。
func (o *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})
}

type promSpan struct {
	observer  *PrometheusObserver
	component string
	operation string
	start     time.Time
	endOnce   sync.Once
}

func (s *promSpan) End(result Result) {
	s.endOnce.Do(func() {
		status := string(resolveStatus(result))
		s.observer.total.WithLabelValues(s.component, s.operation, status).Inc()
		s.observer.duration.WithLabelValues(s.component, s.operation, status).Observe(time.Since(s.start).Seconds())
	})
}

var (
	_ Observer = (*PrometheusObserver)(nil)
	_ Observer = NoopObserver{}
)
